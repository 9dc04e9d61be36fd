package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vidchat/backend/internal/config"
	"vidchat/backend/internal/models"
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService

	send      chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewWebSocketClient wraps an upgraded connection.
func NewWebSocketClient(connID string, conn *websocket.Conn, hub *ManagerService, logger *slog.Logger) *WebSocketClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketClient{
		ConnID: connID,
		Conn:   conn,
		Hub:    hub,
		send:   make(chan models.Envelope, config.ClientSendQueue),
		done:   make(chan struct{}),
		logger: logger.With("conn_id", connID),
	}
}

func (c *WebSocketClient) GetConnID() string { return c.ConnID }

func (c *WebSocketClient) Send(env models.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		c.logger.Warn("send queue full, dropping envelope", "type", env.Type)
		return false
	}
}

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	if c.Hub != nil {
		go c.readPump()
	}
}

func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read failed", "err", err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.logger.Debug("dropping malformed frame", "err", err)
			c.Send(errorEnvelope("malformed message", nil))
			continue
		}

		if !c.Hub.Dispatch(Inbound{ConnID: c.ConnID, Envelope: env}) {
			return
		}
	}
}

// writePump читає повідомлення з каналу send і записує їх у WebSocket.
// After Close it flushes what is still queued before closing the socket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				return
			}

		case <-c.done:
			for {
				select {
				case env := <-c.send:
					if err := c.write(env); err != nil {
						return
					}
				default:
					c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
					c.Conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) write(env models.Envelope) error {
	c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	if err := c.Conn.WriteJSON(env); err != nil {
		c.logger.Debug("write failed", "type", env.Type, "err", err)
		return err
	}
	return nil
}
