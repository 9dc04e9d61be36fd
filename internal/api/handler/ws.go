package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vidchat/backend/internal/chathub"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket.
// Connection parameters come from the query string. Invalid parameters are
// reported over the socket as an error event before it is closed.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	connID := uuid.NewString()
	user, verr := session.ParseCandidate(connID, session.ParamsFromQuery(c.Request.URL.Query()))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	if verr != nil {
		h.reject(connID, conn, verr)
		return
	}

	client := chathub.NewWebSocketClient(connID, conn, h.Hub, h.logger)
	if !h.Hub.Register(chathub.Registration{Client: client, User: user}) {
		conn.Close()
		return
	}
	client.Run()
}

func (h *Handler) reject(connID string, conn *websocket.Conn, verr error) {
	h.logger.Warn("connection rejected", "conn_id", connID, "err", verr)

	payload := models.ErrorPayload{Message: "invalid connection parameters"}
	var ve *session.ValidationError
	if errors.As(verr, &ve) {
		payload.Fields = ve.Fields
	}
	env, err := models.NewEnvelope(models.EventError, payload)
	if err != nil {
		conn.Close()
		return
	}

	client := chathub.NewWebSocketClient(connID, conn, nil, h.logger)
	client.Send(env)
	client.Close()
	client.Run()
}
