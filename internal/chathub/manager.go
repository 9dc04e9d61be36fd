package chathub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vidchat/backend/internal/config"
	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
	"vidchat/backend/internal/storage"
)

// ErrStopped is returned by requests made after the hub stopped.
var ErrStopped = errors.New("hub stopped")

// ICESource provides the relay configuration handed to clients.
type ICESource interface {
	List() []iceconfig.Server
	Current() iceconfig.RTCConfig
}

// ManagerService is the hub. A single goroutine (Run) owns the registry, the
// room store and the client map; everything else talks to it over channels.
type ManagerService struct {
	Clients map[string]Client

	// Channels
	RegisterCh   chan Registration
	UnregisterCh chan Client
	IncomingCh   chan Inbound
	deferredCh   chan func()

	Registry session.Registry
	Rooms    RoomStore
	ICE      ICESource
	Storage  storage.Storage

	settlingDelay     time.Duration
	revalidateOfferer bool
	after             func(time.Duration, func())

	audit     chan func(context.Context)
	auditOnce sync.Once

	logger     *slog.Logger
	done       chan struct{}
	stopOnce   sync.Once
	background sync.WaitGroup
}

// Option configures a ManagerService.
type Option func(*ManagerService)

// WithStorage enables call audit rows and room events.
func WithStorage(s storage.Storage) Option {
	return func(m *ManagerService) { m.Storage = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *ManagerService) { m.logger = l }
}

// WithSettlingDelay sets the wait between room start and offerer nomination.
func WithSettlingDelay(d time.Duration) Option {
	return func(m *ManagerService) { m.settlingDelay = d }
}

// WithOffererRevalidation makes the delayed nomination skip rooms that no
// longer exist or have fewer than two occupants.
func WithOffererRevalidation(enabled bool) Option {
	return func(m *ManagerService) { m.revalidateOfferer = enabled }
}

// WithScheduler replaces the timer used for the settling delay. fn must be run
// on the hub goroutine.
func WithScheduler(after func(d time.Duration, fn func())) Option {
	return func(m *ManagerService) { m.after = after }
}

// NewManagerService builds a hub around the given registry and room store.
func NewManagerService(registry session.Registry, rooms RoomStore, ice ICESource, opts ...Option) *ManagerService {
	m := &ManagerService{
		Clients:       make(map[string]Client),
		RegisterCh:    make(chan Registration),
		UnregisterCh:  make(chan Client),
		IncomingCh:    make(chan Inbound, config.InboundQueue),
		deferredCh:    make(chan func(), config.DeferredQueue),
		Registry:      registry,
		Rooms:         rooms,
		ICE:           ice,
		settlingDelay: config.DefaultSettlingDelay,
		logger:        slog.Default(),
		done:          make(chan struct{}),
	}
	m.after = func(d time.Duration, fn func()) {
		time.AfterFunc(d, func() { m.post(fn) })
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes hub events until ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	m.logger.Info("hub started")
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-m.RegisterCh:
			m.handleConnect(reg)

		case client := <-m.UnregisterCh:
			m.handleDisconnect(client)

		case in := <-m.IncomingCh:
			m.handleInbound(in)

		case fn := <-m.deferredCh:
			fn()
		}
	}
}

func (m *ManagerService) shutdown() {
	m.stopOnce.Do(func() { close(m.done) })
	for connID, client := range m.Clients {
		client.Close()
		delete(m.Clients, connID)
	}
	if m.audit != nil {
		close(m.audit)
	}
	m.background.Wait()
	m.logger.Info("hub stopped")
}

func (m *ManagerService) stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Register hands a validated connection to the hub.
func (m *ManagerService) Register(reg Registration) bool {
	if m.stopped() {
		return false
	}
	select {
	case m.RegisterCh <- reg:
		return true
	case <-m.done:
		return false
	}
}

// Unregister reports a closed connection.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Dispatch queues an inbound envelope. It reports false once the hub stopped.
func (m *ManagerService) Dispatch(in Inbound) bool {
	if m.stopped() {
		return false
	}
	select {
	case m.IncomingCh <- in:
		return true
	case <-m.done:
		return false
	}
}

// post runs fn on the hub goroutine.
func (m *ManagerService) post(fn func()) bool {
	if m.stopped() {
		return false
	}
	select {
	case m.deferredCh <- fn:
		return true
	case <-m.done:
		return false
	}
}

// BroadcastAll sends env to every connected client.
func (m *ManagerService) BroadcastAll(env models.Envelope) bool {
	return m.post(func() {
		for _, c := range m.Clients {
			c.Send(env)
		}
	})
}

// BroadcastICEServers pushes a new ICE server list to every client.
func (m *ManagerService) BroadcastICEServers(servers []iceconfig.Server) bool {
	env, err := models.NewEnvelope(models.EventUpdateIceServers, servers)
	if err != nil {
		m.logger.Error("encode ice servers", "err", err)
		return false
	}
	return m.BroadcastAll(env)
}

// ParticipantView is one room member as shown on the monitor.
type ParticipantView struct {
	SocketID string        `json:"socketId"`
	Username string        `json:"username"`
	Gender   models.Gender `json:"gender"`
}

// RoomView is a read-only copy of a room.
type RoomView struct {
	ID           string            `json:"id"`
	Type         models.RoomType   `json:"type"`
	Capacity     int               `json:"capacity"`
	Participants []ParticipantView `json:"participants"`
}

// Snapshot returns the live rooms as seen by the hub goroutine.
func (m *ManagerService) Snapshot(ctx context.Context) ([]RoomView, error) {
	reply := make(chan []RoomView, 1)
	if !m.post(func() { reply <- m.snapshot() }) {
		return nil, ErrStopped
	}
	select {
	case views := <-reply:
		return views, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}
}

func (m *ManagerService) snapshot() []RoomView {
	rooms := m.Rooms.Rooms()
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := RoomView{ID: room.ID, Type: room.Type, Capacity: room.Capacity}
		for _, connID := range room.Participants() {
			p := ParticipantView{SocketID: connID, Username: "Anonymous", Gender: "Unknown"}
			if u, ok := m.Registry.LookupByConnection(connID); ok {
				p.Username = u.Username
				p.Gender = u.Gender
			}
			view.Participants = append(view.Participants, p)
		}
		views = append(views, view)
	}
	return views
}

// sendTo delivers env to a single connection, if it is still attached.
func (m *ManagerService) sendTo(connID string, env models.Envelope) {
	if c, ok := m.Clients[connID]; ok {
		c.Send(env)
	}
}

// toRoom delivers env to every participant of room except the given
// connection id (which may be empty).
func (m *ManagerService) toRoom(room *models.Room, env models.Envelope, except string) {
	for _, connID := range room.Participants() {
		if connID != except {
			m.sendTo(connID, env)
		}
	}
}

func (m *ManagerService) emit(connID, eventType string, payload any) {
	env, err := models.NewEnvelope(eventType, payload)
	if err != nil {
		m.logger.Error("encode envelope", "type", eventType, "err", err)
		return
	}
	m.sendTo(connID, env)
}

func (m *ManagerService) emitRoom(room *models.Room, except, eventType string, payload any) {
	env, err := models.NewEnvelope(eventType, payload)
	if err != nil {
		m.logger.Error("encode envelope", "type", eventType, "err", err)
		return
	}
	m.toRoom(room, env, except)
}
