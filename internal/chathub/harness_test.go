package chathub

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// harness drives handlers synchronously, standing in for the hub goroutine.
// Settling-delay callbacks queue up until fireTimers.
type harness struct {
	t        *testing.T
	hub      *ManagerService
	rooms    *MatcherService
	registry *session.MemoryRegistry
	clients  map[string]*MockClient
	pending  []func()
	roomSeq  int
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, clients: make(map[string]*MockClient)}
	h.registry = session.NewMemoryRegistry(quietLogger)
	h.rooms = NewMatcherService(h.registry,
		WithMatcherLogger(quietLogger),
		WithRoomIDs(func() string {
			h.roomSeq++
			return fmt.Sprintf("room-%d", h.roomSeq)
		}),
	)
	ice := iceconfig.NewManager(
		[]webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		webrtc.ICETransportPolicyAll, nil, quietLogger)

	base := []Option{
		WithLogger(quietLogger),
		WithScheduler(func(_ time.Duration, fn func()) { h.pending = append(h.pending, fn) }),
	}
	h.hub = NewManagerService(h.registry, h.rooms, ice, append(base, opts...)...)
	h.rooms.OnRoomDeleted = h.hub.RoomClosed
	return h
}

func (h *harness) connect(connID string, id int64, gender models.Gender, mobile bool) *MockClient {
	h.t.Helper()
	c := NewMockClient(connID)
	h.clients[connID] = c
	h.hub.handleConnect(Registration{Client: c, User: &models.User{
		ID:       id,
		Gender:   gender,
		Username: "user-" + connID,
		IsMobile: mobile,
		CameraOn: true,
		AudioOn:  true,
	}})
	return c
}

func (h *harness) send(connID, eventType string, payload any) {
	h.t.Helper()
	env, err := models.NewEnvelope(eventType, payload)
	require.NoError(h.t, err)
	h.hub.handleInbound(Inbound{ConnID: connID, Envelope: env})
}

func (h *harness) join(connID string, roomType models.RoomType) {
	h.send(connID, models.EventRoomJoin, models.JoinPayload{RoomType: string(roomType)})
}

func (h *harness) disconnect(connID string) {
	h.hub.handleDisconnect(h.clients[connID])
}

func (h *harness) fireTimers() {
	pending := h.pending
	h.pending = nil
	for _, fn := range pending {
		fn()
	}
}

func (h *harness) roomOf(connID string) *models.Room {
	room, ok := h.rooms.RoomForConnection(connID)
	if !ok {
		return nil
	}
	return room
}

func (h *harness) resetAll() {
	for _, c := range h.clients {
		c.Reset()
	}
}
