package chathub

import (
	"context"
	"strconv"
	"time"

	"vidchat/backend/internal/config"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/storage"
)

// RoomClosed is the room store's deletion hook.
func (m *ManagerService) RoomClosed(room *models.Room) {
	if m.Storage == nil {
		return
	}
	ev := storage.RoomEvent{
		Kind:     storage.RoomClosed,
		RoomID:   room.ID,
		RoomType: string(room.Type),
		At:       time.Now().UTC(),
	}
	m.async(func(ctx context.Context) {
		if err := m.Storage.CloseCallSession(ctx, room.ID, ev.At); err != nil {
			m.logger.Error("close call session", "room_id", room.ID, "err", err)
		}
		if err := m.Storage.PublishRoomEvent(ctx, ev); err != nil {
			m.logger.Error("publish room event", "room_id", room.ID, "err", err)
		}
	})
}

func (m *ManagerService) recordCallStart(room *models.Room, snapshot []string) {
	if m.Storage == nil {
		return
	}
	identities := make([]string, 0, len(snapshot))
	for _, connID := range snapshot {
		if u, ok := m.Registry.LookupByConnection(connID); ok {
			identities = append(identities, strconv.FormatInt(u.ID, 10))
		}
	}
	now := time.Now().UTC()
	call := &models.CallSession{
		RoomID:       room.ID,
		RoomType:     string(room.Type),
		Participants: identities,
		StartedAt:    now,
	}
	ev := storage.RoomEvent{
		Kind:         storage.RoomStarted,
		RoomID:       room.ID,
		RoomType:     string(room.Type),
		Participants: identities,
		At:           now,
	}
	m.async(func(ctx context.Context) {
		if err := m.Storage.SaveCallSession(ctx, call); err != nil {
			m.logger.Error("save call session", "room_id", room.ID, "err", err)
		}
		if err := m.Storage.PublishRoomEvent(ctx, ev); err != nil {
			m.logger.Error("publish room event", "room_id", room.ID, "err", err)
		}
	})
}

// async queues fn for the storage worker, which runs writes off the hub
// goroutine in submission order. Shutdown drains the queue.
func (m *ManagerService) async(fn func(ctx context.Context)) {
	m.auditOnce.Do(func() {
		m.audit = make(chan func(context.Context), config.DeferredQueue)
		m.background.Add(1)
		go m.auditWorker()
	})
	select {
	case m.audit <- fn:
	default:
		m.logger.Warn("storage queue full, dropping write")
	}
}

func (m *ManagerService) auditWorker() {
	defer m.background.Done()
	for fn := range m.audit {
		ctx, cancel := context.WithTimeout(context.Background(), config.StorageTimeout)
		fn(ctx)
		cancel()
	}
}
