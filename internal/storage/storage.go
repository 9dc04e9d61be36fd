package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
)

const (
	iceServersKey = "vidchat:ice_servers"
	// RoomEventsChannel carries RoomEvent JSON for external observers.
	RoomEventsChannel = "vidchat:rooms"
)

// Room lifecycle event kinds.
const (
	RoomStarted = "room.started"
	RoomClosed  = "room.closed"
)

// RoomEvent is published whenever a call starts or a room is removed.
type RoomEvent struct {
	Kind         string    `json:"kind"`
	RoomID       string    `json:"roomId"`
	RoomType     string    `json:"roomType"`
	Participants []string  `json:"participants,omitempty"`
	At           time.Time `json:"at"`
}

// Storage holds the side-channels the hub writes to. Live rooms and users are
// never read back from here.
type Storage interface {
	iceconfig.Persister

	PublishRoomEvent(ctx context.Context, ev RoomEvent) error
	SaveCallSession(ctx context.Context, call *models.CallSession) error
	CloseCallSession(ctx context.Context, roomID string, endedAt time.Time) error
	RecentCallSessions(ctx context.Context, limit int) ([]models.CallSession, error)
}

// Service implements Storage on Redis and PostgreSQL. Either backend may be
// nil, in which case the matching operations do nothing.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Logger *slog.Logger
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:     db,
		Redis:  rdb,
		Logger: logger,
	}
}

// Migrate creates the audit tables.
func (s *Service) Migrate() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(&models.CallSession{})
}

// SaveICEServers stores the full ICE server list as one JSON value.
func (s *Service) SaveICEServers(ctx context.Context, servers []iceconfig.Server) error {
	if s.Redis == nil {
		return nil
	}
	data, err := json.Marshal(servers)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, iceServersKey, data, 0).Err()
}

// LoadICEServers reads the list written by SaveICEServers.
func (s *Service) LoadICEServers(ctx context.Context) ([]iceconfig.Server, bool, error) {
	if s.Redis == nil {
		return nil, false, nil
	}
	raw, err := s.Redis.Get(ctx, iceServersKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var servers []iceconfig.Server
	if err := json.Unmarshal(raw, &servers); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", iceServersKey, err)
	}
	return servers, true, nil
}

// PublishRoomEvent публікує подію кімнати в Redis Pub/Sub
func (s *Service) PublishRoomEvent(ctx context.Context, ev RoomEvent) error {
	if s.Redis == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, RoomEventsChannel, data).Err()
}

// SubscribeRoomEvents returns a subscription to RoomEventsChannel.
func (s *Service) SubscribeRoomEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, RoomEventsChannel)
}
