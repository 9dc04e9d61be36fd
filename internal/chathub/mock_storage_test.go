package chathub

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/storage"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) SaveICEServers(ctx context.Context, servers []iceconfig.Server) error {
	args := m.Called(ctx, servers)
	return args.Error(0)
}

func (m *MockStorage) LoadICEServers(ctx context.Context) ([]iceconfig.Server, bool, error) {
	args := m.Called(ctx)
	servers, _ := args.Get(0).([]iceconfig.Server)
	return servers, args.Bool(1), args.Error(2)
}

func (m *MockStorage) PublishRoomEvent(ctx context.Context, ev storage.RoomEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockStorage) SaveCallSession(ctx context.Context, call *models.CallSession) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *MockStorage) CloseCallSession(ctx context.Context, roomID string, endedAt time.Time) error {
	args := m.Called(ctx, roomID, endedAt)
	return args.Error(0)
}

func (m *MockStorage) RecentCallSessions(ctx context.Context, limit int) ([]models.CallSession, error) {
	args := m.Called(ctx, limit)
	calls, _ := args.Get(0).([]models.CallSession)
	return calls, args.Error(1)
}
