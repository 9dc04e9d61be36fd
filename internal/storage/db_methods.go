package storage

import (
	"context"
	"time"

	"vidchat/backend/internal/models"
)

// SaveCallSession зберігає запис про початок дзвінка в PostgreSQL
func (s *Service) SaveCallSession(ctx context.Context, call *models.CallSession) error {
	if s.DB == nil {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(call).Error; err != nil {
		s.Logger.Error("save call session", "room_id", call.RoomID, "err", err)
		return err
	}
	return nil
}

// CloseCallSession sets EndedAt on the still-open row for roomID.
func (s *Service) CloseCallSession(ctx context.Context, roomID string, endedAt time.Time) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.WithContext(ctx).
		Model(&models.CallSession{}).
		Where("room_id = ? AND ended_at IS NULL", roomID).
		Update("ended_at", endedAt).Error
}

// RecentCallSessions returns the newest rows first.
func (s *Service) RecentCallSessions(ctx context.Context, limit int) ([]models.CallSession, error) {
	if s.DB == nil {
		return nil, nil
	}
	var calls []models.CallSession
	err := s.DB.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}
