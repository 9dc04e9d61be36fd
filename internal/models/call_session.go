package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CallSession is the audit row written when a room starts a call.
// It is never read back to restore live state.
type CallSession struct {
	gorm.Model
	// RoomID is the in-memory room identifier (UUID).
	RoomID   string `gorm:"type:uuid;not null;index"`
	RoomType string `gorm:"type:text;not null"`
	// Participants holds the numeric identities present when the call started.
	Participants pq.StringArray `gorm:"type:text[]"`
	StartedAt    time.Time
	EndedAt      *time.Time
}
