package config

import "time"

const (
	// Rooms
	DefaultRoomCapacity = 2
	MinRoomCapacity     = 2

	// Messages
	DefaultMessageMaxLength = 200

	// Call start
	DefaultSettlingDelay = 3 * time.Second

	// WebSocket
	WriteWait       = 10 * time.Second
	PongWait        = 60 * time.Second
	PingPeriod      = (PongWait * 9) / 10
	MaxMessageSize  = 64 * 1024
	ClientSendQueue = 64

	// Hub
	InboundQueue  = 256
	DeferredQueue = 64

	// Storage
	StorageTimeout = 5 * time.Second

	// HTTP
	ShutdownTimeout = 10 * time.Second
	AdminTokenTTL   = 12 * time.Hour
)
