package chathub

import "vidchat/backend/internal/models"

// Client is one signaling connection as seen by the hub.
type Client interface {
	// GetConnID returns the opaque connection identifier.
	GetConnID() string

	// Send queues env for delivery. It never blocks and reports false when the
	// envelope was dropped because the client is closed or its queue is full.
	Send(env models.Envelope) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close flushes queued envelopes and closes the connection. It is safe to
	// call more than once.
	Close()
}

// Inbound is one envelope received from a client.
type Inbound struct {
	ConnID   string
	Envelope models.Envelope
}

// Registration asks the hub to admit a validated connection.
type Registration struct {
	Client Client
	User   *models.User
}
