package chathub

import (
	"encoding/json"
	"sync"

	"vidchat/backend/internal/models"
)

// MockClient records every envelope the hub sends it.
type MockClient struct {
	connID string

	mu       sync.Mutex
	received []models.Envelope
	closed   bool
}

func NewMockClient(connID string) *MockClient {
	return &MockClient{connID: connID}
}

func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.received = append(c.received, env)
	return true
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Types lists the received event types in order.
func (c *MockClient) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.received))
	for _, env := range c.received {
		out = append(out, env.Type)
	}
	return out
}

func (c *MockClient) Count(eventType string) int {
	n := 0
	for _, t := range c.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

// Last returns the most recent envelope of eventType.
func (c *MockClient) Last(eventType string) (models.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.received) - 1; i >= 0; i-- {
		if c.received[i].Type == eventType {
			return c.received[i], true
		}
	}
	return models.Envelope{}, false
}

// LastPayload decodes the payload of the most recent envelope of eventType.
func (c *MockClient) LastPayload(eventType string, v any) bool {
	env, ok := c.Last(eventType)
	if !ok {
		return false
	}
	return json.Unmarshal(env.Payload, v) == nil
}

// Reset forgets everything received so far.
func (c *MockClient) Reset() {
	c.mu.Lock()
	c.received = nil
	c.mu.Unlock()
}
