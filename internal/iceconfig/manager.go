package iceconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// CandidatePoolSize is sent to clients with every room start.
const CandidatePoolSize = 10

// Persister stores the ICE server list outside the process.
type Persister interface {
	SaveICEServers(ctx context.Context, servers []Server) error
	// LoadICEServers reports found=false when nothing was stored yet.
	LoadICEServers(ctx context.Context) (servers []Server, found bool, err error)
}

// RTCConfig mirrors the browser RTCConfiguration dictionary.
type RTCConfig struct {
	IceServers           []Server `json:"iceServers"`
	IceCandidatePoolSize int      `json:"iceCandidatePoolSize"`
	IceTransportPolicy   string   `json:"iceTransportPolicy"`
	BundlePolicy         string   `json:"bundlePolicy"`
	RtcpMuxPolicy        string   `json:"rtcpMuxPolicy"`
}

// Manager holds the current ICE server list. It is safe for concurrent use:
// the admin API writes it from HTTP goroutines while the hub reads it.
type Manager struct {
	mu        sync.RWMutex
	servers   []webrtc.ICEServer
	policy    webrtc.ICETransportPolicy
	persister Persister
	logger    *slog.Logger
}

// NewManager returns a Manager seeded with servers. persister may be nil.
func NewManager(servers []webrtc.ICEServer, policy webrtc.ICETransportPolicy, persister Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		servers:   append([]webrtc.ICEServer(nil), servers...),
		policy:    policy,
		persister: persister,
		logger:    logger,
	}
}

// Restore replaces the seed list with the persisted one, if any.
func (m *Manager) Restore(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}
	stored, found, err := m.persister.LoadICEServers(ctx)
	if err != nil {
		return fmt.Errorf("load ice servers: %w", err)
	}
	if !found {
		return nil
	}
	servers, err := ParseServers(stored)
	if err != nil {
		return fmt.Errorf("stored ice servers: %w", err)
	}

	m.mu.Lock()
	m.servers = servers
	m.mu.Unlock()
	m.logger.Info("restored ice servers", "count", len(servers))
	return nil
}

// List returns a copy of the current servers in wire form.
func (m *Manager) List() []Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toWire(m.servers)
}

// Current returns the configuration clients receive on room start.
func (m *Manager) Current() RTCConfig {
	return RTCConfig{
		IceServers:           m.List(),
		IceCandidatePoolSize: CandidatePoolSize,
		IceTransportPolicy:   m.policy.String(),
		BundlePolicy:         webrtc.BundlePolicyMaxBundle.String(),
		RtcpMuxPolicy:        webrtc.RTCPMuxPolicyRequire.String(),
	}
}

// Add appends s and returns the new list.
func (m *Manager) Add(ctx context.Context, s Server) ([]Server, error) {
	d := s.Descriptor()
	if err := Validate(d); err != nil {
		return nil, err
	}
	return m.mutate(ctx, func(servers []webrtc.ICEServer) ([]webrtc.ICEServer, error) {
		return append(servers, d), nil
	})
}

// Update replaces the server at index.
func (m *Manager) Update(ctx context.Context, index int, s Server) ([]Server, error) {
	d := s.Descriptor()
	if err := Validate(d); err != nil {
		return nil, err
	}
	return m.mutate(ctx, func(servers []webrtc.ICEServer) ([]webrtc.ICEServer, error) {
		if index < 0 || index >= len(servers) {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		servers[index] = d
		return servers, nil
	})
}

// Remove deletes the server at index.
func (m *Manager) Remove(ctx context.Context, index int) ([]Server, error) {
	return m.mutate(ctx, func(servers []webrtc.ICEServer) ([]webrtc.ICEServer, error) {
		if index < 0 || index >= len(servers) {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		return append(servers[:index], servers[index+1:]...), nil
	})
}

// Replace swaps the whole list.
func (m *Manager) Replace(ctx context.Context, list []Server) ([]Server, error) {
	parsed, err := ParseServers(list)
	if err != nil {
		return nil, err
	}
	return m.mutate(ctx, func([]webrtc.ICEServer) ([]webrtc.ICEServer, error) {
		return parsed, nil
	})
}

// mutate applies fn to a copy of the list and commits it only after the
// persister accepted the result.
func (m *Manager) mutate(ctx context.Context, fn func([]webrtc.ICEServer) ([]webrtc.ICEServer, error)) ([]Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(append([]webrtc.ICEServer(nil), m.servers...))
	if err != nil {
		return nil, err
	}
	wire := toWire(next)
	if m.persister != nil {
		if err := m.persister.SaveICEServers(ctx, wire); err != nil {
			return nil, fmt.Errorf("save ice servers: %w", err)
		}
	}
	m.servers = next
	m.logger.Info("ice servers updated", "count", len(next))
	return wire, nil
}

func toWire(servers []webrtc.ICEServer) []Server {
	out := make([]Server, 0, len(servers))
	for _, d := range servers {
		out = append(out, FromDescriptor(d))
	}
	return out
}
