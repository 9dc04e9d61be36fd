package session

import (
	"log/slog"

	"vidchat/backend/internal/models"
)

// Registry is the single source of truth for who is connected.
// Implementations are owned by one goroutine and are not safe for concurrent use.
type Registry interface {
	// RegisterOrReplace stores user, first evicting any record that shares its
	// connection id or its numeric identity. It returns the evicted record, if any.
	RegisterOrReplace(user *models.User) (evicted *models.User)
	LookupByConnection(connID string) (*models.User, bool)
	LookupByIdentity(id int64) (*models.User, bool)
	Remove(connID string)
	UpdateStatus(connID string, status models.Status) (*models.User, bool)
	Len() int
}

// MemoryRegistry keeps users in process memory keyed by connection id.
type MemoryRegistry struct {
	users  map[string]*models.User
	byID   map[int64]string
	logger *slog.Logger
}

func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRegistry{
		users:  make(map[string]*models.User),
		byID:   make(map[int64]string),
		logger: logger,
	}
}

func (r *MemoryRegistry) RegisterOrReplace(user *models.User) *models.User {
	old, ok := r.users[user.ConnID]
	if !ok {
		old, ok = r.LookupByIdentity(user.ID)
	}
	if ok {
		r.Remove(old.ConnID)
		r.logger.Info("evicted previous session",
			"conn_id", old.ConnID, "user_id", old.ID, "new_conn_id", user.ConnID)
	} else {
		old = nil
	}

	r.users[user.ConnID] = user
	r.byID[user.ID] = user.ConnID
	return old
}

func (r *MemoryRegistry) LookupByConnection(connID string) (*models.User, bool) {
	u, ok := r.users[connID]
	return u, ok
}

func (r *MemoryRegistry) LookupByIdentity(id int64) (*models.User, bool) {
	connID, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.LookupByConnection(connID)
}

func (r *MemoryRegistry) Remove(connID string) {
	u, ok := r.users[connID]
	if !ok {
		return
	}
	delete(r.users, connID)
	if r.byID[u.ID] == connID {
		delete(r.byID, u.ID)
	}
}

// UpdateStatus records the camera/audio flags. It reports false when the
// connection is not registered.
func (r *MemoryRegistry) UpdateStatus(connID string, status models.Status) (*models.User, bool) {
	u, ok := r.users[connID]
	if !ok {
		return nil, false
	}
	u.CameraOn = status.CameraOn
	u.AudioOn = status.AudioOn
	return u, true
}

func (r *MemoryRegistry) Len() int {
	return len(r.users)
}
