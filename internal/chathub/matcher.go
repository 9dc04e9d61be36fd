package chathub

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vidchat/backend/internal/config"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
)

// RoomStore owns room lifecycle and the matching policy.
type RoomStore interface {
	CreateRoom(roomType models.RoomType, capacity int) *models.Room
	FindCompatibleRoom(roomType models.RoomType, gender models.Gender) *models.Room
	JoinRoom(connID string, roomType models.RoomType, user *models.User) (*models.Room, error)
	LeaveRoom(roomID, connID string) (string, bool)
	LeaveAllRooms(connID string)
	RoomForConnection(connID string) (*models.Room, bool)
	Room(roomID string) (*models.Room, bool)
	AddMessage(roomID string, sender *models.User, text string) ([]models.Message, error)
	OccupantsOf(roomID string) []models.User
	Rooms() []*models.Room
	Capacity(roomType models.RoomType) int
}

// MatcherService відповідає за алгоритм пошуку співрозмовників.
// Rooms are matched first-fit in creation order. It must only be used from
// the hub goroutine.
type MatcherService struct {
	Registry session.Registry

	// OnRoomDeleted, when set, is called after a room leaves the store.
	OnRoomDeleted func(*models.Room)

	rooms      []*models.Room
	byID       map[string]*models.Room
	capacities map[models.RoomType]int
	maxMessage int
	newID      func() string
	logger     *slog.Logger
}

// MatcherOption configures a MatcherService.
type MatcherOption func(*MatcherService)

// WithCapacity overrides the default capacity for new rooms of roomType.
func WithCapacity(roomType models.RoomType, capacity int) MatcherOption {
	return func(m *MatcherService) {
		if capacity >= config.MinRoomCapacity {
			m.capacities[roomType] = capacity
		}
	}
}

// WithMessageLimit sets the maximum stored message length.
func WithMessageLimit(n int) MatcherOption {
	return func(m *MatcherService) { m.maxMessage = n }
}

// WithRoomIDs replaces the UUID generator.
func WithRoomIDs(gen func() string) MatcherOption {
	return func(m *MatcherService) { m.newID = gen }
}

// WithMatcherLogger sets the logger.
func WithMatcherLogger(l *slog.Logger) MatcherOption {
	return func(m *MatcherService) { m.logger = l }
}

// NewMatcherService створює новий Matcher.
func NewMatcherService(registry session.Registry, opts ...MatcherOption) *MatcherService {
	m := &MatcherService{
		Registry: registry,
		byID:     make(map[string]*models.Room),
		capacities: map[models.RoomType]int{
			models.RoomTypeOpen:     config.DefaultRoomCapacity,
			models.RoomTypeFiltered: config.DefaultRoomCapacity,
		},
		maxMessage: config.DefaultMessageMaxLength,
		newID:      func() string { return uuid.New().String() },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MatcherService) Capacity(roomType models.RoomType) int {
	if c, ok := m.capacities[roomType]; ok {
		return c
	}
	return config.DefaultRoomCapacity
}

// CreateRoom appends an empty room to the store.
func (m *MatcherService) CreateRoom(roomType models.RoomType, capacity int) *models.Room {
	if capacity < config.MinRoomCapacity {
		capacity = m.Capacity(roomType)
	}
	room := models.NewRoom(m.newID(), roomType, capacity)
	m.rooms = append(m.rooms, room)
	m.byID[room.ID] = room
	m.logger.Debug("room created", "room_id", room.ID, "room_type", roomType, "capacity", capacity)
	return room
}

// FindCompatibleRoom returns the first room of roomType with a free seat whose
// occupants are compatible with gender. Every room it walks past is swept:
// participants without a registry entry are evicted and rooms left empty are
// deleted.
func (m *MatcherService) FindCompatibleRoom(roomType models.RoomType, gender models.Gender) *models.Room {
	for _, room := range append([]*models.Room(nil), m.rooms...) {
		m.evictStale(room)
		if room.IsEmpty() {
			m.deleteRoom(room)
			continue
		}
		if room.Type == roomType && room.CanJoin() && m.compatible(room, gender) {
			return room
		}
	}
	return nil
}

func (m *MatcherService) evictStale(room *models.Room) {
	for _, connID := range room.Participants() {
		if _, ok := m.Registry.LookupByConnection(connID); !ok {
			room.RemoveParticipant(connID)
			m.logger.Info("evicted stale participant", "room_id", room.ID, "conn_id", connID)
		}
	}
}

func (m *MatcherService) compatible(room *models.Room, gender models.Gender) bool {
	switch room.Type {
	case models.RoomTypeOpen:
		return true
	case models.RoomTypeFiltered:
		for _, connID := range room.Participants() {
			u, ok := m.Registry.LookupByConnection(connID)
			if !ok || u.Gender != gender {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// JoinRoom moves connID out of any room it occupies, then into the first
// compatible room or a new one, and records the room on user.
func (m *MatcherService) JoinRoom(connID string, roomType models.RoomType, user *models.User) (*models.Room, error) {
	m.LeaveAllRooms(connID)

	room := m.FindCompatibleRoom(roomType, user.Gender)
	if room == nil {
		room = m.CreateRoom(roomType, m.Capacity(roomType))
	}
	if !room.AddParticipant(connID) {
		return nil, fmt.Errorf("room %s is full", room.ID)
	}
	user.RoomID = room.ID
	return room, nil
}

// LeaveRoom removes connID from roomID, deleting the room once empty.
// It reports false when the room does not exist.
func (m *MatcherService) LeaveRoom(roomID, connID string) (string, bool) {
	room, ok := m.byID[roomID]
	if !ok {
		return "", false
	}
	if u, ok := m.Registry.LookupByConnection(connID); ok && u.RoomID == roomID {
		u.RoomID = ""
	}
	room.RemoveParticipant(connID)
	if room.IsEmpty() {
		m.deleteRoom(room)
	}
	return room.ID, true
}

// LeaveAllRooms removes connID from every room that lists it.
func (m *MatcherService) LeaveAllRooms(connID string) {
	for _, room := range append([]*models.Room(nil), m.rooms...) {
		if room.Has(connID) {
			m.LeaveRoom(room.ID, connID)
		}
	}
	if u, ok := m.Registry.LookupByConnection(connID); ok {
		u.RoomID = ""
	}
}

func (m *MatcherService) RoomForConnection(connID string) (*models.Room, bool) {
	for _, room := range m.rooms {
		if room.Has(connID) {
			return room, true
		}
	}
	return nil, false
}

func (m *MatcherService) Room(roomID string) (*models.Room, bool) {
	room, ok := m.byID[roomID]
	return room, ok
}

// AddMessage appends text to the room history, clamped to the configured
// length, and returns the full history.
func (m *MatcherService) AddMessage(roomID string, sender *models.User, text string) ([]models.Message, error) {
	room, ok := m.byID[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	room.AddMessage(models.Message{
		Value:    text,
		UserID:   sender.ID,
		Username: sender.Username,
	}, m.maxMessage)
	return room.Messages(), nil
}

// OccupantsOf returns the registry records of the room's participants in join
// order. Participants without a record are skipped.
func (m *MatcherService) OccupantsOf(roomID string) []models.User {
	room, ok := m.byID[roomID]
	if !ok {
		return nil
	}
	users := make([]models.User, 0, room.Size())
	for _, connID := range room.Participants() {
		if u, ok := m.Registry.LookupByConnection(connID); ok {
			users = append(users, *u)
		}
	}
	return users
}

// Rooms returns the live rooms in store order.
func (m *MatcherService) Rooms() []*models.Room {
	return append([]*models.Room(nil), m.rooms...)
}

func (m *MatcherService) deleteRoom(room *models.Room) {
	if _, ok := m.byID[room.ID]; !ok {
		return
	}
	delete(m.byID, room.ID)
	for i, r := range m.rooms {
		if r == room {
			m.rooms = append(m.rooms[:i], m.rooms[i+1:]...)
			break
		}
	}
	m.logger.Debug("room deleted", "room_id", room.ID)
	if m.OnRoomDeleted != nil {
		m.OnRoomDeleted(room)
	}
}
