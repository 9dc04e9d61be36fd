package chathub

import (
	"encoding/json"
	"fmt"

	"vidchat/backend/internal/models"
)

func errorEnvelope(message string, fields map[string]string) models.Envelope {
	env, _ := models.NewEnvelope(models.EventError, models.ErrorPayload{Message: message, Fields: fields})
	return env
}

// handleInbound decodes an envelope and routes it to its handler.
func (m *ManagerService) handleInbound(in Inbound) {
	if _, ok := m.Clients[in.ConnID]; !ok {
		return
	}

	payload := in.Envelope.Payload
	switch in.Envelope.Type {
	case models.EventRoomJoin:
		var req models.JoinPayload
		if !m.decode(in.ConnID, payload, &req) {
			return
		}
		roomType, err := models.ParseRoomType(req.RoomType)
		if err != nil {
			m.sendTo(in.ConnID, errorEnvelope(err.Error(), nil))
			return
		}
		m.handleJoin(in.ConnID, roomType)

	case models.EventRoomLeave:
		m.handleLeave(in.ConnID)

	case models.EventRoomNext:
		m.handleNext(in.ConnID)

	case models.EventMessageSend:
		var req models.ChatPayload
		if !m.decode(in.ConnID, payload, &req) {
			return
		}
		m.handleMessage(in.ConnID, req.Message)

	case models.EventStatusUpdate:
		var status models.Status
		if !m.decode(in.ConnID, payload, &status) {
			return
		}
		m.handleStatus(in.ConnID, status)

	case models.EventRTCOffer:
		var req models.OfferPayload
		if !m.decode(in.ConnID, payload, &req) {
			return
		}
		m.relayOffer(in.ConnID, req.Offer)

	case models.EventRTCAnswer:
		var req models.AnswerPayload
		if !m.decode(in.ConnID, payload, &req) {
			return
		}
		m.relayAnswer(in.ConnID, req.Answer)

	case models.EventRTCCandidate:
		var req models.CandidatePayload
		if !m.decode(in.ConnID, payload, &req) {
			return
		}
		m.relayCandidate(in.ConnID, req.Candidate)

	case models.EventSignal:
		m.relayGenericSignal(in.ConnID, payload)

	default:
		m.sendTo(in.ConnID, errorEnvelope(fmt.Sprintf("unknown event %q", in.Envelope.Type), nil))
	}
}

func (m *ManagerService) decode(connID string, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		m.logger.Debug("bad payload", "conn_id", connID, "err", err)
		m.sendTo(connID, errorEnvelope("malformed payload", nil))
		return false
	}
	return true
}

// handleConnect admits a validated connection, replacing any earlier record
// with the same connection id or numeric identity.
func (m *ManagerService) handleConnect(reg Registration) {
	connID := reg.Client.GetConnID()
	reg.User.ConnID = connID

	if evicted := m.Registry.RegisterOrReplace(reg.User); evicted != nil && evicted.ConnID != connID {
		m.logger.Info("identity taken over", "user_id", reg.User.ID, "old_conn_id", evicted.ConnID, "conn_id", connID)
	}
	m.Clients[connID] = reg.Client

	env, err := models.NewEnvelope(models.EventUpdateIceServers, m.ICE.List())
	if err == nil {
		reg.Client.Send(env)
	}
	m.logger.Info("user connected", "conn_id", connID, "user_id", reg.User.ID, "gender", reg.User.Gender, "mobile", reg.User.IsMobile)
}

// handleDisconnect is terminal for the connection. Failures during cleanup
// are logged and swallowed.
func (m *ManagerService) handleDisconnect(client Client) {
	connID := client.GetConnID()
	if cur, ok := m.Clients[connID]; !ok || cur != client {
		return
	}
	delete(m.Clients, connID)
	defer client.Close()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("disconnect cleanup failed", "conn_id", connID, "err", r)
		}
	}()

	room, inRoom := m.Rooms.RoomForConnection(connID)
	m.Rooms.LeaveAllRooms(connID)
	m.Registry.Remove(connID)
	m.logger.Info("user disconnected", "conn_id", connID)
	if !inRoom {
		return
	}
	m.afterLeave(connID, room)
}

// handleLeave removes the connection from its room. Failures are reported
// back to the client.
func (m *ManagerService) handleLeave(connID string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("leave failed", "conn_id", connID, "err", r)
			m.sendTo(connID, errorEnvelope("Failed to leave the room", nil))
		}
	}()

	room, ok := m.leave(connID)
	if !ok {
		m.logger.Debug("leave without room", "conn_id", connID)
		return
	}
	m.logger.Info("user left room", "conn_id", connID, "room_id", room.ID)
}

// handleNext leaves the current room and puts the caller back through
// matching with the same room type, once.
func (m *ManagerService) handleNext(connID string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("next failed", "conn_id", connID, "err", r)
			m.sendTo(connID, errorEnvelope("Failed to leave the room", nil))
		}
	}()

	user, ok := m.Registry.LookupByConnection(connID)
	if !ok {
		m.disconnectWithError(connID, ErrNotRegistered)
		return
	}
	room, ok := m.leave(connID)
	if !ok {
		m.sendTo(connID, errorEnvelope(ErrNotInRoom.Error(), nil))
		return
	}
	m.logger.Info("user requested next partner", "conn_id", connID, "room_id", room.ID, "room_type", room.Type)
	m.join(connID, room.Type, user)
}

func (m *ManagerService) leave(connID string) (*models.Room, bool) {
	room, ok := m.Rooms.RoomForConnection(connID)
	m.Rooms.LeaveAllRooms(connID)
	if !ok {
		return nil, false
	}
	m.afterLeave(connID, room)
	return room, true
}

// afterLeave notifies the vacated room and rebalances it: a lone remaining
// occupant is taken out and matched again exactly once.
func (m *ManagerService) afterLeave(leaver string, room *models.Room) {
	m.emitRoom(room, "", models.EventUserLeft, models.UserLeftPayload{SocketID: leaver})

	if room.Size() != 1 {
		return
	}
	lone := room.Participants()[0]
	user, ok := m.Registry.LookupByConnection(lone)
	if !ok {
		m.logger.Warn("lone occupant has no session", "conn_id", lone, "room_id", room.ID)
		return
	}
	if _, ok := m.Clients[lone]; !ok {
		m.logger.Warn("lone occupant has no connection", "conn_id", lone, "room_id", room.ID)
		return
	}

	m.Rooms.LeaveAllRooms(lone)
	m.logger.Info("rematching lone occupant", "conn_id", lone, "room_id", room.ID, "room_type", room.Type)
	m.join(lone, room.Type, user)
}

// handleJoin requires a registered connection. A connection already in a room
// leaves it first, with the usual notification and rebalancing.
func (m *ManagerService) handleJoin(connID string, roomType models.RoomType) {
	user, ok := m.Registry.LookupByConnection(connID)
	if !ok {
		m.disconnectWithError(connID, ErrNotRegistered)
		return
	}
	m.leave(connID)
	m.join(connID, roomType, user)
}

// join runs matching for connID and starts the room once it is viable.
func (m *ManagerService) join(connID string, roomType models.RoomType, user *models.User) {
	room, err := m.Rooms.JoinRoom(connID, roomType, user)
	if err != nil {
		m.logger.Error("join failed", "conn_id", connID, "room_type", roomType, "err", err)
		m.sendTo(connID, errorEnvelope("Failed to join a room", nil))
		return
	}

	m.emitRoom(room, "", models.EventUserJoined, models.UserJoinedPayload{
		SocketID:     connID,
		Username:     user.Username,
		Gender:       user.Gender,
		RoomID:       room.ID,
		Participants: m.Rooms.OccupantsOf(room.ID),
	})
	m.logger.Info("user joined room", "conn_id", connID, "room_id", room.ID, "room_type", roomType, "occupants", room.Size())
	m.startRoom(room.ID)
}

// startRoom broadcasts the relay configuration once a room holds two or more
// occupants and schedules the offerer nomination after the settling delay.
func (m *ManagerService) startRoom(roomID string) {
	room, ok := m.Rooms.Room(roomID)
	if !ok || room.Size() < 2 {
		return
	}

	m.emitRoom(room, "", models.EventRoomStart, m.ICE.Current())
	snapshot := room.Participants()
	m.logger.Info("room started", "room_id", room.ID, "occupants", len(snapshot))
	m.recordCallStart(room, snapshot)

	m.after(m.settlingDelay, func() { m.nominateOfferer(room, snapshot) })
}

// nominateOfferer asks one occupant to send the first offer. Membership is
// read at fire time; an emptied room falls back to the occupants it started
// with, so a participant that left during the delay can still be nominated.
// With revalidation enabled, rooms that are gone or below two occupants are
// skipped instead.
func (m *ManagerService) nominateOfferer(room *models.Room, snapshot []string) {
	var candidates []string
	if m.revalidateOfferer {
		live, ok := m.Rooms.Room(room.ID)
		if !ok || live.Size() < 2 {
			m.logger.Info("offerer nomination skipped", "room_id", room.ID)
			return
		}
		candidates = live.Participants()
	} else {
		candidates = room.Participants()
		if len(candidates) == 0 {
			candidates = snapshot
		}
	}
	if len(candidates) == 0 {
		return
	}

	offerer := candidates[0]
	m.emit(offerer, models.EventRoomOfferer, nil)
	m.logger.Info("offerer nominated", "room_id", room.ID, "conn_id", offerer)
}

// handleStatus records camera/audio flags and tells the rest of the room.
func (m *ManagerService) handleStatus(connID string, status models.Status) {
	user, ok := m.Registry.UpdateStatus(connID, status)
	if !ok || user.RoomID == "" {
		return
	}
	room, ok := m.Rooms.Room(user.RoomID)
	if !ok {
		return
	}
	m.emitRoom(room, connID, models.EventStatusUpdate, models.StatusUpdatePayload{
		UserID:    user.ID,
		RoomUsers: m.Rooms.OccupantsOf(room.ID),
	})
}

// handleMessage appends a chat line and sends the whole history to the room.
// Senders outside a room are ignored.
func (m *ManagerService) handleMessage(connID, text string) {
	user, ok := m.Registry.LookupByConnection(connID)
	if !ok || user.RoomID == "" {
		return
	}
	messages, err := m.Rooms.AddMessage(user.RoomID, user, text)
	if err != nil {
		m.logger.Debug("message dropped", "conn_id", connID, "err", err)
		return
	}
	room, ok := m.Rooms.Room(user.RoomID)
	if !ok {
		return
	}
	m.emitRoom(room, "", models.EventMessageReceive, messages)
}
