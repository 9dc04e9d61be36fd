package chathub

import (
	"encoding/json"
	"errors"

	"vidchat/backend/internal/models"
	"vidchat/backend/internal/sdpcompat"
)

var (
	ErrNotRegistered = errors.New("user not initialized: reconnect with valid connection parameters")
	ErrNotInRoom     = errors.New("user is not in a room")
)

// relayTarget resolves the sender and its room for offer/answer/candidate.
func (m *ManagerService) relayTarget(connID string) (*models.User, *models.Room, error) {
	user, ok := m.Registry.LookupByConnection(connID)
	if !ok {
		return nil, nil, ErrNotRegistered
	}
	if user.RoomID == "" {
		return nil, nil, ErrNotInRoom
	}
	room, ok := m.Rooms.Room(user.RoomID)
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	return user, room, nil
}

// disconnectWithError tells the client why and closes its connection. The
// regular disconnect path cleans up once the read pump exits.
func (m *ManagerService) disconnectWithError(connID string, err error) {
	m.logger.Warn("closing connection", "conn_id", connID, "err", err)
	c, ok := m.Clients[connID]
	if !ok {
		return
	}
	c.Send(errorEnvelope(err.Error(), nil))
	c.Close()
}

func (m *ManagerService) relayOffer(connID string, offer json.RawMessage) {
	user, room, err := m.relayTarget(connID)
	if err != nil {
		m.disconnectWithError(connID, err)
		return
	}
	m.emitRoom(room, connID, models.EventRTCOffer, models.RelayedOffer{
		Offer:    compatibleDescription(offer, user.IsMobile),
		CameraOn: user.CameraOn,
		AudioOn:  user.AudioOn,
	})
	m.logger.Debug("offer relayed", "conn_id", connID, "room_id", room.ID)
}

func (m *ManagerService) relayAnswer(connID string, answer json.RawMessage) {
	user, room, err := m.relayTarget(connID)
	if err != nil {
		m.disconnectWithError(connID, err)
		return
	}
	m.emitRoom(room, connID, models.EventRTCAnswer, models.RelayedAnswer{
		Answer:   compatibleDescription(answer, user.IsMobile),
		CameraOn: user.CameraOn,
		AudioOn:  user.AudioOn,
	})
	m.logger.Debug("answer relayed", "conn_id", connID, "room_id", room.ID)
}

func (m *ManagerService) relayCandidate(connID string, candidate json.RawMessage) {
	_, room, err := m.relayTarget(connID)
	if err != nil {
		m.disconnectWithError(connID, err)
		return
	}
	m.emitRoom(room, connID, models.EventRTCCandidate, models.CandidatePayload{Candidate: candidate})
	m.logger.Debug("candidate relayed", "conn_id", connID, "room_id", room.ID)
}

// relayGenericSignal forwards payload untouched. Senders outside a room are
// ignored.
func (m *ManagerService) relayGenericSignal(connID string, payload json.RawMessage) {
	room, ok := m.Rooms.RoomForConnection(connID)
	if !ok {
		return
	}
	m.toRoom(room, models.Envelope{Type: models.EventSignal, Payload: payload}, connID)
}

// compatibleDescription patches the sdp of a {type, sdp} description sent by
// a mobile client. Anything else is forwarded as received.
func compatibleDescription(raw json.RawMessage, mobile bool) json.RawMessage {
	var desc models.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil || desc.SDP == "" {
		return raw
	}
	if mobile {
		desc.SDP = sdpcompat.Patch(desc.SDP)
	}
	out, err := json.Marshal(desc)
	if err != nil {
		return raw
	}
	return out
}
