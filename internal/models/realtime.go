package models

import "encoding/json"

// Event names on the signaling channel.
const (
	EventError            = "error"
	EventUpdateIceServers = "updateIceServers"

	EventRoomJoin    = "room:join"
	EventRoomLeave   = "room:leave"
	EventRoomNext    = "room:next"
	EventRoomStart   = "room:start"
	EventRoomOfferer = "room:start_offerer"

	EventUserJoined = "user:joined"
	EventUserLeft   = "user:left"

	EventMessageSend    = "message:send"
	EventMessageReceive = "message:receive"

	EventStatusUpdate = "status:update"
	EventSignal       = "signal"

	EventRTCOffer     = "rtc:offer"
	EventRTCAnswer    = "rtc:answer"
	EventRTCCandidate = "rtc:candidate"
)

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}

type JoinPayload struct {
	RoomType string `json:"roomType"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type OfferPayload struct {
	Offer json.RawMessage `json:"offer"`
}

type AnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
}

type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// SessionDescription is the {type, sdp} object browsers send for offers and answers.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// RelayedOffer is forwarded to the other occupants of the sender's room.
type RelayedOffer struct {
	Offer    json.RawMessage `json:"offer"`
	CameraOn bool            `json:"cameraOn"`
	AudioOn  bool            `json:"audioOn"`
}

type RelayedAnswer struct {
	Answer   json.RawMessage `json:"answer"`
	CameraOn bool            `json:"cameraOn"`
	AudioOn  bool            `json:"audioOn"`
}

type UserJoinedPayload struct {
	SocketID     string `json:"socketId"`
	Username     string `json:"username"`
	Gender       Gender `json:"gender"`
	RoomID       string `json:"roomId"`
	Participants []User `json:"participants"`
}

type UserLeftPayload struct {
	SocketID string `json:"socketId"`
}

type StatusUpdatePayload struct {
	UserID    int64  `json:"userId"`
	RoomUsers []User `json:"roomUsers"`
}

type ErrorPayload struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
