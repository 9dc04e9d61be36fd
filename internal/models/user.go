package models

// Gender is the self-asserted gender a connection registers with.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User is the live record of one signaling connection.
// Identity is client-asserted and never authenticated.
type User struct {
	// ID is the numeric identity the client connected with.
	ID int64 `json:"id"`
	// ConnID is the opaque identifier of the underlying connection.
	ConnID   string `json:"socketId"`
	Gender   Gender `json:"gender"`
	Username string `json:"username"`
	// IsMobile enables the SDP compatibility patch on relayed descriptions.
	IsMobile bool `json:"isMobile"`
	// RoomID is owned by the room store; empty when the user is not in a room.
	RoomID   string `json:"room,omitempty"`
	CameraOn bool   `json:"cameraOn"`
	AudioOn  bool   `json:"audioOn"`
}

// Status is the last camera/audio state a client reported.
type Status struct {
	CameraOn bool `json:"cameraOn"`
	AudioOn  bool `json:"audioOn"`
}
