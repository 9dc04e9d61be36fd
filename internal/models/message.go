package models

// Message is one chat line posted to a room.
type Message struct {
	Value    string `json:"value"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Truncate clamps value to at most maxLen characters. A non-positive maxLen
// leaves the value untouched.
func Truncate(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	return string(runes[:maxLen])
}
