package chathub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidchat/backend/internal/models"
)

const rawOffer = "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 0 111\r\na=rtpmap:0 PCMU/8000\r\na=rtpmap:111 opus/48000/2\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=rtpmap:96 VP8/90000\r\n"

func pairedHarness(t *testing.T, aMobile bool) (*harness, *MockClient, *MockClient) {
	h := newHarness(t)
	a := h.connect("A", 1, models.GenderMale, aMobile)
	b := h.connect("B", 2, models.GenderMale, false)
	h.join("A", models.RoomTypeOpen)
	h.join("B", models.RoomTypeOpen)
	h.resetAll()
	return h, a, b
}

func offerPayload(t *testing.T, sdp string) models.OfferPayload {
	raw, err := json.Marshal(models.SessionDescription{Type: "offer", SDP: sdp})
	require.NoError(t, err)
	return models.OfferPayload{Offer: raw}
}

func TestRelayOffer_MobilePatched(t *testing.T) {
	h, a, b := pairedHarness(t, true)
	h.send("A", models.EventStatusUpdate, models.Status{CameraOn: false, AudioOn: true})

	h.send("A", models.EventRTCOffer, offerPayload(t, rawOffer))

	assert.Zero(t, a.Count(models.EventRTCOffer), "never echoed")
	var relayed models.RelayedOffer
	require.True(t, b.LastPayload(models.EventRTCOffer, &relayed))
	assert.False(t, relayed.CameraOn)
	assert.True(t, relayed.AudioOn)

	var desc models.SessionDescription
	require.NoError(t, json.Unmarshal(relayed.Offer, &desc))
	assert.Equal(t, "offer", desc.Type)
	assert.Contains(t, desc.SDP, "m=audio 9 UDP/TLS/RTP/SAVPF 111 0\r\n")
	assert.Contains(t, desc.SDP, "m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=extmap-allow-mixed\r\n")
}

func TestRelayAnswer_DesktopUntouched(t *testing.T) {
	h, _, b := pairedHarness(t, false)
	raw, err := json.Marshal(models.SessionDescription{Type: "answer", SDP: rawOffer})
	require.NoError(t, err)

	h.send("A", models.EventRTCAnswer, models.AnswerPayload{Answer: raw})

	var relayed models.RelayedAnswer
	require.True(t, b.LastPayload(models.EventRTCAnswer, &relayed))
	var desc models.SessionDescription
	require.NoError(t, json.Unmarshal(relayed.Answer, &desc))
	assert.Equal(t, rawOffer, desc.SDP)
}

func TestRelayOffer_NonObjectPassesThrough(t *testing.T) {
	h, _, b := pairedHarness(t, true)

	h.send("A", models.EventRTCOffer, models.OfferPayload{Offer: json.RawMessage(`"not-a-description"`)})

	var relayed models.RelayedOffer
	require.True(t, b.LastPayload(models.EventRTCOffer, &relayed))
	assert.JSONEq(t, `"not-a-description"`, string(relayed.Offer))
}

func TestRelayCandidate(t *testing.T) {
	h, a, b := pairedHarness(t, false)
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host","sdpMid":"0"}`)

	h.send("B", models.EventRTCCandidate, models.CandidatePayload{Candidate: candidate})

	assert.Zero(t, b.Count(models.EventRTCCandidate))
	var relayed models.CandidatePayload
	require.True(t, a.LastPayload(models.EventRTCCandidate, &relayed))
	assert.JSONEq(t, string(candidate), string(relayed.Candidate))
}

func TestRelay_PreconditionsCloseConnection(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A", 1, models.GenderMale, false)

	h.send("A", models.EventRTCOffer, offerPayload(t, rawOffer))

	var errPayload models.ErrorPayload
	require.True(t, a.LastPayload(models.EventError, &errPayload))
	assert.Equal(t, ErrNotInRoom.Error(), errPayload.Message)
	assert.True(t, a.Closed())

	ghost := NewMockClient("G")
	h.hub.Clients["G"] = ghost
	h.send("G", models.EventRTCCandidate, models.CandidatePayload{Candidate: json.RawMessage(`{}`)})
	require.True(t, ghost.LastPayload(models.EventError, &errPayload))
	assert.Equal(t, ErrNotRegistered.Error(), errPayload.Message)
	assert.True(t, ghost.Closed())
}

func TestRelaySignal(t *testing.T) {
	h := newHarness(t)
	lonely := h.connect("L", 9, models.GenderMale, false)
	h.send("L", models.EventSignal, map[string]string{"kind": "ping"})
	assert.False(t, lonely.Closed(), "signal without room is ignored")
	assert.Equal(t, []string{models.EventUpdateIceServers}, lonely.Types())

	h, a, b := pairedHarness(t, false)
	h.send("A", models.EventSignal, map[string]string{"kind": "ping"})

	assert.Zero(t, a.Count(models.EventSignal))
	env, ok := b.Last(models.EventSignal)
	require.True(t, ok)
	assert.JSONEq(t, `{"kind":"ping"}`, string(env.Payload))
}

func TestCompatibleDescription(t *testing.T) {
	assert.Nil(t, []byte(compatibleDescription(nil, true)))
	assert.JSONEq(t, `{"type":"offer"}`, string(compatibleDescription(json.RawMessage(`{"type":"offer"}`), true)))

	raw := json.RawMessage(`{"type":"offer","sdp":"not sdp"}`)
	out := compatibleDescription(raw, true)
	assert.JSONEq(t, string(raw), string(out))
}
