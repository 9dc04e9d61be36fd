package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidchat/backend/internal/api/handler"
	"vidchat/backend/internal/chathub"
	"vidchat/backend/internal/config"
	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
)

const secret = "test-secret"

type testServer struct {
	router *gin.Engine
	http   *httptest.Server
	ice    *iceconfig.Manager
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := session.NewMemoryRegistry(logger)
	rooms := chathub.NewMatcherService(registry, chathub.WithMatcherLogger(logger))
	ice := iceconfig.NewManager(
		[]webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		webrtc.ICETransportPolicyAll, nil, logger)
	hub := chathub.NewManagerService(registry, rooms, ice,
		chathub.WithLogger(logger), chathub.WithSettlingDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	r := gin.New()
	handler.NewHandler(hub, ice, logger).Routes(r, cfg)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return &testServer{router: r, http: srv, ice: ice}
}

func fullConfig() config.Config {
	return config.Config{
		AdminJWTSecret:     secret,
		MonitoringUsername: "ops",
		MonitoringPassword: "hunter2",
	}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := handler.MintAdminToken([]byte(secret), "tester", time.Hour)
	require.NoError(t, err)
	return token
}

func dial(t *testing.T, s *testServer, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env models.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == eventType {
			return env
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestICEServers_PublicList(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := s.do(t, http.MethodGet, "/api/ice-servers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"urls":["stun:stun.example.com:3478"]}]`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/ice-servers", `{"urls":"stun:x.example.com"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "admin API is not mounted without a secret")
}

func TestICEServers_RequireAdminToken(t *testing.T) {
	s := newTestServer(t, fullConfig())
	body := `{"urls":"stun:x.example.com"}`

	rec := s.do(t, http.MethodPost, "/api/ice-servers", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := handler.MintAdminToken([]byte("other-secret"), "tester", time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/ice-servers", body, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := handler.MintAdminToken([]byte(secret), "tester", -time.Minute)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/ice-servers", body, expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Len(t, s.ice.List(), 1)
}

func TestICEServers_Mutations(t *testing.T) {
	s := newTestServer(t, fullConfig())
	token := adminToken(t)

	rec := s.do(t, http.MethodPost, "/api/ice-servers",
		`{"urls":["turn:turn.example.com:3478"],"username":"u","credential":"p"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var servers []iceconfig.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))
	require.Len(t, servers, 2)
	assert.Equal(t, "u", servers[1].Username)

	rec = s.do(t, http.MethodPost, "/api/ice-servers", `{"urls":["turn:turn.example.com"]}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "turn needs credentials")

	rec = s.do(t, http.MethodPut, "/api/ice-servers/0", `{"urls":"stun:stun2.example.com"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, iceconfig.StringList{"stun:stun2.example.com"}, s.ice.List()[0].URLs)

	rec = s.do(t, http.MethodPut, "/api/ice-servers/9", `{"urls":"stun:stun2.example.com"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/ice-servers/abc", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/ice-servers/1", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.ice.List(), 1)
}

func TestWebSocket_RejectsInvalidParams(t *testing.T) {
	s := newTestServer(t, config.Config{})
	conn := dial(t, s, "id=abc&gender=robot&username=x&isMobile=false")

	env := readUntil(t, conn, models.EventError)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Contains(t, payload.Fields, "id")
	assert.Contains(t, payload.Fields, "gender")

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocket_ICEPushAndMonitor(t *testing.T) {
	s := newTestServer(t, fullConfig())
	a := dial(t, s, "id=1&gender=female&username=ann&isMobile=false")
	b := dial(t, s, "id=2&gender=female&username=bea&isMobile=true")
	readUntil(t, a, models.EventUpdateIceServers)
	readUntil(t, b, models.EventUpdateIceServers)

	join, err := models.NewEnvelope(models.EventRoomJoin, models.JoinPayload{RoomType: string(models.RoomTypeFiltered)})
	require.NoError(t, err)
	require.NoError(t, a.WriteJSON(join))
	readUntil(t, a, models.EventUserJoined)
	require.NoError(t, b.WriteJSON(join))
	readUntil(t, a, models.EventRoomStart)
	readUntil(t, a, models.EventRoomOfferer)

	rec := s.do(t, http.MethodGet, "/monitor", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/monitor", nil)
	req.SetBasicAuth("ops", "hunter2")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var monitor struct {
		Count int                `json:"count"`
		Rooms []chathub.RoomView `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &monitor))
	require.Equal(t, 1, monitor.Count)
	require.Len(t, monitor.Rooms[0].Participants, 2)
	assert.Equal(t, "ann", monitor.Rooms[0].Participants[0].Username)

	rec = s.do(t, http.MethodPost, "/api/ice-servers", `{"urls":"stun:new.example.com"}`, adminToken(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	env := readUntil(t, b, models.EventUpdateIceServers)
	var pushed []iceconfig.Server
	require.NoError(t, json.Unmarshal(env.Payload, &pushed))
	assert.Len(t, pushed, 2)
}
