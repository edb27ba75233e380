package server

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/api/models"
	"ctchen222/tictactoe-rooms/internal/api/repository"
	"ctchen222/tictactoe-rooms/internal/api/service"
	"ctchen222/tictactoe-rooms/internal/db"
	"ctchen222/tictactoe-rooms/internal/hub"
	"ctchen222/tictactoe-rooms/internal/monitor"
	"ctchen222/tictactoe-rooms/pkg/proto"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	users service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	users := service.NewUserService(repository.NewUserRepository(conn), "test-secret", time.Hour)

	metrics := monitor.NewMetrics("test", nil)
	h := hub.NewHub(hub.Config{SendBuffer: 64}, hub.WithMetrics(metrics))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	srv := NewServer(h, WithUsers(users), WithMetrics(metrics.Handler()), WithSendBuffer(64))
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return &testServer{Server: ts, users: users}
}

func (ts *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame["type"] == typ {
			return frame
		}
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	code, body := get(t, ts.URL+"/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"content":"ok"`)
}

func TestServer_WebSocketRoomFlow(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "")

	first := readFrame(t, conn)
	assert.Equal(t, proto.TypeRoomsUpdated, first["type"])
	assert.Equal(t, []any{}, first["rooms"])

	require.NoError(t, conn.WriteJSON(proto.ClientToServerMessage{Type: proto.TypeCreateRoom, RoomName: "lobby"}))
	joined := readUntil(t, conn, proto.TypeRoomJoined)
	assert.Equal(t, "X", joined["mark"])

	code, body := get(t, ts.URL+"/rooms")
	require.Equal(t, http.StatusOK, code)
	var rooms struct {
		Extras struct {
			List []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"list"`
		} `json:"extras"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &rooms))
	require.Len(t, rooms.Extras.List, 1)
	assert.Equal(t, "lobby", rooms.Extras.List[0].Name)
	assert.Equal(t, "waiting", rooms.Extras.List[0].Status)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	rejected := readUntil(t, conn, proto.TypeError)
	assert.Contains(t, rejected["message"], "malformed message")
}

func TestServer_WebSocketIdentity(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Invalid token is refused before upgrading", func(t *testing.T) {
		code, _ := get(t, ts.URL+"/ws?token=bogus")
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("Guest id must be a UUID", func(t *testing.T) {
		code, _ := get(t, ts.URL+"/ws?playerId=alice")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Token identifies a registered user", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, ts.users.Register(ctx, &models.RegisterRequest{Username: "alice", Password: "hunter22"}))
		login, err := ts.users.Login(ctx, &models.LoginRequest{Username: "alice", Password: "hunter22"})
		require.NoError(t, err)

		conn := ts.dial(t, "?token="+login.Token)
		readFrame(t, conn)
		require.NoError(t, conn.WriteJSON(proto.ClientToServerMessage{Type: proto.TypeCreateRoom, RoomName: "mine"}))
		joined := readUntil(t, conn, proto.TypeRoomJoined)

		room := joined["room"].(map[string]any)
		assert.Equal(t, []any{login.PlayerID}, room["players"])
	})
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "")
	readFrame(t, conn)

	code, body := get(t, ts.URL+"/metrics")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "test_online_connections 1")
}
