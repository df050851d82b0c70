package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Gateway tests run the real HTTP and websocket stack against an
// in-process server. They stay in the lobby stage so no timers or AI
// calls are involved.

type gatewayFixture struct {
	t        *testing.T
	server   *httptest.Server
	registry *Registry
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry(testConfigs(), &MockGenerator{}, &MockJudge{}, nil, zerolog.Nop())
	gateway := NewGateway(registry, zerolog.Nop())
	registry.SetNotifier(gateway)

	engine := gin.New()
	handler := NewHandler(registry, gateway, nil, zerolog.Nop())
	handler.RegisterRoutes(engine)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	t.Cleanup(registry.Close)

	return &gatewayFixture{t: t, server: server, registry: registry}
}

func (f *gatewayFixture) createRoom() string {
	f.t.Helper()
	resp, err := http.Post(f.server.URL+"/api/create-room", "application/json", nil)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	require.Equal(f.t, http.StatusOK, resp.StatusCode)

	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(f.t, body.RoomID, codeLength)
	return body.RoomID
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (f *gatewayFixture) dial() *wsClient {
	f.t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { conn.Close() })
	return &wsClient{t: f.t, conn: conn}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) recv() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

func (c *wsClient) recvType(wantType string) map[string]any {
	c.t.Helper()
	msg := c.recv()
	require.Equal(c.t, wantType, msg["type"], "unexpected message %v", msg)
	return msg
}

func TestCreateRoomEndpoint(t *testing.T) {
	f := newGatewayFixture(t)
	code := f.createRoom()

	_, err := f.registry.Get(code)
	assert.NoError(t, err)
}

func TestHostAndTeamsJoinOverWebsocket(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	host := f.dial()
	host.send(map[string]any{"type": "host:join", "roomId": roomID})
	joined := host.recvType("host:joined")
	assert.Equal(t, roomID, joined["roomId"])
	assert.Equal(t, "lobby", joined["stage"])

	alpha := f.dial()
	alpha.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	// The joiner sees its own join broadcast, then the private confirm.
	broadcast := alpha.recvType("team:joined")
	assert.Equal(t, "Alpha", broadcast["teamName"])
	confirmed := alpha.recvType("team:confirmed")
	assert.Equal(t, roomID, confirmed["roomId"])

	// The host sees the broadcast too.
	hostView := host.recvType("team:joined")
	assert.Equal(t, []any{"Alpha"}, hostView["teams"])
}

func TestDuplicateTeamNameRejected(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	alpha := f.dial()
	alpha.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	alpha.recvType("team:joined")
	alpha.recvType("team:confirmed")

	imposter := f.dial()
	imposter.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	errMsg := imposter.recvType("error")
	assert.Equal(t, ErrTeamNameTaken.Error(), errMsg["message"])

	// The rejected connection is not bound: it must not receive room
	// broadcasts afterwards.
	beta := f.dial()
	beta.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Beta"})
	beta.recvType("team:joined")
	beta.recvType("team:confirmed")

	imposter.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray map[string]any
	assert.Error(t, imposter.conn.ReadJSON(&stray), "unbound client received %v", stray)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newGatewayFixture(t)

	c := f.dial()
	c.send(map[string]any{"type": "team:join", "roomId": "NOSUCH", "teamName": "Alpha"})
	errMsg := c.recvType("error")
	assert.Equal(t, ErrRoomNotFound.Error(), errMsg["message"])
}

func TestOnlyHostCanUseHostControls(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	alpha := f.dial()
	alpha.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	alpha.recvType("team:joined")
	alpha.recvType("team:confirmed")

	alpha.send(map[string]any{"type": "game:start", "numRounds": 3})
	errMsg := alpha.recvType("error")
	assert.Equal(t, "Only host can start game", errMsg["message"])

	alpha.send(map[string]any{"type": "host:skip-round"})
	errMsg = alpha.recvType("error")
	assert.Equal(t, "Only host can do that", errMsg["message"])
}

func TestHostCannotSubmitGuess(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	host := f.dial()
	host.send(map[string]any{"type": "host:join", "roomId": roomID})
	host.recvType("host:joined")

	host.send(map[string]any{"type": "guess:submit", "text": "cheating"})
	errMsg := host.recvType("error")
	assert.Equal(t, "Only teams can submit guesses", errMsg["message"])
}

func TestReconnectRestoresTeamSession(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	alpha := f.dial()
	alpha.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	alpha.recvType("team:joined")
	alpha.recvType("team:confirmed")

	beta := f.dial()
	beta.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Beta"})
	beta.recvType("team:joined")
	beta.recvType("team:confirmed")

	alpha.conn.Close()

	// A fresh connection resumes the same team by room code and name.
	alpha2 := f.dial()
	alpha2.send(map[string]any{"type": "reconnect", "roomId": roomID, "teamName": "Alpha"})
	msg := alpha2.recvType("reconnected")
	assert.Equal(t, "lobby", msg["stage"])
	assert.Equal(t, false, msg["isHost"])
	assert.ElementsMatch(t, []any{"Alpha", "Beta"}, msg["teams"].([]any))
	scores := msg["scores"].(map[string]any)
	assert.Contains(t, scores, "Alpha")

	// The resumed binding receives room traffic again.
	gamma := f.dial()
	gamma.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Gamma"})
	gamma.recvType("team:joined")
	gamma.recvType("team:confirmed")
	broadcast := alpha2.recvType("team:joined")
	assert.Equal(t, "Gamma", broadcast["teamName"])
}

func TestReconnectUnknownTeamRejected(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	c := f.dial()
	c.send(map[string]any{"type": "reconnect", "roomId": roomID, "teamName": "Nobody"})
	errMsg := c.recvType("error")
	assert.Equal(t, ErrInvalidReconnect.Error(), errMsg["message"])
}

func TestReconnectEvictsOldConnection(t *testing.T) {
	f := newGatewayFixture(t)
	roomID := f.createRoom()

	alpha := f.dial()
	alpha.send(map[string]any{"type": "team:join", "roomId": roomID, "teamName": "Alpha"})
	alpha.recvType("team:joined")
	alpha.recvType("team:confirmed")

	// Same identity from a second tab: the newest connection wins and the
	// old one is closed by the server.
	alpha2 := f.dial()
	alpha2.send(map[string]any{"type": "reconnect", "roomId": roomID, "teamName": "Alpha"})
	alpha2.recvType("reconnected")

	alpha.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := alpha.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestGatewayLogsCarryConnectionID(t *testing.T) {
	var buf bytes.Buffer
	registry := NewRegistry(testConfigs(), &MockGenerator{}, &MockJudge{}, nil, zerolog.Nop())
	t.Cleanup(registry.Close)
	gw := NewGateway(registry, zerolog.New(&buf))

	session := &MockNetworkSession{}
	session.On("Read").Return(nil, errors.New("gone")).Once()
	session.On("Close", mock.Anything).Maybe()
	gw.Serve(session)

	// Every connection gets a session id that threads through the
	// gateway's log lines.
	var logged struct {
		Conn    string `json:"conn"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, "client connected", logged.Message)
	_, err := uuid.Parse(logged.Conn)
	assert.NoError(t, err, "conn field %q is not a session id", logged.Conn)
}

func TestUnknownMessageType(t *testing.T) {
	f := newGatewayFixture(t)

	c := f.dial()
	c.send(map[string]any{"type": "made:up"})
	errMsg := c.recvType("error")
	assert.Equal(t, "Invalid message", errMsg["message"])
}
