package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/morehavoc/visiggy/ai"
)

// --- Generator ---

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GeneratePrompt(ctx context.Context, theme string, history []string) (string, error) {
	args := m.Called(ctx, theme, history)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) GenerateJoke(ctx context.Context, previousPrompt string, jokeHistory []string) string {
	args := m.Called(ctx, previousPrompt, jokeHistory)
	return args.String(0)
}

// --- Judge ---

type MockJudge struct {
	mock.Mock
}

func (m *MockJudge) ScoreGuesses(ctx context.Context, prompt string, guesses []ai.GuessEntry) ([]ai.TeamScore, error) {
	args := m.Called(ctx, prompt, guesses)
	if v := args.Get(0); v != nil {
		return v.([]ai.TeamScore), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- SnapshotStore ---

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) SaveRooms(ctx context.Context, rooms []RoomSnapshot) error {
	args := m.Called(ctx, rooms)
	return args.Error(0)
}

func (m *MockSnapshotStore) LoadRooms(ctx context.Context) ([]RoomSnapshot, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]RoomSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(reason string) {
	m.Called(reason)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- recording Notifier ---

// sentMessage captures one fan-out call: who it went to and what it was.
type sentMessage struct {
	kind   string // "broadcast", "host" or "team"
	roomID string
	team   string
	msg    any
}

func (s sentMessage) msgType() string {
	return messageType(s.msg)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Broadcast(roomID string, msg any) {
	n.record(sentMessage{kind: "broadcast", roomID: roomID, msg: msg})
}

func (n *recordingNotifier) ToHost(roomID string, msg any) {
	n.record(sentMessage{kind: "host", roomID: roomID, msg: msg})
}

func (n *recordingNotifier) ToTeam(roomID, team string, msg any) {
	n.record(sentMessage{kind: "team", roomID: roomID, team: team, msg: msg})
}

func (n *recordingNotifier) record(s sentMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, s)
}

func (n *recordingNotifier) all() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

// last returns the most recent message of the given wire type.
func (n *recordingNotifier) last(msgType string) (sentMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if messageType(n.sent[i].msg) == msgType {
			return n.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (n *recordingNotifier) count(msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if messageType(s.msg) == msgType {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// messageType reads the wire "type" discriminator off any outbound
// message struct.
func messageType(msg any) string {
	data, err := json.Marshal(msg)
	if err != nil {
		return ""
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Type
}

// --- fake clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
