package game

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, store SnapshotStore) *Registry {
	t.Helper()
	reg := NewRegistry(testConfigs(), &MockGenerator{}, &MockJudge{}, store, zerolog.Nop())
	reg.SetNotifier(&recordingNotifier{})
	t.Cleanup(reg.Close)
	return reg
}

func TestCreateRoomAndGet(t *testing.T) {
	reg := newTestRegistry(t, nil)

	code, err := reg.CreateRoom()
	require.NoError(t, err)
	assert.Len(t, code, codeLength)

	room, err := reg.Get(code)
	require.NoError(t, err)
	assert.Equal(t, code, room.ID())

	_, err = reg.Get("NOSUCH")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateRoomCodesAreUnique(t *testing.T) {
	reg := newTestRegistry(t, nil)

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		code, err := reg.CreateRoom()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "room code %q handed out twice", code)
		seen[code] = struct{}{}
	}
}

func TestSaveAllAndRestoreAllRoundTrip(t *testing.T) {
	var saved []RoomSnapshot
	store := &MockSnapshotStore{}
	store.On("SaveRooms", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).([]RoomSnapshot) }).
		Return(nil)

	reg := newTestRegistry(t, store)
	code, err := reg.CreateRoom()
	require.NoError(t, err)
	room, err := reg.Get(code)
	require.NoError(t, err)
	require.NoError(t, room.JoinTeam("Alpha"))
	require.NoError(t, room.JoinTeam("Beta"))

	reg.SaveAll(context.Background())
	require.Len(t, saved, 1)
	want, err := room.Snapshot()
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(want, saved[0]))

	// A fresh registry booting against the same store gets the room back.
	store2 := &MockSnapshotStore{}
	store2.On("LoadRooms", mock.Anything).Return(saved, nil)
	reg2 := newTestRegistry(t, store2)
	require.NoError(t, reg2.RestoreAll(context.Background()))

	restored, err := reg2.Get(code)
	require.NoError(t, err)
	got, err := restored.Snapshot()
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(want, got))

	st, err := restored.State()
	require.NoError(t, err)
	assert.Equal(t, StageLobby, st.Stage)
	assert.Equal(t, []string{"Alpha", "Beta"}, st.Teams)
}

func TestRestoreAllSkipsBadSnapshots(t *testing.T) {
	store := &MockSnapshotStore{}
	store.On("LoadRooms", mock.Anything).Return([]RoomSnapshot{
		{ID: ""},
		{ID: "GOODID", Stage: StageLobby},
	}, nil)

	reg := newTestRegistry(t, store)
	require.NoError(t, reg.RestoreAll(context.Background()))

	_, err := reg.Get("GOODID")
	assert.NoError(t, err)
	assert.Len(t, reg.rooms, 1)
}

func TestRestoreAllKeepsExistingRooms(t *testing.T) {
	reg := newTestRegistry(t, nil)
	code, err := reg.CreateRoom()
	require.NoError(t, err)
	room, err := reg.Get(code)
	require.NoError(t, err)
	require.NoError(t, room.JoinTeam("Alpha"))

	store := &MockSnapshotStore{}
	store.On("LoadRooms", mock.Anything).Return([]RoomSnapshot{
		{ID: code, Stage: StageEnded},
	}, nil)
	reg.store = store

	// The live room wins over a stale stored copy of itself.
	require.NoError(t, reg.RestoreAll(context.Background()))
	same, err := reg.Get(code)
	require.NoError(t, err)
	st, err := same.State()
	require.NoError(t, err)
	assert.Equal(t, StageLobby, st.Stage)
	assert.Equal(t, []string{"Alpha"}, st.Teams)
}

func TestAutoSaveRunsPeriodicallyAndOnShutdown(t *testing.T) {
	saves := make(chan struct{}, 16)
	store := &MockSnapshotStore{}
	store.On("SaveRooms", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { saves <- struct{}{} }).
		Return(nil)

	reg := newTestRegistry(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.AutoSave(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-saves:
	case <-time.After(2 * time.Second):
		t.Fatal("no periodic save happened")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("autosave did not stop on cancel")
	}
	// The shutdown path does one last save.
	select {
	case <-saves:
	default:
		t.Fatal("no final save on shutdown")
	}
}

func TestSaveAllWithoutStoreIsNoOp(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.CreateRoom()
	require.NoError(t, err)
	reg.SaveAll(context.Background())
	require.NoError(t, reg.RestoreAll(context.Background()))
}
