package game

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxCodeAttempts = 16

// Registry owns every live room. It is the only structure shared across
// rooms and the unit of mutual exclusion for lookups; room internals are
// guarded by their own actors.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	configs   RoomConfigs
	notifier  Notifier
	generator Generator
	judge     Judge
	store     SnapshotStore // nil when persistence is disabled
	log       zerolog.Logger
}

func NewRegistry(configs RoomConfigs, generator Generator, judge Judge, store SnapshotStore, log zerolog.Logger) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		configs:   configs,
		generator: generator,
		judge:     judge,
		store:     store,
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// SetNotifier wires the gateway in after construction; the gateway needs
// the registry for lookups, so the dependency runs both ways.
func (reg *Registry) SetNotifier(n Notifier) {
	reg.notifier = n
}

// CreateRoom allocates an unused code, starts the room actor and returns
// the code.
func (reg *Registry) CreateRoom() (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for range maxCodeAttempts {
		code := newRoomCode()
		if _, exists := reg.rooms[code]; exists {
			continue
		}
		room := newRoom(code, reg.configs, reg.notifier, reg.generator, reg.judge, reg.saveOnEnded, reg.log)
		reg.rooms[code] = room
		go room.run()
		reg.log.Info().Str("room", code).Msg("room created")
		return code, nil
	}

	// With a 32^6 code space this does not happen outside of a broken
	// random source.
	return "", ErrRoomNotFound
}

func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (reg *Registry) snapshotAll() []RoomSnapshot {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	snaps := make([]RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		snap, err := room.Snapshot()
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// SaveAll persists every room. Best effort: failures are logged and the
// game carries on unaffected.
func (reg *Registry) SaveAll(ctx context.Context) {
	if reg.store == nil {
		return
	}
	snaps := reg.snapshotAll()
	if err := reg.store.SaveRooms(ctx, snaps); err != nil {
		reg.log.Error().Err(err).Msg("failed to save rooms")
		return
	}
	reg.log.Debug().Int("rooms", len(snaps)).Msg("rooms saved")
}

// RestoreAll repopulates the registry from the store on startup.
// Connections and in-flight round state are gone by definition; restored
// rooms re-enter a safe stage (see Room.applySnapshot).
func (reg *Registry) RestoreAll(ctx context.Context) error {
	if reg.store == nil {
		return nil
	}
	snaps, err := reg.store.LoadRooms(ctx)
	if err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, snap := range snaps {
		if snap.ID == "" {
			reg.log.Warn().Msg("skipping room snapshot without id")
			continue
		}
		if _, exists := reg.rooms[snap.ID]; exists {
			continue
		}
		room := newRoom(snap.ID, reg.configs, reg.notifier, reg.generator, reg.judge, reg.saveOnEnded, reg.log)
		room.applySnapshot(snap)
		reg.rooms[snap.ID] = room
		go room.run()
	}
	reg.log.Info().Int("rooms", len(snaps)).Msg("rooms restored")
	return nil
}

// AutoSave persists rooms on a fixed interval until ctx is cancelled,
// then does one final save.
func (reg *Registry) AutoSave(ctx context.Context, interval time.Duration) {
	if reg.store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reg.SaveAll(ctx)
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			reg.SaveAll(saveCtx)
			cancel()
			return
		}
	}
}

// saveOnEnded is the room callback for a finished game: one last save so
// the final leaderboard survives a restart.
func (reg *Registry) saveOnEnded(string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reg.SaveAll(ctx)
}

// Close stops every room actor.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, room := range reg.rooms {
		room.Close()
	}
}
