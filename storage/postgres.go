package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/morehavoc/visiggy/game"
)

// PostgresStore persists room snapshots as JSONB rows, one per room.
// It only ever sees durable fields; connections and timers never reach
// this layer.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresStore(ctx context.Context, connString string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  log.With().Str("component", "storage").Logger(),
	}, nil
}

func (s *PostgresStore) SaveRooms(ctx context.Context, rooms []game.RoomSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, room := range rooms {
		state, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("storage: marshal room %s: %w", room.ID, err)
		}
		batch.Queue(
			`INSERT INTO rooms (id, state, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
			room.ID, state,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage: save rooms: %w", err)
	}
	return tx.Commit(ctx)
}

// LoadRooms returns every well-formed snapshot. Malformed rows are
// logged and skipped; a bad row must not block a restart.
func (s *PostgresStore) LoadRooms(ctx context.Context) ([]game.RoomSnapshot, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, state FROM rooms ORDER BY updated_at")
	if err != nil {
		return nil, fmt.Errorf("storage: load rooms: %w", err)
	}
	defer rows.Close()

	var snaps []game.RoomSnapshot
	for rows.Next() {
		var id string
		var state []byte
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("storage: scan room: %w", err)
		}

		var snap game.RoomSnapshot
		if err := json.Unmarshal(state, &snap); err != nil {
			s.log.Warn().Err(err).Str("room", id).Msg("skipping malformed room snapshot")
			continue
		}
		if snap.ID != id {
			s.log.Warn().Str("room", id).Str("state_id", snap.ID).
				Msg("skipping room snapshot with mismatched id")
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: load rooms: %w", err)
	}
	return snaps, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
