package game

import (
	"context"

	"github.com/morehavoc/visiggy/ai"
)

// Generator produces round content and filler lines. Implemented by
// *ai.Client; calls may take seconds and are never made while the room
// actor is processing other commands.
type Generator interface {
	GeneratePrompt(ctx context.Context, theme string, history []string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	GenerateJoke(ctx context.Context, previousPrompt string, jokeHistory []string) string
}

// Judge scores a full set of guesses against the secret prompt.
type Judge interface {
	ScoreGuesses(ctx context.Context, prompt string, guesses []ai.GuessEntry) ([]ai.TeamScore, error)
}

// Notifier fans room events out to connected clients. Rooms only ever
// address recipients by logical identity; the gateway owns the actual
// connections.
type Notifier interface {
	Broadcast(roomID string, msg any)
	ToHost(roomID string, msg any)
	ToTeam(roomID, team string, msg any)
}

// SnapshotStore persists room snapshots. Best effort: failures are
// logged by the registry and never affect gameplay.
type SnapshotStore interface {
	SaveRooms(ctx context.Context, rooms []RoomSnapshot) error
	LoadRooms(ctx context.Context) ([]RoomSnapshot, error)
}

// NetworkSession abstracts one client connection for the gateway pumps.
type NetworkSession interface {
	Close(reason string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}
