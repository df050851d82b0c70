package game

import "time"

// Stage is the coarse lifecycle phase of a room.
type Stage string

const (
	StageLobby        Stage = "lobby"
	StagePlaying      Stage = "playing"
	StageIntermission Stage = "intermission"
	StageEnded        Stage = "ended"
)

// Team is one competing party in a room. The name doubles as the key.
type Team struct {
	Name  string
	Score int
}

// Guess is one team's submission for the current round.
type Guess struct {
	Text        string
	SubmittedAt time.Time
}

// RoundContent is a generated (prompt, image) pair for one round.
type RoundContent struct {
	Prompt   string
	ImageURL string
}

// Round is the ephemeral per-round state, owned by its Room and cleared
// right after resolution.
type Round struct {
	Index    int
	Prompt   string
	ImageURL string
	// StartedAt is set when the guessing window opens, after the
	// client-side countdown.
	StartedAt time.Time
	Duration  time.Duration

	Guesses map[string]Guess

	// open means the guessing window has started; resolved means
	// resolution has been claimed. Resolution runs at most once no
	// matter how often the two triggers fire.
	open     bool
	resolved bool
}

// RoomConfigs are the per-room gameplay knobs, fixed at room creation.
type RoomConfigs struct {
	DefaultRounds   int
	RoundDuration   time.Duration
	CountdownOffset time.Duration
	// AutoAdvance starts the next round on its own after AdvanceDelay
	// instead of waiting in intermission for the host.
	AutoAdvance   bool
	AdvanceDelay  time.Duration
	SkipDelay     time.Duration
	GameOverDelay time.Duration
}

// DefaultConfigs mirrors the cadence of the original game: 60 second
// rounds, five of them, host-gated intermissions.
func DefaultConfigs() RoomConfigs {
	return RoomConfigs{
		DefaultRounds:   5,
		RoundDuration:   60 * time.Second,
		CountdownOffset: 4 * time.Second,
		AutoAdvance:     false,
		AdvanceDelay:    5 * time.Second,
		SkipDelay:       2 * time.Second,
		GameOverDelay:   3 * time.Second,
	}
}

const (
	minTeamsToStart = 2
	maxRounds       = 10
)

// TeamResult is one line of a round's outcome.
type TeamResult struct {
	Team  string `json:"team"`
	Score int    `json:"score"`
	Guess string `json:"guess"`
}

// LeaderboardEntry is one line of the cumulative standings.
type LeaderboardEntry struct {
	Team  string `json:"team"`
	Score int    `json:"score"`
}

// ImageRecord remembers a finished round's image for the game-over recap.
type ImageRecord struct {
	Round    int    `json:"round"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"`
}

// RoomState is the connection-free view of a room handed to the gateway
// for host joins and reconnection re-sync.
type RoomState struct {
	ID           string
	Stage        Stage
	Teams        []string
	Scores       map[string]int
	CurrentRound int
	TotalRounds  int
}

// TeamSnapshot and RoomSnapshot are the durable fields of a room.
// Connections, timers and in-flight content never appear here.
type TeamSnapshot struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RoomSnapshot struct {
	ID            string         `json:"id"`
	Stage         Stage          `json:"stage"`
	Theme         string         `json:"theme"`
	TotalRounds   int            `json:"totalRounds"`
	CurrentRound  int            `json:"currentRound"`
	RoundsPlayed  int            `json:"roundsPlayed"`
	CreatedAt     time.Time      `json:"createdAt"`
	Teams         []TeamSnapshot `json:"teams"`
	PromptHistory []string       `json:"promptHistory,omitempty"`
	ImageHistory  []ImageRecord  `json:"imageHistory,omitempty"`
}
