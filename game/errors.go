package game

import "errors"

// Protocol errors reported back to the originating client only; room
// state is never changed by a rejected action.
var (
	ErrRoomNotFound       = errors.New("Room not found")
	ErrRoomClosed         = errors.New("Room closed")
	ErrGameAlreadyStarted = errors.New("Game already started")
	ErrTeamNameTaken      = errors.New("Team name already taken")
	ErrNotEnoughTeams     = errors.New("Need at least 2 teams")
	ErrNoActiveRound      = errors.New("No active round")
	ErrAlreadySubmitted   = errors.New("Guess already submitted")
	ErrUnknownTeam        = errors.New("Unknown team")
	ErrNotInIntermission  = errors.New("No round waiting to start")
	ErrInvalidReconnect   = errors.New("Invalid reconnection")
)
