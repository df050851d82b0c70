package game

import "github.com/morehavoc/visiggy/ai"

// Commands processed by the room actor. Client-originated commands carry
// an error channel so protocol violations travel back to the offending
// client only; internal commands carry the round index they belong to so
// stale timers and superseded fetches are guaranteed no-ops.

type joinTeamCmd struct {
	name string
	errc chan error
}

type startGameCmd struct {
	theme     string
	numRounds int
	errc      chan error
}

type submitGuessCmd struct {
	team string
	text string
	errc chan error
}

type skipRoundCmd struct{ errc chan error }

type nextRoundCmd struct{ errc chan error }

type overrideScoreCmd struct {
	team     string
	newScore int
	errc     chan error
}

type stateCmd struct{ reply chan RoomState }

type snapshotCmd struct{ reply chan RoomSnapshot }

type contentReadyCmd struct {
	seq     int
	content RoundContent
}

type contentFailedCmd struct {
	seq int
	err error
}

type jokeReadyCmd struct {
	round int
	text  string
}

type roundOpenCmd struct{ round int }

type deadlineCmd struct{ round int }

type judgeVerdictCmd struct {
	round   int
	verdict []ai.TeamScore
	err     error
}

type advanceCmd struct{}

type retryCmd struct{}

type gameOverCmd struct{}

// run is the actor loop: the single goroutine that owns the room. Every
// mutation funnels through the inbox, so "all teams submitted" and
// "deadline fired" can never race each other.
func (r *Room) run() {
	for {
		select {
		case cmd := <-r.inbox:
			r.dispatch(cmd)
		case <-r.done:
			r.stopRoundTimers()
			return
		}
	}
}

func (r *Room) dispatch(cmd any) {
	switch c := cmd.(type) {
	case joinTeamCmd:
		r.handleTeamJoin(c.name, c.errc)
	case startGameCmd:
		r.handleStartGame(c.theme, c.numRounds, c.errc)
	case submitGuessCmd:
		r.handleSubmitGuess(c.team, c.text, c.errc)
	case skipRoundCmd:
		r.handleSkip(c.errc)
	case nextRoundCmd:
		r.handleNextRound(c.errc)
	case overrideScoreCmd:
		r.handleOverrideScore(c.team, c.newScore, c.errc)
	case stateCmd:
		c.reply <- r.state()
	case snapshotCmd:
		c.reply <- r.snapshot()
	case contentReadyCmd:
		r.handleContentReady(c)
	case contentFailedCmd:
		r.handleContentFailed(c)
	case jokeReadyCmd:
		r.handleJoke(c)
	case roundOpenCmd:
		r.handleRoundOpen(c)
	case deadlineCmd:
		r.handleDeadline(c)
	case judgeVerdictCmd:
		r.handleJudgeVerdict(c)
	case advanceCmd:
		r.handleAdvance()
	case retryCmd:
		r.handleRetry()
	case gameOverCmd:
		r.handleGameOver()
	}
}

// post delivers a command unless the room has shut down. Blocking keeps
// submissions in program order behind whatever the actor is applying.
func (r *Room) post(cmd any) bool {
	select {
	case r.inbox <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) call(cmd any, errc chan error) error {
	if !r.post(cmd) {
		return ErrRoomClosed
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// ---- exported command API (gateway / registry facing) ----

func (r *Room) ID() string { return r.id }

func (r *Room) JoinTeam(name string) error {
	errc := make(chan error, 1)
	return r.call(joinTeamCmd{name: name, errc: errc}, errc)
}

func (r *Room) StartGame(theme string, numRounds int) error {
	errc := make(chan error, 1)
	return r.call(startGameCmd{theme: theme, numRounds: numRounds, errc: errc}, errc)
}

func (r *Room) SubmitGuess(team, text string) error {
	errc := make(chan error, 1)
	return r.call(submitGuessCmd{team: team, text: text, errc: errc}, errc)
}

func (r *Room) SkipRound() error {
	errc := make(chan error, 1)
	return r.call(skipRoundCmd{errc: errc}, errc)
}

func (r *Room) NextRound() error {
	errc := make(chan error, 1)
	return r.call(nextRoundCmd{errc: errc}, errc)
}

func (r *Room) OverrideScore(team string, newScore int) error {
	errc := make(chan error, 1)
	return r.call(overrideScoreCmd{team: team, newScore: newScore, errc: errc}, errc)
}

// State returns a consistent connection-free view of the room.
func (r *Room) State() (RoomState, error) {
	reply := make(chan RoomState, 1)
	if !r.post(stateCmd{reply: reply}) {
		return RoomState{}, ErrRoomClosed
	}
	select {
	case st := <-reply:
		return st, nil
	case <-r.done:
		return RoomState{}, ErrRoomClosed
	}
}

// Snapshot returns the room's durable fields for persistence.
func (r *Room) Snapshot() (RoomSnapshot, error) {
	reply := make(chan RoomSnapshot, 1)
	if !r.post(snapshotCmd{reply: reply}) {
		return RoomSnapshot{}, ErrRoomClosed
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return RoomSnapshot{}, ErrRoomClosed
	}
}

// Close stops the actor. Pending external results are discarded.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}
