package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/morehavoc/visiggy/ai"
)

// Room is one independent game instance. All fields below are owned by
// the room's actor goroutine (see room_actor.go); nothing outside the
// actor reads or writes them. The gateway and registry talk to a room
// exclusively through the exported command API.
type Room struct {
	id      string
	configs RoomConfigs

	stage        Stage
	theme        string
	totalRounds  int
	currentRound int
	roundsPlayed int
	createdAt    time.Time

	teams     map[string]*Team
	teamOrder []string

	active *Round
	// preparing is true between a round being requested and its
	// guessing window opening (or the content fetch failing).
	preparing bool

	// fetch is the single in-flight or ready content fetch. forRound
	// marks it as owed to the round currently being prepared; otherwise
	// it is the prefetch for the next round.
	fetch    *contentFetch
	fetchSeq int

	promptHistory []string
	jokeHistory   []string
	imageHistory  []ImageRecord

	openTimer     *time.Timer
	deadlineTimer *time.Timer

	notifier  Notifier
	generator Generator
	judge     Judge
	// onEnded is invoked (on its own goroutine) when the game reaches
	// its final stage, so the registry can do a last persistence pass.
	onEnded func(roomID string)

	now func() time.Time
	log zerolog.Logger

	inbox     chan any
	done      chan struct{}
	closeOnce sync.Once
}

type contentFetch struct {
	seq      int
	forRound bool
	ready    bool
	content  RoundContent
}

func newRoom(id string, configs RoomConfigs, notifier Notifier, generator Generator, judge Judge, onEnded func(string), log zerolog.Logger) *Room {
	return &Room{
		id:        id,
		configs:   configs,
		stage:     StageLobby,
		createdAt: time.Now(),
		teams:     make(map[string]*Team),
		notifier:  notifier,
		generator: generator,
		judge:     judge,
		onEnded:   onEnded,
		now:       time.Now,
		log:       log.With().Str("room", id).Logger(),
		inbox:     make(chan any, 256),
		done:      make(chan struct{}),
	}
}

// ---- lobby ----

func (r *Room) handleTeamJoin(name string, errc chan error) {
	if r.stage != StageLobby {
		errc <- ErrGameAlreadyStarted
		return
	}
	if _, taken := r.teams[name]; taken {
		errc <- ErrTeamNameTaken
		return
	}

	r.teams[name] = &Team{Name: name}
	r.teamOrder = append(r.teamOrder, name)
	r.log.Info().Str("team", name).Msg("team joined")

	r.notifier.Broadcast(r.id, newTeamJoinedMsg(name, r.teamNames()))
	errc <- nil
}

func (r *Room) handleStartGame(theme string, numRounds int, errc chan error) {
	if r.stage != StageLobby {
		errc <- ErrGameAlreadyStarted
		return
	}
	if len(r.teams) < minTeamsToStart {
		errc <- ErrNotEnoughTeams
		return
	}

	if numRounds <= 0 {
		numRounds = r.configs.DefaultRounds
	}
	if numRounds > maxRounds {
		numRounds = maxRounds
	}

	r.theme = theme
	r.totalRounds = numRounds
	r.stage = StagePlaying
	r.currentRound = 1
	r.roundsPlayed = 0
	r.log.Info().Str("theme", theme).Int("rounds", numRounds).Msg("game started")

	r.notifier.Broadcast(r.id, newGameStartedMsg(numRounds))
	errc <- nil

	r.beginRound()
}

// ---- round flow ----

// beginRound kicks off preparation of round r.currentRound: announce,
// entertain, and obtain content (prefetched if the pipeline got ahead of
// us, fetched now otherwise).
func (r *Room) beginRound() {
	r.preparing = true
	r.notifier.Broadcast(r.id, newRoundNextMsg(r.currentRound))
	r.notifier.Broadcast(r.id, newRoundPreparingMsg())

	r.startJokeFetch()

	switch {
	case r.fetch != nil && r.fetch.ready:
		content := r.fetch.content
		r.fetch = nil
		r.openRound(content)
	case r.fetch != nil:
		// Prefetch still in flight; adopt its result for this round.
		r.fetch.forRound = true
	default:
		r.startContentFetch(true)
	}
}

// startContentFetch launches prompt+image generation off the actor
// goroutine. The result comes back as a command carrying the sequence
// number, so superseded fetches are recognized and dropped.
func (r *Room) startContentFetch(forRound bool) {
	r.fetchSeq++
	seq := r.fetchSeq
	r.fetch = &contentFetch{seq: seq, forRound: forRound}

	theme := r.theme
	history := make([]string, len(r.promptHistory))
	copy(history, r.promptHistory)

	go func() {
		ctx := context.Background()
		prompt, err := r.generator.GeneratePrompt(ctx, theme, history)
		if err != nil {
			r.post(contentFailedCmd{seq: seq, err: err})
			return
		}
		imageURL, err := r.generator.GenerateImage(ctx, prompt)
		if err != nil {
			r.post(contentFailedCmd{seq: seq, err: err})
			return
		}
		r.post(contentReadyCmd{seq: seq, content: RoundContent{Prompt: prompt, ImageURL: imageURL}})
	}()
}

func (r *Room) startJokeFetch() {
	round := r.currentRound

	var previous string
	if n := len(r.promptHistory); n > 0 {
		previous = r.promptHistory[n-1]
	}
	history := make([]string, len(r.jokeHistory))
	copy(history, r.jokeHistory)

	go func() {
		text := r.generator.GenerateJoke(context.Background(), previous, history)
		r.post(jokeReadyCmd{round: round, text: text})
	}()
}

func (r *Room) handleContentReady(cmd contentReadyCmd) {
	f := r.fetch
	if f == nil || f.seq != cmd.seq {
		return
	}
	if r.stage == StageEnded {
		r.fetch = nil
		return
	}

	f.content = cmd.content
	f.ready = true
	if f.forRound {
		r.fetch = nil
		r.openRound(f.content)
	}
}

func (r *Room) handleContentFailed(cmd contentFailedCmd) {
	f := r.fetch
	if f == nil || f.seq != cmd.seq {
		return
	}
	r.fetch = nil

	if !f.forRound {
		// Lost a prefetch; the next round begin will fetch again.
		r.log.Warn().Err(cmd.err).Msg("prefetch failed")
		return
	}

	// Fail-stop: the room does not advance on its own. The host is told
	// and retries via skip, instead of us burning the guessing window
	// on silent retries against a flaky backend.
	r.preparing = false
	r.log.Error().Err(cmd.err).Int("round", r.currentRound).Msg("round content generation failed")
	r.notifier.ToHost(r.id, newRoundFailedMsg("Content generation failed. Please skip this round to retry."))
}

// openRound turns generated content into a live round: reveal the image,
// let the clients run their countdown, then open the guessing window.
func (r *Room) openRound(content RoundContent) {
	r.preparing = false
	r.promptHistory = append(r.promptHistory, content.Prompt)

	r.active = &Round{
		Index:    r.currentRound,
		Prompt:   content.Prompt,
		ImageURL: content.ImageURL,
		Duration: r.configs.RoundDuration,
		Guesses:  make(map[string]Guess),
	}

	// Content consumed: the pipeline may now run ahead for the next
	// round, hiding generation latency behind the guessing window.
	if r.currentRound < r.totalRounds {
		r.startContentFetch(false)
	}

	durSec := int(r.configs.RoundDuration.Seconds())
	r.notifier.Broadcast(r.id, newRoundReadyMsg(r.currentRound, content.ImageURL, durSec))

	index := r.currentRound
	r.openTimer = time.AfterFunc(r.configs.CountdownOffset, func() {
		r.post(roundOpenCmd{round: index})
	})
}

func (r *Room) handleRoundOpen(cmd roundOpenCmd) {
	round := r.active
	if round == nil || round.Index != cmd.round || round.open || round.resolved {
		return
	}

	round.open = true
	round.StartedAt = r.now()
	deadline := round.StartedAt.Add(round.Duration)

	index := round.Index
	r.deadlineTimer = time.AfterFunc(round.Duration, func() {
		r.post(deadlineCmd{round: index})
	})

	durSec := int(round.Duration.Seconds())
	r.notifier.Broadcast(r.id, newRoundStartMsg(round.Index, round.ImageURL, durSec, deadline.UnixMilli()))
}

func (r *Room) handleJoke(cmd jokeReadyCmd) {
	if r.stage != StagePlaying || r.currentRound != cmd.round {
		return
	}
	r.jokeHistory = append(r.jokeHistory, cmd.text)
	r.notifier.Broadcast(r.id, newJokeMsg(cmd.text))
}

// ---- guesses and resolution ----

func (r *Room) handleSubmitGuess(team, text string, errc chan error) {
	round := r.active
	if r.stage != StagePlaying || round == nil || !round.open || round.resolved {
		errc <- ErrNoActiveRound
		return
	}
	if _, known := r.teams[team]; !known {
		errc <- ErrUnknownTeam
		return
	}
	if _, dup := round.Guesses[team]; dup {
		errc <- ErrAlreadySubmitted
		return
	}

	round.Guesses[team] = Guess{Text: text, SubmittedAt: r.now()}
	errc <- nil

	if len(round.Guesses) == len(r.teams) {
		r.resolveRound()
	}
}

func (r *Room) handleDeadline(cmd deadlineCmd) {
	round := r.active
	if round == nil || round.Index != cmd.round || round.resolved {
		// Stale timer; the round already resolved through the
		// all-submitted path or was skipped.
		return
	}
	r.resolveRound()
}

// resolveRound claims resolution exactly once and hands the guesses to
// the judge. Both triggers (all submitted, deadline) funnel here; the
// resolved flag decides the winner and the loser is a no-op.
func (r *Room) resolveRound() {
	round := r.active
	if round == nil || round.resolved {
		return
	}
	round.resolved = true
	r.stopRoundTimers()

	// Every team present at round start gets judged; silent teams with
	// an empty placeholder.
	entries := make([]ai.GuessEntry, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		guess, ok := round.Guesses[name]
		if !ok {
			round.Guesses[name] = Guess{}
		}
		entries = append(entries, ai.GuessEntry{Team: name, Text: guess.Text})
	}

	index, prompt := round.Index, round.Prompt
	go func() {
		verdict, err := r.judge.ScoreGuesses(context.Background(), prompt, entries)
		r.post(judgeVerdictCmd{round: index, verdict: verdict, err: err})
	}()
}

func (r *Room) handleJudgeVerdict(cmd judgeVerdictCmd) {
	round := r.active
	if round == nil || round.Index != cmd.round || !round.resolved {
		// The round was skipped while the judge was thinking.
		return
	}

	var results []TeamResult
	if cmd.err != nil {
		// A judging outage must never stall the game: score the round
		// zero for everyone and move on.
		r.log.Warn().Err(cmd.err).Int("round", round.Index).Msg("judging failed, scoring round as zero")
		results = zeroResults(round)
	} else {
		results = computeResults(round, cmd.verdict)
		for _, res := range results {
			if team, ok := r.teams[res.Team]; ok {
				team.Score += res.Score
			}
		}
	}

	r.imageHistory = append(r.imageHistory, ImageRecord{
		Round:    round.Index,
		Prompt:   round.Prompt,
		ImageURL: round.ImageURL,
	})
	r.roundsPlayed++
	r.active = nil

	gameOver := r.roundsPlayed >= r.totalRounds
	intermission := !gameOver && !r.configs.AutoAdvance
	r.notifier.Broadcast(r.id, newRoundEndMsg(round.Prompt, results, r.leaderboard(), intermission))

	switch {
	case gameOver:
		time.AfterFunc(r.configs.GameOverDelay, func() { r.post(gameOverCmd{}) })
	case r.configs.AutoAdvance:
		time.AfterFunc(r.configs.AdvanceDelay, func() { r.post(advanceCmd{}) })
	default:
		r.stage = StageIntermission
		r.notifier.Broadcast(r.id, newRoundIntermissionMsg())
	}
}

func (r *Room) handleAdvance() {
	if r.stage != StagePlaying || r.active != nil || r.preparing || r.roundsPlayed >= r.totalRounds {
		return
	}
	r.currentRound++
	r.beginRound()
}

func (r *Room) handleNextRound(errc chan error) {
	if r.stage != StageIntermission {
		errc <- ErrNotInIntermission
		return
	}
	r.stage = StagePlaying
	r.currentRound++
	errc <- nil
	r.beginRound()
}

func (r *Room) handleGameOver() {
	if r.stage == StageEnded {
		return
	}
	r.stage = StageEnded
	r.fetch = nil
	r.log.Info().Msg("game over")
	r.notifier.Broadcast(r.id, newGameOverMsg(r.leaderboard(), r.imageHistory))

	if r.onEnded != nil {
		go r.onEnded(r.id)
	}
}

// ---- host controls ----

// handleSkip cancels the in-progress round (or a failed preparation)
// without scoring it and restarts the round flow shortly after. The
// round counter does not advance; skipped rounds are replayed with
// freshly generated content.
func (r *Room) handleSkip(errc chan error) {
	if r.stage != StagePlaying {
		errc <- ErrNoActiveRound
		return
	}

	r.stopRoundTimers()
	if r.active != nil {
		// Guesses already collected for the skipped round are dropped.
		r.active = nil
	}
	r.preparing = false
	if r.fetch != nil {
		// An in-flight fetch keeps running; its result becomes the
		// prefetch used by the retry.
		r.fetch.forRound = false
	}

	r.log.Info().Int("round", r.currentRound).Msg("round skipped by host")
	r.notifier.Broadcast(r.id, newRoundSkippedMsg("Round skipped by host"))
	errc <- nil

	time.AfterFunc(r.configs.SkipDelay, func() { r.post(retryCmd{}) })
}

func (r *Room) handleRetry() {
	if r.stage != StagePlaying || r.active != nil || r.preparing {
		return
	}
	r.beginRound()
}

func (r *Room) handleOverrideScore(team string, newScore int, errc chan error) {
	t, ok := r.teams[team]
	if !ok {
		errc <- ErrUnknownTeam
		return
	}
	t.Score = newScore
	r.log.Info().Str("team", team).Int("score", newScore).Msg("score overridden by host")
	r.notifier.Broadcast(r.id, newScoreUpdatedMsg(team, newScore, r.leaderboard()))
	errc <- nil
}

// ---- views ----

func (r *Room) teamNames() []string {
	names := make([]string, len(r.teamOrder))
	copy(names, r.teamOrder)
	return names
}

// leaderboard sorts cumulative scores descending; ties keep join order.
func (r *Room) leaderboard() []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		entries = append(entries, LeaderboardEntry{Team: name, Score: r.teams[name].Score})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

func (r *Room) state() RoomState {
	scores := make(map[string]int, len(r.teams))
	for name, team := range r.teams {
		scores[name] = team.Score
	}
	return RoomState{
		ID:           r.id,
		Stage:        r.stage,
		Teams:        r.teamNames(),
		Scores:       scores,
		CurrentRound: r.currentRound,
		TotalRounds:  r.totalRounds,
	}
}

func (r *Room) snapshot() RoomSnapshot {
	teams := make([]TeamSnapshot, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		teams = append(teams, TeamSnapshot{Name: name, Score: r.teams[name].Score})
	}
	return RoomSnapshot{
		ID:            r.id,
		Stage:         r.stage,
		Theme:         r.theme,
		TotalRounds:   r.totalRounds,
		CurrentRound:  r.currentRound,
		RoundsPlayed:  r.roundsPlayed,
		CreatedAt:     r.createdAt,
		Teams:         teams,
		PromptHistory: append([]string(nil), r.promptHistory...),
		ImageHistory:  append([]ImageRecord(nil), r.imageHistory...),
	}
}

// applySnapshot rebuilds durable state on restore. A room persisted
// mid-round lost its generated content, so it re-enters intermission and
// the host resumes with Next Round, which fetches fresh content for the
// interrupted round. A room persisted after its last round resolved but
// before the game-over reveal has no rounds left to resume and restores
// as ended.
func (r *Room) applySnapshot(snap RoomSnapshot) {
	r.stage = snap.Stage
	r.theme = snap.Theme
	r.totalRounds = snap.TotalRounds
	r.currentRound = snap.CurrentRound
	r.roundsPlayed = snap.RoundsPlayed
	if !snap.CreatedAt.IsZero() {
		r.createdAt = snap.CreatedAt
	}
	for _, t := range snap.Teams {
		r.teams[t.Name] = &Team{Name: t.Name, Score: t.Score}
		r.teamOrder = append(r.teamOrder, t.Name)
	}
	r.promptHistory = append([]string(nil), snap.PromptHistory...)
	r.imageHistory = append([]ImageRecord(nil), snap.ImageHistory...)

	if r.stage == StagePlaying {
		if r.totalRounds > 0 && r.roundsPlayed >= r.totalRounds {
			r.stage = StageEnded
		} else {
			r.stage = StageIntermission
			r.currentRound = r.roundsPlayed
		}
	}
}

func (r *Room) stopRoundTimers() {
	if r.openTimer != nil {
		r.openTimer.Stop()
		r.openTimer = nil
	}
	if r.deadlineTimer != nil {
		r.deadlineTimer.Stop()
		r.deadlineTimer = nil
	}
}
