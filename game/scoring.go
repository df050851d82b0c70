package game

import (
	"math"
	"sort"
	"time"

	"github.com/morehavoc/visiggy/ai"
)

// speedBonusFactor caps the speed bonus at half the correctness-derived
// score, so an instant wrong guess can never outscore a slow close one.
const speedBonusFactor = 0.5

// roundScore turns a judge similarity into points for one team.
// elapsed is the time between the guessing window opening and the
// submission; submitted=false means the team never answered and gets no
// speed bonus.
func roundScore(similarity float64, submitted bool, elapsed, duration time.Duration) int {
	base := similarity * 100

	bonus := 0.0
	if submitted && duration > 0 {
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > duration {
			elapsed = duration
		}
		remaining := duration - elapsed
		bonus = base * (remaining.Seconds() / duration.Seconds()) * speedBonusFactor
	}

	return int(math.Round(base + bonus))
}

// computeResults applies the judge's verdict to a resolved round and
// returns one result per scored team. Teams the judge did not mention
// (it shouldn't happen, but the judge is an LLM) score zero.
func computeResults(round *Round, verdict []ai.TeamScore) []TeamResult {
	byTeam := make(map[string]float64, len(verdict))
	for _, v := range verdict {
		byTeam[v.Team] = v.Score
	}

	results := make([]TeamResult, 0, len(round.Guesses))
	for team := range round.Guesses {
		guess, submitted := round.Guesses[team], true
		if guess.Text == "" && guess.SubmittedAt.IsZero() {
			submitted = false
		}

		var elapsed time.Duration
		if submitted {
			elapsed = guess.SubmittedAt.Sub(round.StartedAt)
		}

		results = append(results, TeamResult{
			Team:  team,
			Score: roundScore(byTeam[team], submitted, elapsed, round.Duration),
			Guess: displayGuess(guess.Text),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Team < results[j].Team })
	return results
}

// zeroResults is the judging-outage fallback: the round still resolves,
// everyone gets zero, the game moves on.
func zeroResults(round *Round) []TeamResult {
	results := make([]TeamResult, 0, len(round.Guesses))
	for team, guess := range round.Guesses {
		results = append(results, TeamResult{Team: team, Score: 0, Guess: displayGuess(guess.Text)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Team < results[j].Team })
	return results
}

func displayGuess(text string) string {
	if text == "" {
		return "(no guess)"
	}
	return text
}
