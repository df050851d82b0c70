package game

// Wire protocol. Every message carries a "type" discriminator; field
// names match what the web client expects.

// clientPacket is the union of all inbound message shapes.
type clientPacket struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId,omitempty"`
	TeamName  string `json:"teamName,omitempty"`
	Theme     string `json:"theme,omitempty"`
	NumRounds int    `json:"numRounds,omitempty"`
	Team      string `json:"team,omitempty"`
	Text      string `json:"text,omitempty"`
	NewScore  int    `json:"newScore,omitempty"`
	IsHost    bool   `json:"isHost,omitempty"`
}

const (
	inHostJoin      = "host:join"
	inTeamJoin      = "team:join"
	inGameStart     = "game:start"
	inGuessSubmit   = "guess:submit"
	inSkipRound     = "host:skip-round"
	inNextRound     = "host:next-round"
	inOverrideScore = "host:override-score"
	inReconnect     = "reconnect"
)

type hostJoinedMsg struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Teams  []string `json:"teams"`
	Stage  Stage    `json:"stage"`
}

func newHostJoinedMsg(roomID string, teams []string, stage Stage) hostJoinedMsg {
	return hostJoinedMsg{Type: "host:joined", RoomID: roomID, Teams: teams, Stage: stage}
}

type teamJoinedMsg struct {
	Type     string   `json:"type"`
	TeamName string   `json:"teamName"`
	Teams    []string `json:"teams"`
}

func newTeamJoinedMsg(teamName string, teams []string) teamJoinedMsg {
	return teamJoinedMsg{Type: "team:joined", TeamName: teamName, Teams: teams}
}

type teamConfirmedMsg struct {
	Type     string `json:"type"`
	TeamName string `json:"teamName"`
	RoomID   string `json:"roomId"`
}

func newTeamConfirmedMsg(teamName, roomID string) teamConfirmedMsg {
	return teamConfirmedMsg{Type: "team:confirmed", TeamName: teamName, RoomID: roomID}
}

type gameStartedMsg struct {
	Type        string `json:"type"`
	TotalRounds int    `json:"totalRounds"`
}

func newGameStartedMsg(totalRounds int) gameStartedMsg {
	return gameStartedMsg{Type: "game:started", TotalRounds: totalRounds}
}

type roundNextMsg struct {
	Type  string `json:"type"`
	Round int    `json:"round"`
}

func newRoundNextMsg(round int) roundNextMsg {
	return roundNextMsg{Type: "round:next", Round: round}
}

type roundPreparingMsg struct {
	Type string `json:"type"`
}

func newRoundPreparingMsg() roundPreparingMsg {
	return roundPreparingMsg{Type: "round:preparing"}
}

type jokeMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newJokeMsg(text string) jokeMsg {
	return jokeMsg{Type: "joke:new", Text: text}
}

type roundReadyMsg struct {
	Type     string `json:"type"`
	Round    int    `json:"round"`
	ImageURL string `json:"imageUrl"`
	Duration int    `json:"duration"`
}

func newRoundReadyMsg(round int, imageURL string, durationSec int) roundReadyMsg {
	return roundReadyMsg{Type: "round:ready", Round: round, ImageURL: imageURL, Duration: durationSec}
}

type roundStartMsg struct {
	Type     string `json:"type"`
	Round    int    `json:"round"`
	ImageURL string `json:"imageUrl"`
	Duration int    `json:"duration"`
	EndTime  int64  `json:"endTime"`
}

func newRoundStartMsg(round int, imageURL string, durationSec int, endTimeMillis int64) roundStartMsg {
	return roundStartMsg{Type: "round:start", Round: round, ImageURL: imageURL, Duration: durationSec, EndTime: endTimeMillis}
}

type roundEndMsg struct {
	Type         string             `json:"type"`
	Prompt       string             `json:"prompt"`
	Results      []TeamResult       `json:"results"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	Intermission bool               `json:"intermission"`
}

func newRoundEndMsg(prompt string, results []TeamResult, leaderboard []LeaderboardEntry, intermission bool) roundEndMsg {
	return roundEndMsg{Type: "round:end", Prompt: prompt, Results: results, Leaderboard: leaderboard, Intermission: intermission}
}

type roundIntermissionMsg struct {
	Type string `json:"type"`
}

func newRoundIntermissionMsg() roundIntermissionMsg {
	return roundIntermissionMsg{Type: "round:intermission"}
}

type roundSkippedMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newRoundSkippedMsg(message string) roundSkippedMsg {
	return roundSkippedMsg{Type: "round:skipped", Message: message}
}

type roundFailedMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newRoundFailedMsg(message string) roundFailedMsg {
	return roundFailedMsg{Type: "round:failed", Message: message}
}

type scoreUpdatedMsg struct {
	Type        string             `json:"type"`
	Team        string             `json:"team"`
	NewScore    int                `json:"newScore"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

func newScoreUpdatedMsg(team string, newScore int, leaderboard []LeaderboardEntry) scoreUpdatedMsg {
	return scoreUpdatedMsg{Type: "score:updated", Team: team, NewScore: newScore, Leaderboard: leaderboard}
}

type gameOverMsg struct {
	Type         string             `json:"type"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	ImageHistory []ImageRecord      `json:"imageHistory"`
}

func newGameOverMsg(leaderboard []LeaderboardEntry, imageHistory []ImageRecord) gameOverMsg {
	return gameOverMsg{Type: "game:over", Leaderboard: leaderboard, ImageHistory: imageHistory}
}

type reconnectedMsg struct {
	Type         string         `json:"type"`
	Stage        Stage          `json:"stage"`
	Teams        []string       `json:"teams"`
	Scores       map[string]int `json:"scores"`
	CurrentRound int            `json:"currentRound"`
	IsHost       bool           `json:"isHost"`
}

func newReconnectedMsg(st RoomState, isHost bool) reconnectedMsg {
	return reconnectedMsg{
		Type:         "reconnected",
		Stage:        st.Stage,
		Teams:        st.Teams,
		Scores:       st.Scores,
		CurrentRound: st.CurrentRound,
		IsHost:       isHost,
	}
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMsg(message string) errorMsg {
	return errorMsg{Type: "error", Message: message}
}
