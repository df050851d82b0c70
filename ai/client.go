// Package ai wraps the two external AI collaborators of the game: the
// chat-completion endpoint used for prompt generation, filler jokes and
// guess judging, and the custom image generation endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GuessEntry is one team's guess handed to the judge.
type GuessEntry struct {
	Team string
	Text string
}

// TeamScore is the judge's verdict for one team, Score in [0,1].
type TeamScore struct {
	Team  string  `json:"team"`
	Score float64 `json:"score"`
}

const fallbackJoke = "Why did the artist get arrested? Because he was framed!"

type Client struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string

	imageEndpoint string
	imageAuth     string

	// Base wait before the first image retry. Doubled on every attempt.
	imageRetryDelay time.Duration

	log zerolog.Logger
}

func NewClient(apiKey, apiURL, model, imageEndpoint, imageAuth string, log zerolog.Logger) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		apiKey:          apiKey,
		apiURL:          apiURL,
		model:           model,
		imageEndpoint:   strings.TrimRight(imageEndpoint, "/"),
		imageAuth:       imageAuth,
		imageRetryDelay: 10 * time.Second,
		log:             log.With().Str("component", "ai").Logger(),
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("chat completion: bad response body: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat completion: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// GeneratePrompt asks for one new image prompt, steered away from the
// prompts already used in this room.
func (c *Client) GeneratePrompt(ctx context.Context, theme string, history []string) (string, error) {
	examples := pickExamples(examplePrompts)

	sys := "You are a game master creating prompts for an image generation game. " +
		"Create ONE imaginative prompt that combines 2-3 concrete nouns or concepts in an unexpected way. " +
		"Here are some examples of the style you should aim for:\n- " + strings.Join(examples, "\n- ") + "\n\n" +
		"Keep it visual, specific, and fun. " +
		"Use a variety of animals, objects and settings. " +
		"Keep it to one primary subject with an action and setting. " +
		"Don't combine too many elements. But keep it weird and unexpected like dixit."
	if theme != "" {
		sys += " The prompt must fit the theme: " + theme + "."
	}

	user := "New prompt, no extra text."
	if len(history) > 0 {
		user = "Please generate a new, unique prompt. Avoid themes or subjects from these previous prompts:\n- " +
			strings.Join(history, "\n- ") + "\n\nNew prompt, no extra text:"
	}

	out, err := c.complete(ctx, chatRequest{
		Model:       c.model,
		Temperature: 0.9,
		MaxTokens:   30,
		Messages: []chatMessage{
			{Role: "system", Content: sys},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	return strings.Trim(out, `"'`), nil
}

// GenerateJoke produces one filler joke to bridge image generation time.
// It never fails: any error falls back to a canned line, since the joke
// is purely cosmetic.
func (c *Client) GenerateJoke(ctx context.Context, previousPrompt string, jokeHistory []string) string {
	examples := pickExamples(exampleJokes)

	sys := "You are a witty AI game host of a game that uses AI to generate images and people guess what the prompt was. " +
		"While the image is generating you need to entertain your players. " +
		"Tell a single, short, family-friendly joke or pun. Here are some examples of the style you should aim for:\n- " +
		strings.Join(examples, "\n- ") + "\n\n" +
		"Keep it to one or two sentences."
	if previousPrompt != "" {
		sys += ` You can optionally make a witty remark about the previous round's prompt or form the joke around it entirely, which was: "` + previousPrompt + `".`
	}

	user := "Tell me a joke."
	if len(jokeHistory) > 0 {
		user = "Please tell a new, unique joke. Avoid telling these jokes again:\n- " +
			strings.Join(jokeHistory, "\n- ") + "\n\nNew joke:"
	}

	joke, err := c.complete(ctx, chatRequest{
		Model:       c.model,
		Temperature: 1.0,
		MaxTokens:   40,
		Messages: []chatMessage{
			{Role: "system", Content: sys},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("joke generation failed, using fallback")
		return fallbackJoke
	}
	return joke
}

type judgeResponse struct {
	Scores []TeamScore `json:"scores"`
}

// ScoreGuesses judges every guess against the secret prompt in a single
// call and returns similarities clamped to [0,1].
func (c *Client) ScoreGuesses(ctx context.Context, prompt string, guesses []GuessEntry) ([]TeamScore, error) {
	sys := "You are an impartial judge in a guessing game. " +
		"Players are trying to guess what prompt was used to generate an AI image. " +
		"Score each guess based on how closely it matches the actual prompt. " +
		"Consider: key objects/subjects mentioned, actions described, setting/context, and overall concept similarity. " +
		"Be generous with partial matches but reserve high scores for very close guesses. " +
		"Return ONLY a JSON object with a 'scores' array containing objects with 'team' and 'score' (0-1 float)."

	var b strings.Builder
	fmt.Fprintf(&b, "Secret prompt: %q\n\nTeam guesses:\n", prompt)
	for _, g := range guesses {
		fmt.Fprintf(&b, "- %s: %q\n", g.Team, g.Text)
	}
	b.WriteString("\nScore each team's guess.")

	out, err := c.complete(ctx, chatRequest{
		Model:          c.model,
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: sys},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return nil, err
	}

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("judge returned malformed verdict: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("judge returned no scores")
	}

	for i := range parsed.Scores {
		parsed.Scores[i].Score = clamp01(parsed.Scores[i].Score)
	}
	return parsed.Scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pickExamples returns 2-3 random style examples to seed a system prompt.
func pickExamples(pool []string) []string {
	n := 2 + rand.Intn(2)
	if n > len(pool) {
		n = len(pool)
	}
	perm := rand.Perm(len(pool))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, pool[idx])
	}
	return out
}
