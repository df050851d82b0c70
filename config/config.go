package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime knob of the server. Values come from the
// environment; a .env file in the working directory is loaded first if
// present.
type Config struct {
	Port           string
	AllowedOrigins []string
	Debug          bool

	// Empty PostgresURL disables room persistence entirely.
	PostgresURL  string
	SaveInterval time.Duration

	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string

	ImageEndpoint string
	ImageAuth     string

	RoundDuration time.Duration
	DefaultRounds int

	// EagerRounds switches the round cadence from host-gated
	// intermissions to automatic advancement after each round.
	EagerRounds bool
}

func Load() Config {
	godotenv.Load()

	return Config{
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		Debug:          getBool("DEBUG", false),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		SaveInterval:   getDuration("SAVE_INTERVAL", 30*time.Second),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIURL:      getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		ImageEndpoint:  os.Getenv("CUSTOM_AI_ENDPOINT"),
		ImageAuth:      os.Getenv("CUSTOM_AI_AUTH"),
		RoundDuration:  getDuration("ROUND_DURATION", 60*time.Second),
		DefaultRounds:  getInt("DEFAULT_ROUNDS", 5),
		EagerRounds:    getBool("EAGER_ROUNDS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
