package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	NatsURL      string
	NatsToken    string
	LogLevel     string
	Provider     string
	GeminiAPIKey string
	OpenAIAPIKey string
	GeminiModel  string
	OpenAIModel  string
}

func Load() Config {
	return Config{
		Port:         envInt("KAGAMI_PORT", 8760),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		NatsURL:      envStr("NATS_URL", ""),
		NatsToken:    envStr("NATS_TOKEN", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		Provider:     envStr("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: envStr("GEMINI_API_KEY", ""),
		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),
		GeminiModel:  envStr("KAGAMI_GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIModel:  envStr("KAGAMI_OPENAI_MODEL", "gpt-5-nano"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
