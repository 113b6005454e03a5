package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("default port = %d, want 8760", cfg.Port)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("default provider = %q, want gemini", cfg.Provider)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default log level = %q, want info", cfg.LogLevel)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("default gemini model = %q", cfg.GeminiModel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KAGAMI_PORT", "9000")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Provider)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.OpenAIAPIKey)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("KAGAMI_PORT", "not-a-number")

	cfg := Load()
	if cfg.Port != 8760 {
		t.Errorf("port = %d, want fallback 8760", cfg.Port)
	}
}
