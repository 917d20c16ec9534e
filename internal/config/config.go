package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"schoa/internal/llm"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"ENV"`
	LLMProvider    string `mapstructure:"LLM_PROVIDER"`
	LLMModel       string `mapstructure:"LLM_MODEL"`
	APIKey         string `mapstructure:"API_KEY"`
	GeminiBaseURL  string `mapstructure:"GEMINI_BASE_URL"`
	OpenAIAPIKey   string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `mapstructure:"OPENAI_BASE_URL"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	FixturePath    string `mapstructure:"FIXTURE_PATH"`
	LLMConcurrency int    `mapstructure:"LLM_CONCURRENCY"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LLM_PROVIDER",
	"LLM_MODEL",
	"API_KEY",
	"GEMINI_BASE_URL",
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"DATABASE_URL",
	"FIXTURE_PATH",
	"LLM_CONCURRENCY",
}

// Load reads configuration from the environment and an optional .env file.
// Nothing is required: a missing API key only shows up when a model call is
// made.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LLM_PROVIDER", llm.ProviderGemini)
	v.SetDefault("LLM_CONCURRENCY", 4)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("PORT must be a number between 0 and 65535, got %q", c.Port)
	}
	switch c.LLMProvider {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", llm.ProviderGemini, llm.ProviderOpenAI, c.LLMProvider)
	}
	if c.LLMConcurrency < 1 {
		return fmt.Errorf("LLM_CONCURRENCY must be at least 1, got %d", c.LLMConcurrency)
	}
	if c.DatabaseURL != "" && c.FixturePath != "" {
		return fmt.Errorf("DATABASE_URL and FIXTURE_PATH are mutually exclusive")
	}
	return nil
}

// HasCredential reports whether the selected provider has an API key.
func (c *Config) HasCredential() bool {
	if c.LLMProvider == llm.ProviderOpenAI {
		return c.OpenAIAPIKey != ""
	}
	return c.APIKey != ""
}

// LLMOptions maps the configuration onto llm.New's options.
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:      c.LLMProvider,
		Model:         c.LLMModel,
		GeminiAPIKey:  c.APIKey,
		GeminiBaseURL: c.GeminiBaseURL,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
	}
}
