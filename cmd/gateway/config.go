package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dileep-u-k/function-gateway/internal/llm"
)

// AppConfig holds all configuration for the gateway, loaded from the environment.
type AppConfig struct {
	Port             string
	ManifestPath     string
	Model            string
	APIKeys          llm.APIKeys
	RedisAddr        string
	SandboxContainer string
	ActionCacheSize  int
	ActionCacheTTL   time.Duration
	Verbose          bool
}

// LoadConfig reads a .env file in local development, then the environment.
func LoadConfig() (*AppConfig, error) {
	// In Docker (GIN_MODE=release) configuration comes from the environment only.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:             valueOr(getenv("PORT"), "8080"),
		ManifestPath:     getenv("MANIFEST_PATH"),
		Model:            getenv("MODEL"),
		RedisAddr:        getenv("REDIS_ADDR"),
		SandboxContainer: getenv("SANDBOX_CONTAINER"),
		APIKeys: llm.APIKeys{
			OpenAI:    getenv("OPENAI_API_KEY"),
			Gemini:    getenv("GEMINI_API_KEY"),
			Anthropic: getenv("ANTHROPIC_API_KEY"),
		},
		ActionCacheSize: 256,
		ActionCacheTTL:  10 * time.Minute,
	}

	if cfg.ManifestPath == "" {
		return nil, fmt.Errorf("MANIFEST_PATH environment variable is not set")
	}
	if v := getenv("ACTION_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ACTION_CACHE_SIZE %q", v)
		}
		cfg.ActionCacheSize = n
	}
	if v := getenv("ACTION_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ACTION_CACHE_TTL %q: %w", v, err)
		}
		cfg.ActionCacheTTL = d
	}
	if v := getenv("VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VERBOSE %q: %w", v, err)
		}
		cfg.Verbose = b
	}
	return cfg, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
