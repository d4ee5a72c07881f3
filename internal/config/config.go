// Package config holds the handful of environment-configured options the
// orchestration core exposes. General configuration loading is out of
// scope; everything here maps directly to the "Environment-configured
// options" list.
package config

import (
	"os"
	"strconv"
)

// Config is the flat set of options read from the environment at startup.
type Config struct {
	// RemoteMemory toggles the HTTP+JSON remote memory client in place of
	// the local file-backed HOT store.
	RemoteMemory     bool
	RemoteMemoryHost string
	RemoteMemoryPort int

	// SessionFilePath is where EpisodicMemory + the last Plan are persisted.
	SessionFilePath string

	// MaxConcurrencyPermits bounds concurrent Agent Loop executions.
	MaxConcurrencyPermits int

	// MaxRetries bounds the Reflector-driven retry loop.
	MaxRetries int

	// ModelProvider selects which provider binding to construct.
	ModelProvider string
}

const (
	defaultSessionFilePath       = "agency_session.json"
	defaultMaxConcurrencyPermits = 2
	defaultMaxRetries            = 3
	defaultModelProvider         = "openai"
	defaultRemoteMemoryPort      = 8077
)

// Load reads the Config from the environment, applying defaults for
// anything unset.
func Load() Config {
	return Config{
		RemoteMemory:          envBool("AGENCY_USE_REMOTE_MEMORY", false),
		RemoteMemoryHost:      envString("AGENCY_MEMORY_HOST", "127.0.0.1"),
		RemoteMemoryPort:      envInt("AGENCY_MEMORY_PORT", defaultRemoteMemoryPort),
		SessionFilePath:       envString("AGENCY_SESSION_FILE", defaultSessionFilePath),
		MaxConcurrencyPermits: envInt("AGENCY_MAX_PERMITS", defaultMaxConcurrencyPermits),
		MaxRetries:            envInt("AGENCY_MAX_RETRIES", defaultMaxRetries),
		ModelProvider:         envString("AGENCY_MODEL_PROVIDER", defaultModelProvider),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
