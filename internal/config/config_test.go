package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"AGENCY_USE_REMOTE_MEMORY", "AGENCY_MEMORY_HOST", "AGENCY_MEMORY_PORT",
		"AGENCY_SESSION_FILE", "AGENCY_MAX_PERMITS", "AGENCY_MAX_RETRIES",
		"AGENCY_MODEL_PROVIDER",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.RemoteMemory {
		t.Fatalf("expected remote memory off by default")
	}
	if cfg.MaxConcurrencyPermits != defaultMaxConcurrencyPermits {
		t.Fatalf("expected default permits %d, got %d", defaultMaxConcurrencyPermits, cfg.MaxConcurrencyPermits)
	}
	if cfg.MaxRetries != defaultMaxRetries {
		t.Fatalf("expected default retries %d, got %d", defaultMaxRetries, cfg.MaxRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENCY_USE_REMOTE_MEMORY", "true")
	t.Setenv("AGENCY_MEMORY_PORT", "9999")
	t.Setenv("AGENCY_MAX_PERMITS", "7")

	cfg := Load()
	if !cfg.RemoteMemory {
		t.Fatalf("expected remote memory enabled")
	}
	if cfg.RemoteMemoryPort != 9999 {
		t.Fatalf("expected port 9999, got %d", cfg.RemoteMemoryPort)
	}
	if cfg.MaxConcurrencyPermits != 7 {
		t.Fatalf("expected 7 permits, got %d", cfg.MaxConcurrencyPermits)
	}
}
