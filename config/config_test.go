package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ViewTTL != 30*time.Second {
		t.Errorf("ViewTTL = %v, want 30s", cfg.ViewTTL)
	}
	if cfg.SpiralRadius != 20 {
		t.Errorf("SpiralRadius = %d, want 20", cfg.SpiralRadius)
	}
	if cfg.RegistrySize != 256 {
		t.Errorf("RegistrySize = %d, want 256", cfg.RegistrySize)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelInfo {
		t.Errorf("Level = %v, want info", lvl)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEAVER_DB_PATH", "/tmp/world.db")
	t.Setenv("WEAVER_VIEW_TTL", "5s")
	t.Setenv("WEAVER_SEED", "42")
	t.Setenv("WEAVER_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/world.db" || cfg.ViewTTL != 5*time.Second || cfg.Seed != 42 {
		t.Errorf("cfg = %+v", cfg)
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", lvl)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("WEAVER_SPIRAL_RADIUS", "wide")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"radius too small", map[string]string{"WEAVER_SPIRAL_RADIUS": "1"}, "WEAVER_SPIRAL_RADIUS"},
		{"empty registry", map[string]string{"WEAVER_REGISTRY_SIZE": "0"}, "WEAVER_REGISTRY_SIZE"},
		{"bad level", map[string]string{"WEAVER_LOG_LEVEL": "chatty"}, "WEAVER_LOG_LEVEL"},
		{"zero session ttl", map[string]string{"WEAVER_SESSION_TTL": "0s"}, "WEAVER_SESSION_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
