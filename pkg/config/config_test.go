package config

import (
	"testing"
	"time"

	"github.com/senseihq/sensei-go/pkg/live"
	"github.com/senseihq/sensei-go/pkg/profile"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.LiveModel != live.DefaultModel {
		t.Fatalf("LiveModel = %q", cfg.LiveModel)
	}
	if cfg.HistoryCap != profile.HistoryCap {
		t.Fatalf("HistoryCap = %d", cfg.HistoryCap)
	}
	if cfg.BlockSamples != 4096 {
		t.Fatalf("BlockSamples = %d", cfg.BlockSamples)
	}
	if cfg.FrameInterval != time.Second {
		t.Fatalf("FrameInterval = %v", cfg.FrameInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SENSEI_API_KEY", "test-key")
	t.Setenv("SENSEI_VOICE", "Puck")
	t.Setenv("SENSEI_FRAME_INTERVAL", "2s")
	t.Setenv("SENSEI_HISTORY_CAP", "10")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.APIKey != "test-key" || cfg.Voice != "Puck" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.FrameInterval != 2*time.Second || cfg.HistoryCap != 10 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
}

func TestLoadAPIKeyFallback(t *testing.T) {
	t.Setenv("SENSEI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.APIKey != "fallback-key" {
		t.Fatalf("APIKey = %q, want GEMINI_API_KEY fallback", cfg.APIKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SENSEI_FRAME_QUALITY", "0")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("quality 0 accepted")
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SENSEI_HISTORY_CAP", "not-a-number")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.HistoryCap != profile.HistoryCap {
		t.Fatalf("HistoryCap = %d, want default", cfg.HistoryCap)
	}
}
