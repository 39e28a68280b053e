// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/senseihq/sensei-go/pkg/capture"
	"github.com/senseihq/sensei-go/pkg/diagnose"
	"github.com/senseihq/sensei-go/pkg/live"
	"github.com/senseihq/sensei-go/pkg/profile"
)

// CaptureSampleRate and PlaybackSampleRate are fixed by the realtime
// protocol: mic PCM goes up at 16kHz, model audio comes back at 24kHz.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

type Config struct {
	// APIKey authenticates both the diagnosis and the live paths.
	APIKey string

	DiagnosisModel string
	LiveModel      string
	LiveEndpoint   string
	Voice          string
	SystemPrompt   string
	ConnectTimeout time.Duration

	HistoryPath      string
	HistoryCap       int
	TranscriptWindow int

	BlockSamples  int
	FrameInterval time.Duration
	FrameQuality  int
	MaxFrameDim   int

	// MetricsAddr, when non-empty, serves Prometheus metrics.
	MetricsAddr string
}

func LoadFromEnv() (Config, error) {
	apiKey := envOr("SENSEI_API_KEY", "")
	if apiKey == "" {
		apiKey = envOr("GEMINI_API_KEY", "")
	}

	cfg := Config{
		APIKey:           apiKey,
		DiagnosisModel:   envOr("SENSEI_DIAGNOSIS_MODEL", diagnose.DefaultModel),
		LiveModel:        envOr("SENSEI_LIVE_MODEL", live.DefaultModel),
		LiveEndpoint:     envOr("SENSEI_LIVE_ENDPOINT", live.DefaultEndpoint),
		Voice:            envOr("SENSEI_VOICE", live.DefaultVoice),
		SystemPrompt:     envOr("SENSEI_SYSTEM_PROMPT", ""),
		ConnectTimeout:   envDurationOr("SENSEI_CONNECT_TIMEOUT", 15*time.Second),
		HistoryPath:      envOr("SENSEI_HISTORY_PATH", defaultHistoryPath()),
		HistoryCap:       envIntOr("SENSEI_HISTORY_CAP", profile.HistoryCap),
		TranscriptWindow: envIntOr("SENSEI_TRANSCRIPT_WINDOW", live.DefaultTranscriptWindow),
		BlockSamples:     envIntOr("SENSEI_AUDIO_BLOCK_SAMPLES", capture.DefaultBlockSamples),
		FrameInterval:    envDurationOr("SENSEI_FRAME_INTERVAL", capture.DefaultFrameInterval),
		FrameQuality:     envIntOr("SENSEI_FRAME_QUALITY", capture.DefaultFrameQuality),
		MaxFrameDim:      envIntOr("SENSEI_MAX_FRAME_DIM", capture.DefaultMaxFrameDim),
		MetricsAddr:      envOr("SENSEI_METRICS_ADDR", ""),
	}

	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("SENSEI_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.HistoryCap <= 0 {
		return Config{}, fmt.Errorf("SENSEI_HISTORY_CAP must be > 0")
	}
	if cfg.TranscriptWindow <= 0 {
		return Config{}, fmt.Errorf("SENSEI_TRANSCRIPT_WINDOW must be > 0")
	}
	if cfg.BlockSamples <= 0 {
		return Config{}, fmt.Errorf("SENSEI_AUDIO_BLOCK_SAMPLES must be > 0")
	}
	if cfg.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("SENSEI_FRAME_INTERVAL must be > 0")
	}
	if cfg.FrameQuality < 1 || cfg.FrameQuality > 100 {
		return Config{}, fmt.Errorf("SENSEI_FRAME_QUALITY must be in [1,100]")
	}
	if cfg.MaxFrameDim <= 0 {
		return Config{}, fmt.Errorf("SENSEI_MAX_FRAME_DIM must be > 0")
	}
	return cfg, nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sensei_history.db"
	}
	return home + "/.sensei/history.db"
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
