// Package config is the agent's environment configuration surface, read
// once at process start.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// VisionProvider selects the classifier backend.
type VisionProvider string

const (
	VisionGemini VisionProvider = "gemini"
	VisionOpenAI VisionProvider = "openai"
)

// Config holds everything the agent reads from the environment.
type Config struct {
	// Room transport.
	RoomURL      string
	RoomToken    string
	RoomName     string
	RoomIdentity string

	// Avatar rendering service.
	AvatarBaseURL string
	AvatarAPIKey  string
	AvatarID      string
	AvatarName    string

	// Vision classifier. A missing key is not an error: detection degrades
	// to neutral records instead of failing startup.
	VisionProvider VisionProvider
	GeminiAPIKey   string
	OpenAIAPIKey   string
	VisionModel    string
	DetectTimeout  time.Duration

	// Outputs.
	SnapshotPath string
	EmitInterval time.Duration

	// Operational.
	MetricsAddr string
}

// defaultAvatarID matches the persona the original deployment shipped with.
const defaultAvatarID = "aea2cf13-5e40-4c0f-bd4e-b597b1c0acb4"

// LoadFromEnv reads and validates the configuration.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		RoomURL:        os.Getenv("CONSULT_ROOM_URL"),
		RoomToken:      os.Getenv("CONSULT_ROOM_TOKEN"),
		RoomName:       envOr("CONSULT_ROOM_NAME", "consultation"),
		RoomIdentity:   envOr("CONSULT_ROOM_IDENTITY", "consult-agent"),
		AvatarBaseURL:  envOr("ANAM_BASE_URL", ""),
		AvatarAPIKey:   os.Getenv("ANAM_API_KEY"),
		AvatarID:       envOr("ANAM_AVATAR_ID", defaultAvatarID),
		AvatarName:     envOr("ANAM_AVATAR_NAME", "Dave"),
		VisionProvider: VisionProvider(envOr("CONSULT_VISION_PROVIDER", string(VisionOpenAI))),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		VisionModel:    os.Getenv("CONSULT_VISION_MODEL"),
		DetectTimeout:  envDurationOr("CONSULT_DETECT_TIMEOUT", 30*time.Second),
		SnapshotPath:   envOr("CONSULT_SNAPSHOT_PATH", "inventory.json"),
		EmitInterval:   envDurationOr("CONSULT_EMIT_INTERVAL", 15*time.Second),
		MetricsAddr:    os.Getenv("CONSULT_METRICS_ADDR"),
	}

	if cfg.RoomURL == "" {
		return Config{}, fmt.Errorf("CONSULT_ROOM_URL is required")
	}
	switch cfg.VisionProvider {
	case VisionGemini, VisionOpenAI:
	default:
		return Config{}, fmt.Errorf("CONSULT_VISION_PROVIDER must be one of gemini|openai")
	}
	if cfg.EmitInterval <= 0 {
		return Config{}, fmt.Errorf("CONSULT_EMIT_INTERVAL must be > 0")
	}
	if cfg.DetectTimeout < 0 {
		return Config{}, fmt.Errorf("CONSULT_DETECT_TIMEOUT must be >= 0")
	}
	return cfg, nil
}

// VisionAPIKey returns the credential for the selected classifier backend,
// empty when detection should run in degraded mode.
func (c Config) VisionAPIKey() string {
	if c.VisionProvider == VisionGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
