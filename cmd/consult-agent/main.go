// Command consult-agent hosts the moving-consultation avatar in a real-time
// room: it joins the configured room, brings the avatar up when the first
// participant arrives, inventories whatever the camera shows, and writes the
// final snapshot when the room empties.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/movedesk/consult-agent/internal/metrics"
	"github.com/movedesk/consult-agent/pkg/avatar"
	"github.com/movedesk/consult-agent/pkg/config"
	"github.com/movedesk/consult-agent/pkg/core/inventory"
	"github.com/movedesk/consult-agent/pkg/core/pipeline"
	"github.com/movedesk/consult-agent/pkg/core/report"
	"github.com/movedesk/consult-agent/pkg/core/session"
	"github.com/movedesk/consult-agent/pkg/core/vision"
	"github.com/movedesk/consult-agent/pkg/room"
)

const envFile = "config.env"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		logger.Warn("env file not loaded", "path", envFile, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil && ctx.Err() == nil {
		logger.Error("agent exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, m, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	classifier, err := buildClassifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	if classifier == nil {
		logger.Warn("no classifier credential configured, vision analysis disabled")
	}
	detector := vision.NewClient(classifier, cfg.DetectTimeout, logger)

	roomClient, err := room.Dial(ctx, room.Config{
		URL:      cfg.RoomURL,
		Token:    cfg.RoomToken,
		RoomName: cfg.RoomName,
		Identity: cfg.RoomIdentity,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect to room: %w", err)
	}
	defer roomClient.Close()
	logger.Info("joined room", "room", cfg.RoomName, "participant", roomClient.LocalID())

	store := inventory.NewStore()
	emitter := report.NewEmitter(cfg.SnapshotPath)

	persona := avatar.PersonaConfig{
		Name:         cfg.AvatarName,
		AvatarID:     cfg.AvatarID,
		SystemPrompt: vision.SystemPrompt,
	}
	var avatarOpts []avatar.Option
	if cfg.AvatarBaseURL != "" {
		avatarOpts = append(avatarOpts, avatar.WithBaseURL(cfg.AvatarBaseURL))
	}

	var ctrl *session.Controller
	pipe := pipeline.New(store, detector,
		func(ctx context.Context, text string) {
			ctrl.SendConsultationMessage(ctx, text)
		},
		pipeline.WithEmitInterval(cfg.EmitInterval),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	)

	ctrl, err = session.New(session.Config{
		Room: roomClient,
		NewAvatar: func() session.Avatar {
			return avatar.NewSession(persona, cfg.AvatarAPIKey, avatarOpts...)
		},
		Store:          store,
		Pipeline:       pipe,
		Emitter:        emitter,
		ConsultantName: cfg.AvatarName,
		Logger:         logger,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	logger.Info("consultation agent running", "snapshot", emitter.Path())
	return ctrl.Run(ctx)
}

// buildClassifier picks the vision backend from config. A missing credential
// yields a nil classifier, which runs detection in degraded mode rather than
// failing startup.
func buildClassifier(ctx context.Context, cfg config.Config) (vision.Classifier, error) {
	key := cfg.VisionAPIKey()
	if key == "" {
		return nil, nil
	}
	switch cfg.VisionProvider {
	case config.VisionGemini:
		return vision.NewGemini(ctx, key, cfg.VisionModel)
	default:
		return vision.NewOpenAI(key, vision.WithOpenAIModel(cfg.VisionModel)), nil
	}
}
