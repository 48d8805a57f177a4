// Package session owns the avatar-session lifecycle. A small state machine
// gates avatar start/stop against room occupancy: the first participant in
// brings the avatar up, the last one out triggers the final summary,
// snapshot and teardown.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/movedesk/consult-agent/internal/metrics"
	"github.com/movedesk/consult-agent/pkg/core/inventory"
	"github.com/movedesk/consult-agent/pkg/core/pipeline"
	"github.com/movedesk/consult-agent/pkg/core/report"
	"github.com/movedesk/consult-agent/pkg/room"
)

// Avatar is the rendering service handle the controller starts and stops.
type Avatar interface {
	Start(ctx context.Context, roomName string) error
	Stop(ctx context.Context) error
}

// AvatarFactory builds a fresh avatar handle for each activation.
type AvatarFactory func() Avatar

// Config wires the controller's collaborators.
type Config struct {
	Room      room.Room
	NewAvatar AvatarFactory
	Store     *inventory.Store
	Pipeline  *pipeline.Pipeline
	Emitter   *report.Emitter

	// ConsultantName is spoken in the welcome message.
	ConsultantName string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

// Controller is the session state machine. All transitions happen on the
// Run loop goroutine, so two join events can never interleave a double
// start; the mutex only protects cross-goroutine reads of the state.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	active       bool
	participants map[string]struct{}

	avatar Avatar

	pipelines sync.WaitGroup
}

// New builds a controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Room == nil {
		return nil, fmt.Errorf("room is required")
	}
	if cfg.NewAvatar == nil {
		return nil, fmt.Errorf("avatar factory is required")
	}
	if cfg.Store == nil || cfg.Pipeline == nil || cfg.Emitter == nil {
		return nil, fmt.Errorf("store, pipeline and emitter are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ConsultantName == "" {
		cfg.ConsultantName = "Dave"
	}
	return &Controller{
		cfg:          cfg,
		logger:       cfg.Logger,
		now:          cfg.Clock,
		participants: make(map[string]struct{}),
	}, nil
}

// IsActive reports whether an avatar/session pair is currently live.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ParticipantCount reports the number of known remote participants.
func (c *Controller) ParticipantCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.participants)
}

// Run consumes room events until the event stream closes or ctx is done,
// then tears down any live session and waits for pipelines to drain.
func (c *Controller) Run(ctx context.Context) error {
	defer c.pipelines.Wait()

	for {
		select {
		case <-ctx.Done():
			if c.IsActive() {
				c.finish(context.WithoutCancel(ctx))
			}
			return ctx.Err()
		case ev, ok := <-c.cfg.Room.Events():
			if !ok {
				c.logger.Info("room event stream ended")
				if c.IsActive() {
					c.finish(context.WithoutCancel(ctx))
				}
				return nil
			}
			c.handleEvent(ctx, ev)
		}
	}
}

// HandleEvent processes one room event. Exported for tests; Run is the only
// production caller, which keeps all transitions on one goroutine.
func (c *Controller) HandleEvent(ctx context.Context, ev room.Event) {
	c.handleEvent(ctx, ev)
}

func (c *Controller) handleEvent(ctx context.Context, ev room.Event) {
	switch ev.Type {
	case room.EventParticipantJoined:
		c.logger.Info("participant connected", "identity", ev.Participant.Identity)
		c.mu.Lock()
		c.participants[ev.Participant.ID] = struct{}{}
		active := c.active
		c.mu.Unlock()

		if active {
			return
		}
		if err := c.start(ctx); err != nil {
			// Fatal for this attempt only; the controller stays Idle so a
			// later join can retry.
			c.logger.Error("avatar start failed", "error", err)
		}

	case room.EventParticipantLeft:
		c.logger.Info("participant disconnected", "identity", ev.Participant.Identity)
		c.mu.Lock()
		delete(c.participants, ev.Participant.ID)
		remaining := len(c.participants)
		active := c.active
		c.mu.Unlock()

		if remaining == 0 && active {
			c.finish(ctx)
		}

	case room.EventTrackSubscribed:
		if ev.Track == nil || ev.Track.Kind() != room.TrackKindVideo {
			return
		}
		c.logger.Info("video track subscribed", "track", ev.Track.ID(), "identity", ev.Participant.Identity)
		track := ev.Track
		c.pipelines.Add(1)
		go func() {
			defer c.pipelines.Done()
			c.cfg.Pipeline.Run(ctx, track)
		}()
	}
}

// start runs the activation sequence. Each activation begins with a clean
// inventory and throttle window.
func (c *Controller) start(ctx context.Context) error {
	c.logger.Info("starting avatar session", "room", c.cfg.Room.Name())

	c.cfg.Store.Reset()
	c.cfg.Pipeline.ResetThrottle()

	av := c.cfg.NewAvatar()
	if err := av.Start(ctx, c.cfg.Room.Name()); err != nil {
		return fmt.Errorf("start avatar: %w", err)
	}

	c.mu.Lock()
	c.avatar = av
	c.active = true
	c.mu.Unlock()

	c.logger.Info("avatar session started")
	c.SendConsultationMessage(ctx, fmt.Sprintf(
		"Hello! I'm %s, your moving consultant. I'll help you inventory your items. "+
			"Please show me around the room slowly so I can see everything clearly.",
		c.cfg.ConsultantName))
	return nil
}

// finish delivers the final summary, persists the snapshot and stops the
// avatar. Every step after the summary is best-effort: a failed write or
// stop still leaves the controller Idle and ready for a new consultation.
func (c *Controller) finish(ctx context.Context) {
	summary := c.cfg.Store.Summarize()
	c.SendConsultationMessage(ctx, "Final inventory summary:\n"+summary)

	ts := float64(c.now().UnixNano()) / float64(time.Second)
	snap := c.cfg.Store.Snapshot(ts)
	err := c.cfg.Emitter.Persist(snap)
	c.cfg.Metrics.SnapshotWrite(err)
	if err != nil {
		c.logger.Error("snapshot persist failed", "path", c.cfg.Emitter.Path(), "error", err)
	} else {
		c.logger.Info("inventory snapshot saved", "path", c.cfg.Emitter.Path())
	}

	c.mu.Lock()
	av := c.avatar
	c.avatar = nil
	c.active = false
	c.mu.Unlock()

	if av != nil {
		if err := av.Stop(ctx); err != nil {
			c.logger.Error("avatar stop failed", "error", err)
		} else {
			c.logger.Info("avatar session stopped")
		}
	}
}

// SendConsultationMessage publishes text over the room's reliable data
// channel. Failures are logged, never raised; the channel is informational.
func (c *Controller) SendConsultationMessage(ctx context.Context, text string) {
	if err := c.cfg.Room.PublishData(ctx, []byte(text)); err != nil {
		c.logger.Error("consultation message send failed", "error", err)
		return
	}
	c.cfg.Metrics.MessageSent()
	c.logger.Debug("consultation message sent", "text", text)
}
