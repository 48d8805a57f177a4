// Package pipeline consumes subscribed video tracks and turns frames into
// inventory: each frame is JPEG-encoded, classified, merged into the store,
// and may produce a throttled spoken progress update.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/movedesk/consult-agent/internal/metrics"
	"github.com/movedesk/consult-agent/pkg/core/inventory"
	"github.com/movedesk/consult-agent/pkg/core/types"
	"github.com/movedesk/consult-agent/pkg/core/vision"
	"github.com/movedesk/consult-agent/pkg/room"
)

const (
	// DefaultEmitInterval bounds outbound chatter to one progress message
	// per window regardless of frame rate.
	DefaultEmitInterval = 15 * time.Second

	jpegQuality = 85
)

const unclearMessage = "I'm having trouble seeing clearly. Please ensure good lighting and show items slowly."

// SendFunc publishes a consultation message. Delivery is best-effort; the
// implementation owns error handling.
type SendFunc func(ctx context.Context, text string)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmitInterval overrides the progress message throttle window.
func WithEmitInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.emitInterval = d
		}
	}
}

// WithClock injects a time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics attaches operational counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline drives detection for one or more video tracks against a shared
// store. Throttle state is shared across tracks so the chatter bound holds
// for the whole session.
type Pipeline struct {
	store        *inventory.Store
	detector     *vision.Client
	send         SendFunc
	emitInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu       sync.Mutex
	lastEmit time.Time
}

// New builds a pipeline.
func New(store *inventory.Store, detector *vision.Client, send SendFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		detector:     detector,
		send:         send,
		emitInterval: DefaultEmitInterval,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResetThrottle clears the emit timestamp so a fresh consultation starts
// with a clean window.
func (p *Pipeline) ResetThrottle() {
	p.mu.Lock()
	p.lastEmit = time.Time{}
	p.mu.Unlock()
}

// Run processes frames from one track until the track ends or ctx is done.
// The track's delivery channel replaces unconsumed frames, so a slow
// detection only delays that frame's contribution; backlog is dropped, never
// queued.
func (p *Pipeline) Run(ctx context.Context, track room.Track) {
	p.logger.Info("frame pipeline started", "track", track.ID())
	defer p.logger.Info("frame pipeline stopped", "track", track.ID())

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-track.Frames():
			if !ok {
				return
			}
			p.ProcessFrame(ctx, frame)
		}
	}
}

// ProcessFrame runs one frame through encode, detect, merge and the
// throttled progress emit.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame room.Frame) {
	jpegBytes, err := encodeJPEG(frame)
	if err != nil {
		p.logger.Warn("frame encode failed", "error", err)
		p.metrics.FrameDropped()
		return
	}

	res := p.detector.Detect(ctx, jpegBytes)
	p.metrics.FrameProcessed()
	p.metrics.Detection(res.Degraded)
	if res.Degraded {
		p.logger.Debug("degraded detection", "reason", res.Reason)
	}

	p.store.Merge(res.Record)
	p.maybeEmit(ctx, res.Record)
}

func encodeJPEG(frame room.Frame) ([]byte, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// maybeEmit sends a progress message when the throttle window has elapsed.
// The timestamp advances before the send so a slow publish cannot let a
// second message into the same window.
func (p *Pipeline) maybeEmit(ctx context.Context, det types.DetectionRecord) {
	now := p.now()

	p.mu.Lock()
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) <= p.emitInterval {
		p.mu.Unlock()
		return
	}
	p.lastEmit = now
	p.mu.Unlock()

	p.send(ctx, progressMessage(det))
}

// progressMessage composes the spoken update for one detection.
func progressMessage(det types.DetectionRecord) string {
	if det.RoomType == types.UnknownRoom {
		return unclearMessage
	}
	msg := fmt.Sprintf("I can see this is a %s. ", det.RoomType)
	if len(det.Items) > 0 {
		msg += fmt.Sprintf("I've detected %d items. ", len(det.Items))
	}
	return msg + "Please continue showing me around for a complete inventory."
}
