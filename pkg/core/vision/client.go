// Package vision wraps the external image classifier behind the Detect
// boundary. Detect never fails: classifier or transport trouble degrades to
// a neutral record so the frame pipeline can always move on to the next
// frame.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/movedesk/consult-agent/pkg/core/types"
)

// SystemPrompt is the fixed instruction sent with every frame.
const SystemPrompt = "You are Dave, a professional moving consultant. Analyze the room and provide a detailed inventory. " +
	"Respond with JSON only in this format: " +
	`{"room_type": "bedroom/kitchen/living_room/etc", "items":[{"name":"item_name", "qty":1, "size":"small/medium/large", "fragile":true/false}], "notes":"additional_observations"}`

// UserPrompt accompanies the image itself.
const UserPrompt = "Analyze this room for moving inventory."

// Classifier is one vision backend: JPEG bytes in, raw model text out.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, imageJPEG []byte) (string, error)
}

// Result distinguishes a real detection from a neutral record produced
// because the classifier failed or is not configured.
type Result struct {
	Record   types.DetectionRecord
	Degraded bool
	Reason   string
}

// Client is the detection client. A nil classifier puts it in degraded mode
// permanently: no network calls, neutral records only.
type Client struct {
	classifier Classifier
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient builds a detection client. timeout bounds each classifier call;
// zero means no bound beyond the caller's context.
func NewClient(classifier Classifier, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{classifier: classifier, timeout: timeout, logger: logger}
}

// Available reports whether a classifier backend is configured.
func (c *Client) Available() bool {
	return c != nil && c.classifier != nil
}

// Detect runs one frame through the classifier and normalizes the outcome.
func (c *Client) Detect(ctx context.Context, imageJPEG []byte) Result {
	if !c.Available() {
		return Result{
			Record:   neutralRecord("Vision analysis not available"),
			Degraded: true,
			Reason:   "classifier not configured",
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := c.classifier.Classify(ctx, imageJPEG)
	if err != nil {
		c.logger.Error("vision classify failed", "classifier", c.classifier.Name(), "error", err)
		return Result{
			Record:   neutralRecord(fmt.Sprintf("Analysis error: %v", err)),
			Degraded: true,
			Reason:   err.Error(),
		}
	}

	return Result{Record: parseDetection(text)}
}

// parseDetection decodes classifier text into a DetectionRecord. Non-JSON
// responses are preserved verbatim in the notes of a neutral record rather
// than discarded.
func parseDetection(text string) types.DetectionRecord {
	var rec types.DetectionRecord
	if err := json.Unmarshal([]byte(stripFences(text)), &rec); err != nil {
		return neutralRecord(text)
	}
	rec.Normalize()
	return rec
}

func neutralRecord(notes string) types.DetectionRecord {
	return types.DetectionRecord{
		RoomType: types.UnknownRoom,
		Items:    []types.ItemDetection{},
		Notes:    notes,
	}
}

// stripFences removes a surrounding markdown code fence, which some models
// wrap around JSON output despite the prompt.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.Index(t, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		t = t[idx+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
