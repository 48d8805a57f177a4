package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/movedesk/consult-agent/pkg/core/inventory"
	"github.com/movedesk/consult-agent/pkg/core/pipeline"
	"github.com/movedesk/consult-agent/pkg/core/report"
	"github.com/movedesk/consult-agent/pkg/core/types"
	"github.com/movedesk/consult-agent/pkg/core/vision"
	"github.com/movedesk/consult-agent/pkg/room"
)

type fakeRoom struct {
	mu     sync.Mutex
	events chan room.Event
	sent   []string
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{events: make(chan room.Event, 16)}
}

func (r *fakeRoom) Name() string { return "consult" }

func (r *fakeRoom) Events() <-chan room.Event { return r.events }

func (r *fakeRoom) Close() error { return nil }

func (r *fakeRoom) PublishData(_ context.Context, payload []byte) error {
	r.mu.Lock()
	r.sent = append(r.sent, string(payload))
	r.mu.Unlock()
	return nil
}

func (r *fakeRoom) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fakeAvatar struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	stopErr  error
}

func (a *fakeAvatar) Start(context.Context, string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts++
	return a.startErr
}

func (a *fakeAvatar) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	return a.stopErr
}

func (a *fakeAvatar) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts, a.stops
}

type stubClassifier struct{ text string }

func (s stubClassifier) Name() string { return "stub" }

func (s stubClassifier) Classify(context.Context, []byte) (string, error) {
	return s.text, nil
}

type fixture struct {
	ctrl    *Controller
	room    *fakeRoom
	avatar  *fakeAvatar
	store   *inventory.Store
	snapTmp string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := newFakeRoom()
	av := &fakeAvatar{}
	store := inventory.NewStore()
	snapPath := filepath.Join(t.TempDir(), "inventory.json")

	detector := vision.NewClient(stubClassifier{
		text: `{"room_type":"bedroom","items":[{"name":"lamp","qty":1,"size":"small","fragile":false}],"notes":""}`,
	}, 0, nil)

	ctrl, err := New(Config{
		Room:      r,
		NewAvatar: func() Avatar { return av },
		Store:     store,
		Emitter:   report.NewEmitter(snapPath),
	})
	if err == nil {
		t.Fatal("expected error when pipeline missing")
	}

	p := pipeline.New(store, detector, func(ctx context.Context, text string) {
		r.PublishData(ctx, []byte(text))
	})
	ctrl, err = New(Config{
		Room:      r,
		NewAvatar: func() Avatar { return av },
		Store:     store,
		Pipeline:  p,
		Emitter:   report.NewEmitter(snapPath),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{ctrl: ctrl, room: r, avatar: av, store: store, snapTmp: snapPath}
}

func join(id string) room.Event {
	return room.Event{Type: room.EventParticipantJoined, Participant: room.Participant{ID: id, Identity: id}}
}

func leave(id string) room.Event {
	return room.Event{Type: room.EventParticipantLeft, Participant: room.Participant{ID: id, Identity: id}}
}

func TestFirstJoinStartsAvatarOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ctrl.HandleEvent(ctx, join("p1"))
	f.ctrl.HandleEvent(ctx, join("p2"))

	starts, stops := f.avatar.counts()
	if starts != 1 {
		t.Errorf("starts = %d, want 1 (idempotent activation)", starts)
	}
	if stops != 0 {
		t.Errorf("stops = %d, want 0", stops)
	}
	if !f.ctrl.IsActive() {
		t.Error("controller should be active")
	}

	msgs := f.room.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "moving consultant") {
		t.Errorf("welcome messages = %v", msgs)
	}
}

func TestLeaveWithRemainingParticipantsIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ctrl.HandleEvent(ctx, join("p1"))
	f.ctrl.HandleEvent(ctx, join("p2"))
	f.ctrl.HandleEvent(ctx, leave("p1"))

	if _, stops := f.avatar.counts(); stops != 0 {
		t.Errorf("stops = %d, want 0 while a participant remains", stops)
	}
	if !f.ctrl.IsActive() {
		t.Error("controller should remain active")
	}
}

func TestLastLeaveSummarizesPersistsAndStops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ctrl.HandleEvent(ctx, join("p1"))
	f.store.Merge(types.DetectionRecord{
		RoomType: "bedroom",
		Items:    []types.ItemDetection{{Name: "lamp", Qty: 2, Size: types.SizeSmall}},
	})
	f.ctrl.HandleEvent(ctx, leave("p1"))

	if _, stops := f.avatar.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
	if f.ctrl.IsActive() {
		t.Error("controller should be idle after last leave")
	}

	msgs := f.room.messages()
	last := msgs[len(msgs)-1]
	if !strings.HasPrefix(last, "Final inventory summary:\n") || !strings.Contains(last, "lamp x2 (small)") {
		t.Errorf("final message = %q", last)
	}

	snap, err := report.Load(f.snapTmp)
	if err != nil {
		t.Fatalf("snapshot not persisted: %v", err)
	}
	if snap.Inventory["bedroom"]["lamp"].Qty != 2 {
		t.Errorf("snapshot lamp = %+v", snap.Inventory["bedroom"]["lamp"])
	}
	if snap.Timestamp <= 0 {
		t.Errorf("snapshot timestamp = %v", snap.Timestamp)
	}
}

func TestStartFailureLeavesIdleAndRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.avatar.startErr = errors.New("render service down")

	f.ctrl.HandleEvent(ctx, join("p1"))
	if f.ctrl.IsActive() {
		t.Fatal("controller must stay idle after a failed start")
	}

	f.avatar.startErr = nil
	f.ctrl.HandleEvent(ctx, join("p2"))
	if !f.ctrl.IsActive() {
		t.Error("later join should retry and activate")
	}
	starts, _ := f.avatar.counts()
	if starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}

func TestStopFailureStillGoesIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.avatar.stopErr = errors.New("already gone")

	f.ctrl.HandleEvent(ctx, join("p1"))
	f.ctrl.HandleEvent(ctx, leave("p1"))

	if f.ctrl.IsActive() {
		t.Error("stop failure must not prevent the idle transition")
	}

	// The controller is ready for a fresh consultation.
	f.ctrl.HandleEvent(ctx, join("p2"))
	if !f.ctrl.IsActive() {
		t.Error("controller should reactivate")
	}
}

func TestActivationResetsInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ctrl.HandleEvent(ctx, join("p1"))
	f.store.Merge(types.DetectionRecord{
		RoomType: "bedroom",
		Items:    []types.ItemDetection{{Name: "lamp", Qty: 1}},
	})
	f.ctrl.HandleEvent(ctx, leave("p1"))

	f.ctrl.HandleEvent(ctx, join("p2"))
	if f.store.ItemCount() != 0 {
		t.Error("new consultation should begin with a clean inventory")
	}
	if f.store.CurrentRoom() != types.UnknownRoom {
		t.Errorf("CurrentRoom = %q after reset", f.store.CurrentRoom())
	}
}

func TestRunProcessesEventsAndFinishesOnClose(t *testing.T) {
	f := newFixture(t)

	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.Run(context.Background())
	}()

	f.room.events <- join("p1")

	frames := make(chan room.Frame, 1)
	frames <- room.Frame{Width: 4, Height: 4, Y: make([]byte, 16), Cb: make([]byte, 4), Cr: make([]byte, 4)}
	close(frames)
	f.room.events <- room.Event{
		Type:        room.EventTrackSubscribed,
		Participant: room.Participant{ID: "p1"},
		Track:       fakeTrack{frames: frames},
	}

	deadline := time.After(2 * time.Second)
	for f.store.CurrentRoom() != "bedroom" {
		select {
		case <-deadline:
			t.Fatal("pipeline never merged a detection")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(f.room.events)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// Event stream ending while active still produces a snapshot.
	if _, err := report.Load(f.snapTmp); err != nil {
		t.Errorf("snapshot missing after stream close: %v", err)
	}
}

type fakeTrack struct {
	frames chan room.Frame
}

func (f fakeTrack) ID() string { return "t1" }
func (f fakeTrack) Kind() room.TrackKind { return room.TrackKindVideo }
func (f fakeTrack) Frames() <-chan room.Frame { return f.frames }
