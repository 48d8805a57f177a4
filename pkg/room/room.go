// Package room is the boundary to the real-time room provider. It delivers
// occupancy events and subscribed video tracks to the core, and carries the
// reliable outbound data channel used for consultation messages.
package room

import "context"

// Participant identifies a remote participant in the room.
type Participant struct {
	ID       string
	Identity string
}

// TrackKind distinguishes media track types.
type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

// Track is one subscribed media track. Frames is closed when the track ends.
type Track interface {
	ID() string
	Kind() TrackKind
	Frames() <-chan Frame
}

// EventType enumerates room occupancy and subscription events.
type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventTrackSubscribed   EventType = "track_subscribed"
)

// Event is one room event. Track is set only for EventTrackSubscribed.
type Event struct {
	Type        EventType
	Participant Participant
	Track       Track
}

// Room is the provider interface the session controller consumes.
type Room interface {
	// Name returns the room identifier.
	Name() string
	// Events delivers occupancy and track events in arrival order. The
	// channel is closed when the connection ends.
	Events() <-chan Event
	// PublishData sends bytes over the reliable data channel.
	PublishData(ctx context.Context, payload []byte) error
	// Close tears down the connection.
	Close() error
}
