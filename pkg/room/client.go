package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultPingInterval     = 20 * time.Second

	// One-slot frame buffer per track: a frame arriving while the previous
	// one is still unconsumed replaces it. Frames are dropped, never queued.
	trackFrameBuffer = 1

	eventBuffer = 16
)

// Config configures the websocket room client.
type Config struct {
	URL      string
	Token    string
	RoomName string
	Identity string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration

	Logger *slog.Logger
}

// Client is a websocket-backed Room implementation.
type Client struct {
	cfg     Config
	conn    *websocket.Conn
	logger  *slog.Logger
	localID string

	writeMu sync.Mutex

	mu     sync.Mutex
	tracks map[uint32]*remoteTrack

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

type remoteTrack struct {
	id     string
	kind   TrackKind
	frames chan Frame
}

func (t *remoteTrack) ID() string { return t.id }
func (t *remoteTrack) Kind() TrackKind { return t.kind }
func (t *remoteTrack) Frames() <-chan Frame { return t.frames }

// Dial connects to the room provider, joins the configured room and starts
// the read loop.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("room URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial room %q: status %d: %w", cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial room %q: %w", cfg.URL, err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		logger:  cfg.Logger,
		localID: uuid.NewString(),
		tracks:  make(map[uint32]*remoteTrack),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}

	if err := c.writeControl(controlMessage{
		Type:  msgJoin,
		Room:  cfg.RoomName,
		Token: cfg.Token,
		Participant: &participantInfo{
			ID:       c.localID,
			Identity: cfg.Identity,
		},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room %q: %w", cfg.RoomName, err)
	}

	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// Name returns the joined room name.
func (c *Client) Name() string {
	return c.cfg.RoomName
}

// LocalID returns the local participant identifier.
func (c *Client) LocalID() string {
	return c.localID
}

// Events delivers room events. Closed when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// PublishData sends payload over the reliable data channel.
func (c *Client) PublishData(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeControl(controlMessage{
		Type:     msgData,
		Payload:  payload,
		Reliable: true,
	})
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) writeControl(msg controlMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal control message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("write control message: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		for _, t := range c.tracks {
			close(t.frames)
		}
		c.tracks = make(map[uint32]*remoteTrack)
		c.mu.Unlock()
		close(c.events)
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("room connection closed", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			msg, err := decodeControl(data)
			if err != nil {
				c.logger.Warn("bad control message", "error", err)
				continue
			}
			c.handleControl(msg)
		case websocket.BinaryMessage:
			c.handleVideoFrame(data)
		}
	}
}

func (c *Client) handleControl(msg controlMessage) {
	switch msg.Type {
	case msgParticipantJoined, msgParticipantLeft:
		if msg.Participant == nil {
			c.logger.Warn("occupancy message missing participant", "type", msg.Type)
			return
		}
		ev := Event{
			Type:        EventParticipantJoined,
			Participant: Participant{ID: msg.Participant.ID, Identity: msg.Participant.Identity},
		}
		if msg.Type == msgParticipantLeft {
			ev.Type = EventParticipantLeft
		}
		c.emit(ev)
	case msgTrackSubscribed:
		if msg.Track == nil || msg.Participant == nil {
			c.logger.Warn("track message missing track or participant")
			return
		}
		track := &remoteTrack{
			id:     msg.Track.ID,
			kind:   TrackKind(msg.Track.Kind),
			frames: make(chan Frame, trackFrameBuffer),
		}
		c.mu.Lock()
		c.tracks[msg.Track.Num] = track
		c.mu.Unlock()
		c.emit(Event{
			Type:        EventTrackSubscribed,
			Participant: Participant{ID: msg.Participant.ID, Identity: msg.Participant.Identity},
			Track:       track,
		})
	default:
		c.logger.Debug("ignoring control message", "type", msg.Type)
	}
}

func (c *Client) handleVideoFrame(data []byte) {
	trackNum, frame, err := decodeVideoFrame(data)
	if err != nil {
		c.logger.Warn("bad video frame", "error", err)
		return
	}

	c.mu.Lock()
	track, ok := c.tracks[trackNum]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("frame for unknown track", "track_num", trackNum)
		return
	}

	// Latest-wins delivery: replace any unconsumed frame instead of queueing.
	select {
	case track.frames <- frame:
	default:
		select {
		case <-track.frames:
		default:
		}
		select {
		case track.frames <- frame:
		default:
		}
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}
