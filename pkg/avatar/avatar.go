// Package avatar is the boundary to the avatar rendering service. It carries
// no inventory logic: it starts and stops a rendered persona against a room
// and nothing else.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the default rendering service endpoint root.
const DefaultBaseURL = "https://api.anam.ai"

// PersonaConfig is the named configuration driving the rendered avatar.
type PersonaConfig struct {
	Name                    string `json:"name"`
	AvatarID                string `json:"avatarId"`
	VoiceID                 string `json:"voiceId,omitempty"`
	LLMID                   string `json:"llmId,omitempty"`
	SystemPrompt            string `json:"systemPrompt,omitempty"`
	MaxSessionLengthSeconds int    `json:"maxSessionLengthSeconds,omitempty"`
}

// Session renders one persona into one room. Create it with NewSession, then
// Start it; a stopped session cannot be restarted.
type Session struct {
	persona    PersonaConfig
	apiKey     string
	baseURL    string
	httpClient *http.Client

	sessionID string
}

// Option configures a Session.
type Option func(*Session)

// WithBaseURL overrides the rendering service endpoint root.
func WithBaseURL(url string) Option {
	return func(s *Session) { s.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// NewSession builds an avatar session bound to a persona and credential.
func NewSession(persona PersonaConfig, apiKey string, opts ...Option) *Session {
	s := &Session{
		persona:    persona,
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type startRequest struct {
	Persona PersonaConfig `json:"persona"`
	Room    string        `json:"room"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

// Start asks the rendering service to begin rendering the persona into the
// named room.
func (s *Session) Start(ctx context.Context, roomName string) error {
	if s.apiKey == "" {
		return fmt.Errorf("avatar credential not configured")
	}

	body, err := json.Marshal(startRequest{Persona: s.persona, Room: roomName})
	if err != nil {
		return fmt.Errorf("marshal start request: %w", err)
	}

	respBody, err := s.do(ctx, http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("start avatar session: %w", err)
	}

	var parsed startResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("parse start response: %w", err)
	}
	if parsed.SessionID == "" {
		return fmt.Errorf("rendering service returned no session id")
	}
	s.sessionID = parsed.SessionID
	return nil
}

// Stop ends the rendered session. Calling Stop on a never-started session is
// a no-op.
func (s *Session) Stop(ctx context.Context) error {
	if s.sessionID == "" {
		return nil
	}
	_, err := s.do(ctx, http.MethodDelete, "/v1/sessions/"+s.sessionID, nil)
	s.sessionID = ""
	if err != nil {
		return fmt.Errorf("stop avatar session: %w", err)
	}
	return nil
}

// SessionID returns the rendering service's identifier for the live session,
// empty when not started.
func (s *Session) SessionID() string {
	return s.sessionID
}

func (s *Session) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := strings.TrimRight(s.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("rendering service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
