package vision

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini vision model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini classifies frames through the Gemini API with the JPEG attached as
// an inline blob.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Name returns the classifier identifier.
func (g *Gemini) Name() string {
	return "gemini"
}

// Classify sends the frame with the fixed instruction prompt and returns the
// raw response text.
func (g *Gemini) Classify(ctx context.Context, imageJPEG []byte) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageJPEG, "image/jpeg"),
			genai.NewPartFromText(UserPrompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](classifierTemperature),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("classifier returned empty response")
	}
	return text, nil
}
