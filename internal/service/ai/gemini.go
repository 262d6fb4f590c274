package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rasa-ai/rasa/backend/internal/config"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

// GeminiGenerator talks to the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGeminiGenerator creates a Gemini API client.
func NewGeminiGenerator(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) (*GeminiGenerator, error) {
	if !cfg.Enabled() {
		return nil, errors.New("GEMINI_API_KEY and GEMINI_MODEL must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.Model, log: log}, nil
}

func (g *GeminiGenerator) Name() string {
	return config.ProviderGemini
}

// Stream pipes streamed candidates into an eino stream reader. Closing the
// reader cancels the request.
func (g *GeminiGenerator) Stream(ctx context.Context, p Prompt) (Stream, error) {
	contents, cfg := g.request(p)

	streamCtx, cancel := context.WithCancel(ctx)
	sr, sw := schema.Pipe[string](8)

	go func() {
		defer sw.Close()
		for res, err := range g.client.Models.GenerateContentStream(streamCtx, g.model, contents, cfg) {
			if err != nil {
				sw.Send("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := res.Text()
			if text == "" {
				continue
			}
			if closed := sw.Send(text, nil); closed {
				return
			}
		}
	}()

	return &cancelOnClose{Stream: sr, cancel: cancel}, nil
}

// Generate returns the full response text.
func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	contents, cfg := g.request(p)

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

func (g *GeminiGenerator) request(p Prompt) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	for _, m := range p.History {
		role := genai.Role(genai.RoleUser)
		if m.Sender == chat.SenderAI {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(p.Query)}
	for _, img := range p.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	budget := int32(0)
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if len(p.JSONFields) > 0 {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = responseSchema(p.JSONFields)
	}
	return contents, cfg
}

func responseSchema(fields []JSONField) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		if f.List {
			s.Properties[f.Name] = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
		} else {
			s.Properties[f.Name] = &genai.Schema{Type: genai.TypeString}
		}
		s.Required = append(s.Required, f.Name)
	}
	return s
}

type cancelOnClose struct {
	Stream
	cancel context.CancelFunc
}

func (s *cancelOnClose) Close() {
	s.cancel()
	s.Stream.Close()
}
