package ai

import (
	"context"
	"errors"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

// ErrUnavailable is returned when no model provider is configured or the
// provider is short-circuited.
var ErrUnavailable = errors.New("ai: generator unavailable")

// Stream yields text fragments until it returns io.EOF. Close releases the
// underlying connection and may be called at any time.
type Stream interface {
	Recv() (string, error)
	Close()
}

// Generator produces assistant output from a prompt.
type Generator interface {
	Stream(ctx context.Context, p Prompt) (Stream, error)
	Generate(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Prompt is a provider-neutral model request.
type Prompt struct {
	System  string
	History []chat.Message
	Query   string
	Images  []Image
	// JSONFields asks for a JSON object with these fields.
	JSONFields []JSONField
}

// Image is inline image data passed to vision-capable models.
type Image struct {
	MIMEType string
	Data     []byte
}

// JSONField describes one property of a structured response.
type JSONField struct {
	Name string
	List bool
}
