package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

// ChainGenerator runs prompts through an eino chain: chat template, then
// chat model. It backs the Ark provider.
type ChainGenerator struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	name      string
	log       *zap.Logger
}

// NewChainGenerator compiles the prompt chain around chatModel.
func NewChainGenerator(ctx context.Context, name string, chatModel model.ChatModel, log *zap.Logger) (*ChainGenerator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainGenerator{
		chatModel: chatModel,
		chain:     runnable,
		name:      name,
		log:       log,
	}, nil
}

func (g *ChainGenerator) Name() string {
	return g.name
}

// Stream streams the model output as text fragments.
func (g *ChainGenerator) Stream(ctx context.Context, p Prompt) (Stream, error) {
	var (
		sr  *schema.StreamReader[*schema.Message]
		err error
	)
	if len(p.Images) > 0 {
		// templates cannot carry image parts, so call the model directly
		sr, err = g.chatModel.Stream(ctx, g.buildMessages(p))
	} else {
		sr, err = g.chain.Stream(ctx, g.buildChainInput(p))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return schema.StreamReaderWithConvert(sr, func(msg *schema.Message) (string, error) {
		if msg == nil || msg.Content == "" {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	}), nil
}

// Generate returns the complete model output.
func (g *ChainGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	var (
		response *schema.Message
		err      error
	)
	if len(p.Images) > 0 {
		response, err = g.chatModel.Generate(ctx, g.buildMessages(p))
	} else {
		response, err = g.chain.Invoke(ctx, g.buildChainInput(p))
	}
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	g.log.Debug("generated response", zap.String("provider", g.name), zap.Int("length", len(response.Content)))
	return response.Content, nil
}

func (g *ChainGenerator) buildChainInput(p Prompt) map[string]any {
	return map[string]any{
		"system":  systemWithFormat(p),
		"history": buildHistoryMessages(p.History),
		"query":   p.Query,
	}
}

func (g *ChainGenerator) buildMessages(p Prompt) []*schema.Message {
	messages := []*schema.Message{schema.SystemMessage(systemWithFormat(p))}
	messages = append(messages, buildHistoryMessages(p.History)...)

	parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: p.Query}}
	for _, img := range p.Images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL: "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	messages = append(messages, &schema.Message{Role: schema.User, MultiContent: parts})
	return messages
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderAI:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}

// systemWithFormat appends a JSON shape instruction when the prompt asks for
// structured output. Providers with native schema support ignore it.
func systemWithFormat(p Prompt) string {
	if len(p.JSONFields) == 0 {
		return p.System
	}

	fields := make([]string, 0, len(p.JSONFields))
	for _, f := range p.JSONFields {
		if f.List {
			fields = append(fields, fmt.Sprintf("%q (array of strings)", f.Name))
		} else {
			fields = append(fields, fmt.Sprintf("%q (string)", f.Name))
		}
	}

	var b strings.Builder
	b.WriteString(p.System)
	if p.System != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object and nothing else. Fields: ")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString(".")
	return b.String()
}
