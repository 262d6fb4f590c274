package ai

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeGenerator returns canned fragments or errors.
type fakeGenerator struct {
	mu        sync.Mutex
	fragments []string
	openErr   error
	recvErr   error
	calls     int
	prompts   []Prompt
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Stream(_ context.Context, p Prompt) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, p)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &sliceStream{items: append([]string(nil), f.fragments...), err: f.recvErr}, nil
}

func (f *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, p)
	if f.openErr != nil {
		return "", f.openErr
	}
	out := ""
	for _, s := range f.fragments {
		out += s
	}
	return out, nil
}

type sliceStream struct {
	items  []string
	err    error
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.items) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *sliceStream) Close() { s.closed = true }

// fakeChatModel echoes the last user message in two chunks.
type fakeChatModel struct {
	lastInput []*schema.Message
}

var _ model.ChatModel = (*fakeChatModel)(nil)

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.lastInput = input
	if len(input) == 0 {
		return nil, errors.New("no input")
	}
	return schema.AssistantMessage("echo: "+input[len(input)-1].Content, nil), nil
}

func (m *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.lastInput = input
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("[LANG:en-US] ", nil),
		schema.AssistantMessage("", nil),
		schema.AssistantMessage("hello", nil),
	}), nil
}

func (m *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }
