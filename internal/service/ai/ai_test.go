package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/config"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
)

func drain(t *testing.T, s Stream) []string {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk)
	}
}

func TestHealthContext(t *testing.T) {
	users := user.NewMemoryStore(user.Seed())

	patient, _ := users.FindByID("1")
	assert.Equal(t,
		"USER HEALTH CONTEXT: Age: 30. Medical History: None. Food Allergies: Peanuts. Please tailor your advice to this context. ",
		HealthContext(&patient))

	consultant, _ := users.FindByID("2")
	assert.Empty(t, HealthContext(&consultant))
	assert.Empty(t, HealthContext(nil))

	assert.Equal(t, "User query: hi", ChatQuery(nil, "hi"))
}

func TestRecentHistorySkipsNonTextTurns(t *testing.T) {
	messages := []chat.Message{
		{ID: 1, Sender: chat.SenderUser, Text: "one"},
		{ID: 2, Sender: chat.SenderAI, Recipes: []chat.Recipe{{Name: "x"}}},
		{ID: 3, Sender: chat.SenderUser, Text: "three"},
		{ID: 4, Sender: chat.SenderAI, Text: "four"},
	}

	got := RecentHistory(messages, 2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)

	assert.Len(t, RecentHistory(messages, 10), 3)
	assert.Nil(t, RecentHistory(messages, 0))
}

func TestPromptsNameLanguage(t *testing.T) {
	assert.Contains(t, DailyTipQuery("hi-IN"), "Language: Hindi.")
	assert.Contains(t, SeasonalWisdomQuery("Winter", "ta-IN"), "for the Winter season")
	assert.Contains(t, TranslateQuery("hello", "bn-IN"), "to Bengali")
	assert.Contains(t, VisionQuery("", "en-US"), "Please analyze this image.")
}

func TestChainGeneratorStream(t *testing.T) {
	ctx := context.Background()
	fake := &fakeChatModel{}
	g, err := NewChainGenerator(ctx, "ark", fake, zap.NewNop())
	require.NoError(t, err)

	s, err := g.Stream(ctx, Prompt{
		System:  SystemPrompt,
		History: []chat.Message{{Sender: chat.SenderUser, Text: "earlier"}, {Sender: chat.SenderAI, Text: "reply"}},
		Query:   "User query: {braces} stay literal",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"[LANG:en-US] ", "hello"}, drain(t, s))

	require.Len(t, fake.lastInput, 4)
	assert.Equal(t, schema.System, fake.lastInput[0].Role)
	assert.Equal(t, schema.Assistant, fake.lastInput[2].Role)
	assert.Equal(t, "User query: {braces} stay literal", fake.lastInput[3].Content)
}

func TestChainGeneratorGenerateWithImage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeChatModel{}
	g, err := NewChainGenerator(ctx, "ark", fake, zap.NewNop())
	require.NoError(t, err)

	_, err = g.Generate(ctx, Prompt{
		System: "sys",
		Query:  "look",
		Images: []Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)

	last := fake.lastInput[len(fake.lastInput)-1]
	require.Len(t, last.MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, last.MultiContent[1].Type)
	assert.True(t, strings.HasPrefix(last.MultiContent[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestSystemWithFormat(t *testing.T) {
	got := systemWithFormat(Prompt{System: "sys", JSONFields: []JSONField{{Name: "tip"}, {Name: "ingredients", List: true}}})
	assert.Contains(t, got, `"tip" (string)`)
	assert.Contains(t, got, `"ingredients" (array of strings)`)
	assert.Equal(t, "sys", systemWithFormat(Prompt{System: "sys"}))
}

func TestResponseSchema(t *testing.T) {
	s := responseSchema([]JSONField{{Name: "tip"}, {Name: "ingredients", List: true}})
	assert.Equal(t, []string{"tip", "ingredients"}, s.Required)
	require.Contains(t, s.Properties, "ingredients")
	assert.NotNil(t, s.Properties["ingredients"].Items)
}

func breakerConfig() config.BreakerConfig {
	return config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, ConsecutiveFailures: 2}
}

func TestGuardedOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeGenerator{openErr: errors.New("boom")}
	g := NewGuarded(fake, breakerConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Stream(ctx, Prompt{})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Stream(ctx, Prompt{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, fake.calls, "open breaker must not reach the provider")
}

func TestGuardedCountsReceiveErrors(t *testing.T) {
	fake := &fakeGenerator{fragments: []string{"a"}, recvErr: errors.New("reset")}
	g := NewGuarded(fake, breakerConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := g.Stream(ctx, Prompt{})
		require.NoError(t, err)
		_, _ = s.Recv()
		_, err = s.Recv()
		require.Error(t, err)
		s.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())
}

func TestGuardedSuccessfulStreamKeepsBreakerClosed(t *testing.T) {
	fake := &fakeGenerator{fragments: []string{"a", "b"}}
	g := NewGuarded(fake, breakerConfig(), zap.NewNop())

	for i := 0; i < 3; i++ {
		s, err := g.Stream(context.Background(), Prompt{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, drain(t, s))
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())

	text, err := g.Generate(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}
