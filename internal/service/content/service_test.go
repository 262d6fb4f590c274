package content

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/cache"
	"github.com/rasa-ai/rasa/backend/internal/service/ai"
)

type scriptedGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []ai.Prompt
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Stream(context.Context, ai.Prompt) (ai.Stream, error) {
	return nil, errors.New("not used")
}

func (g *scriptedGenerator) Generate(_ context.Context, p ai.Prompt) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, p)
	return g.reply, g.err
}

func newService(t *testing.T, gen ai.Generator) *Service {
	t.Helper()
	c := cache.NewLocal(time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	s := NewService(gen, c, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestDailyTipIsCachedPerLanguage(t *testing.T) {
	gen := &scriptedGenerator{reply: "```json\n{\"tip\":\"Sip ginger tea.\",\"ingredients\":[\"ginger\"]}\n```"}
	s := newService(t, gen)
	ctx := context.Background()

	tip := s.DailyTip(ctx, "en-US")
	assert.Equal(t, "Sip ginger tea.", tip.Tip)
	assert.Equal(t, []string{"ginger"}, tip.Ingredients)

	again := s.DailyTip(ctx, "en-US")
	assert.Equal(t, tip, again)
	assert.Equal(t, 1, gen.calls)

	s.DailyTip(ctx, "hi-IN")
	assert.Equal(t, 2, gen.calls)
	require.Len(t, gen.prompts[1].JSONFields, 2)
}

func TestDailyTipFallback(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("quota")}
	s := newService(t, gen)

	tip := s.DailyTip(context.Background(), "")
	assert.Equal(t, FallbackTip, tip.Tip)
	assert.Equal(t, "en-US", tip.Lang)
	assert.NotNil(t, tip.Ingredients)

	// fallbacks are not cached
	s.DailyTip(context.Background(), "")
	assert.Equal(t, 2, gen.calls)
}

func TestSeasonalWisdomDefaultsToCurrentSeason(t *testing.T) {
	gen := &scriptedGenerator{reply: "## Autumn\n- Favour warm food"}
	s := newService(t, gen)

	w := s.SeasonalWisdom(context.Background(), "", "en-US")
	assert.Equal(t, "Autumn", w.Season)
	assert.Contains(t, w.Text, "Favour warm food")
	assert.Contains(t, gen.prompts[0].Query, "Autumn season")
}

func TestSeasonalWisdomFallback(t *testing.T) {
	s := newService(t, nil)
	w := s.SeasonalWisdom(context.Background(), "Summer", "ta-IN")
	assert.Equal(t, "Embrace the rhythm of Summer. More wisdom is coming soon.", w.Text)
}

func TestTranslate(t *testing.T) {
	s := newService(t, &scriptedGenerator{reply: `"नमस्ते"`})
	assert.Equal(t, "नमस्ते", s.Translate(context.Background(), "hello", "hi-IN"))
	assert.Equal(t, "", s.Translate(context.Background(), "", "hi-IN"))

	failing := newService(t, &scriptedGenerator{err: errors.New("down")})
	assert.Equal(t, "hello", failing.Translate(context.Background(), "hello", "hi-IN"))
}

func TestWelcome(t *testing.T) {
	gen := &scriptedGenerator{reply: "नमस्ते! मैं रस एआई हूँ।"}
	s := newService(t, gen)
	ctx := context.Background()

	assert.Equal(t, ai.WelcomeMessage, s.Welcome(ctx, "en-US"))
	assert.Zero(t, gen.calls)

	assert.Equal(t, "नमस्ते! मैं रस एआई हूँ।", s.Welcome(ctx, "hi-IN"))
	s.Welcome(ctx, "hi-IN")
	assert.Equal(t, 1, gen.calls)
}

func TestAnalyzeImage(t *testing.T) {
	gen := &scriptedGenerator{reply: "[LANG:hi-IN] **Disclaimer** This looks like a mild rash."}
	s := newService(t, gen)
	img := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})

	res, err := s.AnalyzeImage(context.Background(), ImageRequest{Base64: "data:image/jpeg;base64," + img, Lang: "en-US"})
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", res.Lang)
	assert.Equal(t, "**Disclaimer** This looks like a mild rash.", res.Caption)
	require.Len(t, gen.prompts[0].Images, 1)
	assert.Equal(t, "image/jpeg", gen.prompts[0].Images[0].MIMEType)
}

func TestAnalyzeImageFallbackAndValidation(t *testing.T) {
	s := newService(t, &scriptedGenerator{err: errors.New("down")})
	img := base64.StdEncoding.EncodeToString([]byte("png"))

	res, err := s.AnalyzeImage(context.Background(), ImageRequest{Base64: img, MIMEType: "image/png", Lang: "bn-IN"})
	require.NoError(t, err)
	assert.Equal(t, "bn-IN", res.Lang)
	assert.Equal(t, "Sorry, I was unable to analyze the image. Please try again.", res.Caption)

	_, err = s.AnalyzeImage(context.Background(), ImageRequest{Base64: "%%%"})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestCurrentSeason(t *testing.T) {
	cases := map[time.Month]string{
		time.January: "Winter", time.March: "Spring", time.May: "Spring",
		time.June: "Summer", time.August: "Summer", time.September: "Autumn",
		time.November: "Autumn", time.December: "Winter",
	}
	for month, want := range cases {
		assert.Equal(t, want, CurrentSeason(time.Date(2026, month, 1, 0, 0, 0, 0, time.UTC)), month.String())
	}
}
