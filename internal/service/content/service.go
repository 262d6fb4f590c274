// Package content generates the daily tip, seasonal guides, translations and
// image readings shown outside the chat.
package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/intent"
	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/cache"
	"github.com/rasa-ai/rasa/backend/internal/observability"
	"github.com/rasa-ai/rasa/backend/internal/service/ai"
)

const (
	// FallbackTip is served when no tip can be generated.
	FallbackTip = "Remember to drink warm water throughout the day to aid digestion."

	tipTTL         = 24 * time.Hour
	wisdomTTL      = 7 * 24 * time.Hour
	translationTTL = 24 * time.Hour
)

// ErrInvalidImage is returned for image payloads that are not base64.
var ErrInvalidImage = errors.New("image data is not valid base64")

// Tip is the daily Ayurvedic tip.
type Tip struct {
	Tip         string   `json:"tip"`
	Ingredients []string `json:"ingredients"`
	Lang        string   `json:"lang"`
}

// Wisdom is a seasonal Ritucharya guide in markdown.
type Wisdom struct {
	Season string `json:"season"`
	Text   string `json:"text"`
	Lang   string `json:"lang"`
}

// ImageRequest is a symptom photo to analyse.
type ImageRequest struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mime"`
	Prompt   string `json:"prompt"`
	Lang     string `json:"lang"`
}

// Analysis is the model's reading of an image.
type Analysis struct {
	Caption string `json:"caption"`
	Lang    string `json:"lang"`
}

// Service produces content with the model and caches what is shared between
// users. Every operation degrades to a fixed fallback when the model fails.
type Service struct {
	gen   ai.Generator
	cache cache.Cache
	log   *zap.Logger
	now   func() time.Time
}

// NewService returns a content service. gen may be nil when no provider is
// configured.
func NewService(gen ai.Generator, c cache.Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{gen: gen, cache: c, log: log, now: time.Now}
}

// DailyTip returns today's tip in lang.
func (s *Service) DailyTip(ctx context.Context, lang string) Tip {
	lang = language.OrDefault(language.Normalize(lang))
	key := fmt.Sprintf("tip:%s:%s", s.now().Format("2006-01-02"), lang)

	var tip Tip
	if s.lookup(ctx, key, &tip) {
		return tip
	}

	raw, err := s.generate(ctx, ai.Prompt{
		Query:      ai.DailyTipQuery(lang),
		JSONFields: []ai.JSONField{{Name: "tip"}, {Name: "ingredients", List: true}},
	})
	if err == nil {
		err = json.Unmarshal([]byte(intent.StripCodeFence(raw)), &tip)
	}
	if err != nil || strings.TrimSpace(tip.Tip) == "" {
		s.log.Warn("failed to generate daily tip", zap.String("lang", lang), zap.Error(err))
		return Tip{Tip: FallbackTip, Ingredients: []string{}, Lang: lang}
	}

	tip.Lang = lang
	if tip.Ingredients == nil {
		tip.Ingredients = []string{}
	}
	s.store(ctx, key, tip, tipTTL)
	return tip
}

// SeasonalWisdom returns the guide for season in lang. An empty season means
// the current one.
func (s *Service) SeasonalWisdom(ctx context.Context, season, lang string) Wisdom {
	lang = language.OrDefault(language.Normalize(lang))
	season = strings.TrimSpace(season)
	if season == "" {
		season = CurrentSeason(s.now())
	}
	key := fmt.Sprintf("wisdom:%s:%s", strings.ToLower(season), lang)

	var wisdom Wisdom
	if s.lookup(ctx, key, &wisdom) {
		return wisdom
	}

	text, err := s.generate(ctx, ai.Prompt{Query: ai.SeasonalWisdomQuery(season, lang)})
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.Warn("failed to generate seasonal wisdom", zap.String("season", season), zap.Error(err))
		return Wisdom{Season: season, Text: fmt.Sprintf("Embrace the rhythm of %s. More wisdom is coming soon.", season), Lang: lang}
	}

	wisdom = Wisdom{Season: season, Text: strings.TrimSpace(text), Lang: lang}
	s.store(ctx, key, wisdom, wisdomTTL)
	return wisdom
}

// Translate renders text in lang, returning text unchanged on failure.
func (s *Service) Translate(ctx context.Context, text, lang string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	lang = language.OrDefault(language.Normalize(lang))

	out, err := s.generate(ctx, ai.Prompt{Query: ai.TranslateQuery(text, lang)})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		s.log.Warn("translation failed", zap.String("lang", lang), zap.Error(err))
		return text
	}
	// models sometimes keep the quotes from the prompt
	if len(out) >= 2 && strings.HasPrefix(out, `"`) && strings.HasSuffix(out, `"`) {
		out = out[1 : len(out)-1]
	}
	return out
}

// Welcome returns the greeting for a new chat in lang.
func (s *Service) Welcome(ctx context.Context, lang string) string {
	lang = language.OrDefault(language.Normalize(lang))
	if strings.EqualFold(lang, language.Default) {
		return ai.WelcomeMessage
	}

	key := "welcome:" + lang
	var text string
	if s.lookup(ctx, key, &text) {
		return text
	}

	text = s.Translate(ctx, ai.WelcomeMessage, lang)
	if text != ai.WelcomeMessage {
		s.store(ctx, key, text, translationTTL)
	}
	return text
}

// AnalyzeImage asks the model for a preliminary reading of a symptom photo.
// Only malformed input is reported as an error.
func (s *Service) AnalyzeImage(ctx context.Context, req ImageRequest) (Analysis, error) {
	lang := language.OrDefault(language.Normalize(req.Lang))

	payload := req.Base64
	if i := strings.Index(payload, ";base64,"); i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return Analysis{}, ErrInvalidImage
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	text, err := s.generate(ctx, ai.Prompt{
		Query:  ai.VisionQuery(req.Prompt, lang),
		Images: []ai.Image{{MIMEType: mime, Data: data}},
	})
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.Warn("image analysis failed", zap.Error(err))
		text = fmt.Sprintf("[LANG:%s] Sorry, I was unable to analyze the image. Please try again.", lang)
	}

	if detected, rest, ok := intent.ExtractLanguage(text); ok {
		return Analysis{Caption: rest, Lang: detected}, nil
	}
	return Analysis{Caption: strings.TrimSpace(text), Lang: lang}, nil
}

// CurrentSeason names the season of t: March to May is Spring, June to
// August Summer, September to November Autumn, otherwise Winter.
func CurrentSeason(t time.Time) string {
	switch t.Month() {
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	case time.September, time.October, time.November:
		return "Autumn"
	default:
		return "Winter"
	}
}

func (s *Service) generate(ctx context.Context, p ai.Prompt) (string, error) {
	if s.gen == nil {
		return "", ai.ErrUnavailable
	}
	if p.System == "" {
		p.System = ai.SystemPrompt
	}
	return s.gen.Generate(ctx, p)
}

func (s *Service) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = s.cache.Delete(ctx, key)
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	observability.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

func (s *Service) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
