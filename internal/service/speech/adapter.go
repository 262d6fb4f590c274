// Package speech reads assistant replies aloud through a synthesis engine
// hosted by the client.
package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	model "github.com/rasa-ai/rasa/backend/internal/model/speech"
)

// Engine is a speech synthesis capability.
type Engine interface {
	// Voices returns the installed voices known so far.
	Voices() []model.Voice
	Speak(ctx context.Context, u model.Utterance) error
	Cancel(ctx context.Context) error
}

// Adapter speaks one message at a time and tracks which message is being
// read. It is safe for concurrent use.
type Adapter struct {
	engine   Engine
	log      *zap.Logger
	onChange func(messageID int64)

	mu         sync.Mutex
	nextID     int64
	utterance  int64
	speakingID int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithOnChange registers fn to run whenever the speaking message changes.
// It receives 0 when playback stops.
func WithOnChange(fn func(messageID int64)) Option {
	return func(a *Adapter) { a.onChange = fn }
}

// NewAdapter wraps engine.
func NewAdapter(engine Engine, log *zap.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{engine: engine, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Speak reads text aloud for messageID in lang, cancelling whatever was
// playing. Blank text is ignored.
func (a *Adapter) Speak(ctx context.Context, messageID int64, text, lang string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.speakingID != 0 {
		if err := a.engine.Cancel(ctx); err != nil {
			a.log.Warn("failed to cancel utterance", zap.Int64("message_id", a.speakingID), zap.Error(err))
		}
		a.clearLocked()
	}

	lang = language.OrDefault(lang)
	mod := ModulationFor(lang)
	a.nextID++
	u := model.Utterance{
		ID:        a.nextID,
		MessageID: messageID,
		Text:      text,
		Lang:      language.EngineCode(lang),
		Rate:      mod.Rate,
		Pitch:     mod.Pitch,
	}
	if v, ok := SelectVoice(a.engine.Voices(), lang); ok {
		u.Voice = &v
		u.Lang = v.Lang
	} else {
		a.log.Debug("no installed voice for language, using engine default", zap.String("lang", lang))
	}

	if err := a.engine.Speak(ctx, u); err != nil {
		return fmt.Errorf("speak message %d: %w", messageID, err)
	}

	a.utterance = u.ID
	a.setLocked(messageID)
	return nil
}

// Toggle stops playback when messageID is the one being read, and starts it
// otherwise.
func (a *Adapter) Toggle(ctx context.Context, messageID int64, text, lang string) error {
	if a.SpeakingID() == messageID && messageID != 0 {
		return a.Cancel(ctx)
	}
	return a.Speak(ctx, messageID, text, lang)
}

// Cancel stops playback. Cancelling while silent does nothing.
func (a *Adapter) Cancel(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.speakingID == 0 {
		return nil
	}
	err := a.engine.Cancel(ctx)
	a.clearLocked()
	if err != nil {
		return fmt.Errorf("cancel speech: %w", err)
	}
	return nil
}

// Finished records that the engine ended utteranceID, normally or with an
// error. Reports for superseded utterances are ignored.
func (a *Adapter) Finished(utteranceID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if utteranceID != a.utterance || a.speakingID == 0 {
		return
	}
	a.clearLocked()
}

// SpeakingID returns the message being read, or 0.
func (a *Adapter) SpeakingID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speakingID
}

func (a *Adapter) setLocked(messageID int64) {
	if a.speakingID == messageID {
		return
	}
	a.speakingID = messageID
	if a.onChange != nil {
		a.onChange(messageID)
	}
}

func (a *Adapter) clearLocked() {
	a.utterance = 0
	a.setLocked(0)
}
