package voice

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	model "github.com/rasa-ai/rasa/backend/internal/model/voice"
	"github.com/rasa-ai/rasa/backend/internal/observability"
)

// Options configures a Controller.
type Options struct {
	// Phrases are the lower-cased wake phrases.
	Phrases  []string
	Language string
	// OnCommand receives each recognised command exactly once.
	OnCommand func(model.Command)
	// OnState is called after every state transition.
	OnState func(model.WakeWordState)
	Clock   *chat.IDClock
	Logger  *zap.Logger
}

// Controller moves between IDLE, AWAKE and LISTENING as recogniser events
// arrive. Wake word detection starts with Activate. Callbacks run after the
// controller lock is released, in the order the transitions happened.
type Controller struct {
	rec       *Exclusive
	phrases   []string
	onCommand func(model.Command)
	onState   func(model.WakeWordState)
	clock     *chat.IDClock
	log       *zap.Logger

	mu         sync.Mutex
	state      model.WakeWordState
	lang       string
	generation int64
	wakeGen    int64
	commandGen int64
	dispatched bool
	armed      bool
	disabled   bool
	closed     bool
}

// NewController returns an idle controller driving rec.
func NewController(rec Recognizer, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = chat.NewIDClock()
	}
	phrases := make([]string, 0, len(opts.Phrases))
	for _, p := range opts.Phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	return &Controller{
		rec:       NewExclusive(rec),
		phrases:   phrases,
		onCommand: opts.OnCommand,
		onState:   opts.OnState,
		clock:     clock,
		log:       log,
		state:     model.StateIdle,
		lang:      language.OrDefault(opts.Language),
	}
}

// State returns the current state.
func (c *Controller) State() model.WakeWordState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Language returns the active language.
func (c *Controller) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

// Disabled reports whether the recogniser was denied microphone access.
func (c *Controller) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Activate enables wake word detection, including after a permission
// denial.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.armed = true
	c.disabled = false
	if c.state != model.StateIdle || c.wakeGen != 0 {
		return nil
	}
	return c.startWakeLocked(ctx)
}

// SetLanguage switches the recognition language. Any running session is
// cancelled and the controller returns to IDLE.
func (c *Controller) SetLanguage(ctx context.Context, lang string) error {
	var notify []func()
	defer func() { run(notify) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	lang = language.OrDefault(language.Normalize(lang))
	if c.closed || strings.EqualFold(lang, c.lang) {
		return nil
	}
	c.lang = lang

	c.stopActiveLocked(ctx)
	notify = append(notify, c.setStateLocked(model.StateIdle)...)
	if !c.armed || c.disabled {
		return nil
	}
	return c.startWakeLocked(ctx)
}

// HandleEvent applies one recogniser event. Events for sessions that are no
// longer current are ignored.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) {
	var notify []func()
	defer func() { run(notify) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ev.Generation == 0 {
		return
	}
	if ev.Kind == EventEnd {
		c.rec.Ended(ev.Generation)
	}

	switch ev.Generation {
	case c.wakeGen:
		notify = c.handleWakeLocked(ctx, ev)
	case c.commandGen:
		notify = c.handleCommandLocked(ctx, ev)
	default:
		c.log.Debug("ignoring stale recognizer event",
			zap.Int64("generation", ev.Generation),
			zap.String("event", string(ev.Kind)))
	}
}

// Close stops recognition. Later events are ignored.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopActiveLocked(ctx)
}

func (c *Controller) handleWakeLocked(ctx context.Context, ev Event) []func() {
	switch ev.Kind {
	case EventResult:
		heard := strings.ToLower(ev.Transcript)
		for _, phrase := range c.phrases {
			if !strings.Contains(heard, phrase) {
				continue
			}
			c.log.Info("wake phrase detected", zap.String("phrase", phrase))
			gen := c.wakeGen
			c.wakeGen = 0
			if err := c.rec.Stop(ctx, gen); err != nil {
				c.log.Warn("failed to stop wake word recognizer", zap.Error(err))
			}
			notify := c.setStateLocked(model.StateAwake)
			return append(notify, c.startCommandLocked(ctx)...)
		}

	case EventError:
		if ev.Error == ErrNotAllowed {
			c.log.Warn("microphone access denied, wake word detection disabled")
			c.disabled = true
			c.wakeGen = 0
			return nil
		}
		if ev.Error != ErrNoSpeech {
			c.log.Warn("wake word recognizer error", zap.String("error", ev.Error))
		}

	case EventEnd:
		// ended without being stopped by us
		c.wakeGen = 0
		if c.armed && !c.disabled && c.state == model.StateIdle {
			if err := c.startWakeLocked(ctx); err != nil {
				c.log.Warn("failed to restart wake word recognizer", zap.Error(err))
			}
		}
	}
	return nil
}

func (c *Controller) handleCommandLocked(ctx context.Context, ev Event) []func() {
	switch ev.Kind {
	case EventStart:
		return c.setStateLocked(model.StateListening)

	case EventResult:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			observability.VoiceCommandsTotal.WithLabelValues("empty").Inc()
			return nil
		}
		if c.dispatched {
			return nil
		}
		c.dispatched = true
		observability.VoiceCommandsTotal.WithLabelValues("dispatched").Inc()
		cmd := model.Command{Text: text, ID: c.clock.Next()}
		c.log.Info("voice command recognized", zap.Int64("id", cmd.ID), zap.String("lang", c.lang))
		if c.onCommand == nil {
			return nil
		}
		fn := c.onCommand
		return []func(){func() { fn(cmd) }}

	case EventError:
		if ev.Error != ErrNoSpeech {
			observability.VoiceCommandsTotal.WithLabelValues("error").Inc()
			c.log.Warn("command recognizer error", zap.String("error", ev.Error))
		}
		gen := c.commandGen
		c.commandGen = 0
		if err := c.rec.Stop(ctx, gen); err != nil {
			c.log.Debug("failed to stop command recognizer", zap.Error(err))
		}
		return c.rearmLocked(ctx)

	case EventEnd:
		c.commandGen = 0
		return c.rearmLocked(ctx)
	}
	return nil
}

// rearmLocked returns to IDLE and resumes wake word detection once.
func (c *Controller) rearmLocked(ctx context.Context) []func() {
	notify := c.setStateLocked(model.StateIdle)
	if c.armed && !c.disabled && c.wakeGen == 0 {
		if err := c.startWakeLocked(ctx); err != nil {
			c.log.Warn("failed to restart wake word recognizer", zap.Error(err))
		}
	}
	return notify
}

func (c *Controller) startWakeLocked(ctx context.Context) error {
	c.generation++
	c.wakeGen = c.generation
	err := c.rec.Start(ctx, Session{
		Generation:     c.wakeGen,
		Mode:           ModeWake,
		Lang:           language.EngineCode(c.lang),
		Continuous:     true,
		InterimResults: true,
	})
	if err != nil {
		c.wakeGen = 0
		return err
	}
	return nil
}

func (c *Controller) startCommandLocked(ctx context.Context) []func() {
	c.generation++
	c.commandGen = c.generation
	c.dispatched = false
	err := c.rec.Start(ctx, Session{
		Generation: c.commandGen,
		Mode:       ModeCommand,
		Lang:       language.EngineCode(c.lang),
	})
	if err != nil {
		c.log.Warn("failed to start command recognizer", zap.Error(err))
		c.commandGen = 0
		return c.rearmLocked(ctx)
	}
	return nil
}

func (c *Controller) stopActiveLocked(ctx context.Context) {
	for _, gen := range []int64{c.wakeGen, c.commandGen} {
		if gen == 0 {
			continue
		}
		if err := c.rec.Stop(ctx, gen); err != nil {
			c.log.Debug("failed to stop recognizer", zap.Int64("generation", gen), zap.Error(err))
		}
	}
	c.wakeGen = 0
	c.commandGen = 0
}

func (c *Controller) setStateLocked(state model.WakeWordState) []func() {
	if c.state == state {
		return nil
	}
	c.state = state
	observability.WakeStateTransitions.WithLabelValues(string(state)).Inc()
	if c.onState == nil {
		return nil
	}
	fn := c.onState
	return []func(){func() { fn(state) }}
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
