// Package assistant turns one user message into a streamed, classified and
// persisted assistant reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/intent"
	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	"github.com/rasa-ai/rasa/backend/internal/observability"
	"github.com/rasa-ai/rasa/backend/internal/service/ai"
)

// ErrEmptyMessage is returned for blank user messages.
var ErrEmptyMessage = errors.New("message is required")

// Request is one user turn.
type Request struct {
	UserID   string `json:"userId"`
	Message  string `json:"message"`
	Language string `json:"language"`
}

// EventType names a pipeline event.
type EventType string

const (
	EventStart      EventType = "start"
	EventDelta      EventType = "delta"
	EventEmergency  EventType = "emergency"
	EventNavigation EventType = "navigation"
	EventFinal      EventType = "final"
)

// Event is pushed to the client while a reply is produced. Delta events
// carry the whole display text so far.
type Event struct {
	Type      EventType              `json:"event"`
	MessageID int64                  `json:"messageId"`
	Text      string                 `json:"text,omitempty"`
	Lang      string                 `json:"lang,omitempty"`
	Emergency *chat.EmergencyPayload `json:"emergencyPayload,omitempty"`
	Target    chat.NavigationTarget  `json:"navigationTarget,omitempty"`
	Message   *chat.Message          `json:"message,omitempty"`
	Speak     bool                   `json:"speak,omitempty"`
}

// Sink receives pipeline events in order.
type Sink interface {
	Send(ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

// Speaker reads a finished reply aloud.
type Speaker interface {
	Speak(ctx context.Context, messageID int64, text, lang string) error
	Cancel(ctx context.Context) error
}

// Config wires a Pipeline.
type Config struct {
	Store        chat.Store
	Users        user.Store
	Generator    ai.Generator
	Clock        *chat.IDClock
	HistoryLimit int
	Logger       *zap.Logger
}

// Pipeline handles chat turns. It is safe for concurrent use; turns of the
// same user should be serialised by the caller.
type Pipeline struct {
	store        chat.Store
	users        user.Store
	generator    ai.Generator
	clock        *chat.IDClock
	historyLimit int
	log          *zap.Logger
	now          func() time.Time
}

// NewPipeline returns a Pipeline from cfg.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		store:        cfg.Store,
		users:        cfg.Users,
		generator:    cfg.Generator,
		clock:        cfg.Clock,
		historyLimit: cfg.HistoryLimit,
		log:          cfg.Logger,
		now:          time.Now,
	}
	if p.clock == nil {
		p.clock = chat.NewIDClock()
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Handle runs one turn and returns the persisted assistant message. A sink
// error is returned after the reply has been stored. speaker may be nil.
func (p *Pipeline) Handle(ctx context.Context, req Request, sink Sink, speaker Speaker) (chat.Message, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	lang := language.OrDefault(req.Language)
	log := p.log.With(zap.String("user_id", req.UserID))

	history, err := p.store.History(ctx, req.UserID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("load history: %w", err)
	}

	userMsg := chat.Message{ID: p.clock.Next(), Sender: chat.SenderUser, Text: message, Lang: lang, CreatedAt: p.now()}
	if err := p.store.Append(ctx, req.UserID, userMsg); err != nil {
		return chat.Message{}, fmt.Errorf("save user message: %w", err)
	}
	reply := chat.Message{ID: p.clock.Next(), Sender: chat.SenderAI, CreatedAt: p.now()}
	if err := p.store.Append(ctx, req.UserID, reply); err != nil {
		return chat.Message{}, fmt.Errorf("save reply placeholder: %w", err)
	}

	out := &detachedSink{next: sink}
	_ = out.Send(Event{Type: EventStart, MessageID: reply.ID})

	var account *user.User
	if p.users != nil {
		if u, ok := p.users.FindByID(req.UserID); ok {
			account = &u
		}
	}
	prompt := ai.Prompt{
		System:  ai.SystemPrompt,
		History: ai.RecentHistory(history, p.historyLimit),
		Query:   ai.ChatQuery(account, message),
	}

	classifier := intent.NewClassifier(lang)
	p.consume(ctx, log, prompt, classifier, reply.ID, out)

	res := classifier.Finish(message)
	observability.IntentsTotal.WithLabelValues(string(res.Kind)).Inc()

	// the turn is persisted even when the client went away mid-stream
	storeCtx := context.WithoutCancel(ctx)
	reply.Lang = res.Lang
	speak := res.Speak
	switch res.Kind {
	case intent.KindEmergency:
		reply.Emergency = res.Emergency
		err = p.store.SaveEmergency(storeCtx, req.UserID, reply.ID, *res.Emergency)
	case intent.KindRecipes:
		reply.Recipes = res.Recipes
		err = p.store.SaveRecipes(storeCtx, req.UserID, reply.ID, res.Recipes)
	case intent.KindNavigation:
		reply.Text = res.Text
		if res.Target == chat.TargetNewChat {
			speak = false
			err = p.store.Clear(storeCtx, req.UserID)
			if speaker != nil {
				if cerr := speaker.Cancel(ctx); cerr != nil {
					log.Warn("failed to cancel speech", zap.Error(cerr))
				}
			}
		} else {
			err = p.store.Complete(storeCtx, req.UserID, reply.ID, res.Text, res.Lang)
		}
	default:
		reply.Text = res.Text
		err = p.store.Complete(storeCtx, req.UserID, reply.ID, res.Text, res.Lang)
	}
	if err != nil {
		log.Error("failed to persist reply", zap.Int64("message_id", reply.ID), zap.Error(err))
	}

	final := Event{Type: EventFinal, MessageID: reply.ID, Lang: res.Lang, Target: res.Target, Message: &reply, Speak: speak}
	if err := out.Send(final); err != nil {
		log.Info("client left before the reply finished", zap.Int64("message_id", reply.ID), zap.Error(err))
		return reply, err
	}

	if speaker != nil && speak && ctx.Err() == nil {
		if err := speaker.Speak(ctx, reply.ID, res.Text, res.Lang); err != nil {
			log.Warn("failed to speak reply", zap.Int64("message_id", reply.ID), zap.Error(err))
		}
	}

	log.Info("chat turn completed",
		zap.Int64("message_id", reply.ID),
		zap.String("kind", string(res.Kind)),
		zap.String("lang", res.Lang),
		zap.Bool("failed", res.Failed))
	return reply, nil
}

// consume reads the model stream into classifier and forwards its events.
// Model failures become the apology. The stream is read to the end even
// after the sink fails, so the stored reply is complete.
func (p *Pipeline) consume(ctx context.Context, log *zap.Logger, prompt ai.Prompt, classifier *intent.Classifier, messageID int64, sink Sink) {
	forward := func(events []intent.Event) {
		for _, ev := range events {
			_ = sink.Send(toEvent(messageID, ev))
		}
	}

	if p.generator == nil {
		forward(classifier.Fail(ai.ApologyMessage))
		return
	}

	stream, err := p.generator.Stream(ctx, prompt)
	if err != nil {
		log.Error("failed to open model stream", zap.String("provider", p.generator.Name()), zap.Error(err))
		forward(classifier.Fail(ai.ApologyMessage))
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// the caller left; keep what arrived
				return
			}
			log.Error("model stream failed", zap.String("provider", p.generator.Name()), zap.Error(err))
			forward(classifier.Fail(ai.ApologyMessage))
			return
		}
		forward(classifier.Feed(chunk))
	}
}

// detachedSink stops delivering after the first failed send and keeps
// returning that error.
type detachedSink struct {
	next Sink
	err  error
}

func (s *detachedSink) Send(ev Event) error {
	if s.err == nil {
		s.err = s.next.Send(ev)
	}
	return s.err
}

func toEvent(messageID int64, ev intent.Event) Event {
	out := Event{MessageID: messageID, Text: ev.Text, Lang: ev.Lang}
	switch ev.Type {
	case intent.EventEmergency:
		out.Type = EventEmergency
		out.Emergency = ev.Emergency
	case intent.EventNavigation:
		out.Type = EventNavigation
		out.Target = ev.Target
	default:
		out.Type = EventDelta
	}
	return out
}
