// Package intent classifies streamed assistant output into emergency alerts,
// navigation commands, language-tagged answers and recipe lists.
package intent

import (
	"errors"
	"strings"
	"unicode"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

// Kind is the classification of one assistant message.
type Kind string

const (
	KindPending    Kind = "pending"
	KindText       Kind = "text"
	KindEmergency  Kind = "emergency"
	KindNavigation Kind = "navigation"
	KindRecipes    Kind = "recipes"
)

// EventType names an update surfaced while a message streams.
type EventType string

const (
	EventText       EventType = "delta"
	EventEmergency  EventType = "emergency"
	EventNavigation EventType = "navigation"
)

// Event is an update for the client. Text events carry the full display
// text so far, not the fragment.
type Event struct {
	Type      EventType
	Text      string
	Lang      string
	Emergency *chat.EmergencyPayload
	Target    chat.NavigationTarget
}

// Result is the final classification of a message.
type Result struct {
	Kind      Kind
	Text      string
	Lang      string
	Recipes   []chat.Recipe
	Emergency *chat.EmergencyPayload
	Target    chat.NavigationTarget
	// Failed is set when the stream ended with an error.
	Failed bool
	// Speak is set when Text should be read aloud.
	Speak bool
}

// Classifier accumulates the fragments of one assistant message. It is not
// safe for concurrent use; a message has a single consumer.
type Classifier struct {
	defaultLang string
	buf         strings.Builder
	kind        Kind
	lang        string
	display     string
	emergency   *chat.EmergencyPayload
	navigation  *Navigation
	failed      bool
}

// NewClassifier returns a classifier whose detected language falls back to
// defaultLang.
func NewClassifier(defaultLang string) *Classifier {
	return &Classifier{defaultLang: defaultLang, kind: KindPending}
}

// Kind reports the current classification.
func (c *Classifier) Kind() Kind {
	return c.kind
}

// Lang returns the detected language, or the default.
func (c *Classifier) Lang() string {
	if c.lang != "" {
		return c.lang
	}
	return c.defaultLang
}

// Feed appends a fragment and returns the resulting updates. Fragments
// arriving after an emergency or navigation command are ignored.
func (c *Classifier) Feed(fragment string) []Event {
	if fragment == "" || c.frozen() {
		return nil
	}
	c.buf.WriteString(fragment)
	return c.classify()
}

// Fail records a stream failure. The apology is appended to the displayed
// text unless a command was already detected.
func (c *Classifier) Fail(apology string) []Event {
	c.failed = true
	if c.frozen() {
		return nil
	}
	if c.kind == KindPending {
		// whatever was held back never became a command
		c.buf.Reset()
		c.kind = KindText
	}
	if strings.TrimSpace(c.buf.String()) != "" {
		c.buf.WriteString("\n\n")
	}
	c.buf.WriteString(apology)
	return c.refreshText()
}

// Finish closes the message. userMessage is the prompt that produced it and
// decides whether the output is parsed as recipes.
func (c *Classifier) Finish(userMessage string) Result {
	if c.kind == KindPending {
		c.kind = KindText
		c.refreshText()
	}

	switch c.kind {
	case KindEmergency:
		return Result{Kind: KindEmergency, Lang: c.Lang(), Emergency: c.emergency, Failed: c.failed}
	case KindNavigation:
		return Result{
			Kind:   KindNavigation,
			Text:   c.display,
			Lang:   c.Lang(),
			Target: c.navigation.Target,
			Failed: c.failed,
			Speak:  c.display != "",
		}
	}

	if !c.failed && IsRecipeRequest(userMessage) {
		if recipes, err := DecodeRecipes(c.display); err == nil {
			c.kind = KindRecipes
			return Result{Kind: KindRecipes, Lang: c.Lang(), Recipes: recipes}
		}
	}

	return Result{
		Kind:   KindText,
		Text:   c.display,
		Lang:   c.Lang(),
		Failed: c.failed,
		Speak:  strings.TrimSpace(c.display) != "",
	}
}

func (c *Classifier) frozen() bool {
	return c.kind == KindEmergency || c.kind == KindNavigation
}

func (c *Classifier) classify() []Event {
	if c.kind == KindPending {
		trimmed := strings.TrimSpace(c.buf.String())
		if trimmed == "" {
			return nil
		}
		cmd, err := DecodeCommand(trimmed)
		if err == nil {
			return c.apply(cmd)
		}
		if couldBeCommand(trimmed) && (errors.Is(err, ErrMalformed) || !strings.HasPrefix(StripCodeFence(trimmed), "{")) {
			// an opening fence or a truncated object; wait for more
			return nil
		}
		c.kind = KindText
	}
	return c.refreshText()
}

func (c *Classifier) apply(cmd Command) []Event {
	switch cmd.Kind {
	case CommandEmergency:
		c.kind = KindEmergency
		c.emergency = cmd.Emergency
		return []Event{{Type: EventEmergency, Lang: c.Lang(), Emergency: cmd.Emergency}}
	default:
		c.kind = KindNavigation
		c.navigation = cmd.Navigation
		c.display = cmd.Navigation.ConfirmationText
		return []Event{
			{Type: EventNavigation, Text: c.display, Lang: c.Lang(), Target: cmd.Navigation.Target},
			{Type: EventText, Text: c.display, Lang: c.Lang()},
		}
	}
}

func (c *Classifier) refreshText() []Event {
	raw := c.buf.String()
	display := strings.TrimLeftFunc(raw, unicode.IsSpace)
	if lang, rest, ok := ExtractLanguage(raw); ok {
		c.lang = lang
		display = rest
	}
	if display == c.display {
		return nil
	}
	c.display = display
	return []Event{{Type: EventText, Text: display, Lang: c.Lang()}}
}
