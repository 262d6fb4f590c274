package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

var (
	// ErrMalformed means the text is not (yet) a well-formed JSON value.
	ErrMalformed = errors.New("intent: malformed json")
	// ErrNotCommand means the text is valid JSON but no known command.
	ErrNotCommand = errors.New("intent: not a command")
)

// CommandKind discriminates the command union.
type CommandKind string

const (
	CommandEmergency  CommandKind = "emergency"
	CommandNavigation CommandKind = "navigation"
)

// Command is a decoded control payload. Exactly one of Emergency and
// Navigation is set, matching Kind.
type Command struct {
	Kind       CommandKind
	Emergency  *chat.EmergencyPayload
	Navigation *Navigation
}

// Navigation asks the client to open a view.
type Navigation struct {
	Target           chat.NavigationTarget `json:"navigationTarget"`
	ConfirmationText string                `json:"confirmationText"`
}

const (
	defaultEmergencyTitle   = "Medical Emergency Detected"
	defaultEmergencyMessage = "Your symptoms could be serious. Please seek immediate medical help."
)

var defaultEmergencyActions = []chat.EmergencyAction{
	{Text: "Call Emergency (108)", URL: "tel:108"},
	{Text: "Find Nearest Hospital", URL: "https://www.google.com/maps/search/hospital"},
}

type envelope struct {
	Type             string                 `json:"type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	Actions          []chat.EmergencyAction `json:"actions"`
	NavigationTarget string                 `json:"navigationTarget"`
	ConfirmationText string                 `json:"confirmationText"`
}

// DecodeCommand parses raw as an emergency or navigation payload. Optional
// code fences around the object are ignored.
func DecodeCommand(raw string) (Command, error) {
	body := StripCodeFence(raw)
	if !strings.HasPrefix(body, "{") {
		return Command{}, ErrNotCommand
	}
	if !json.Valid([]byte(body)) {
		return Command{}, ErrMalformed
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrNotCommand, err)
	}

	if env.Type == chat.EmergencyType {
		return Command{Kind: CommandEmergency, Emergency: emergencyFrom(env)}, nil
	}

	if env.NavigationTarget == "" {
		return Command{}, ErrNotCommand
	}
	target := chat.NavigationTarget(strings.TrimSpace(env.NavigationTarget))
	if !target.Valid() {
		return Command{}, fmt.Errorf("%w: unknown navigation target %q", ErrNotCommand, env.NavigationTarget)
	}
	confirmation := strings.TrimSpace(env.ConfirmationText)
	if confirmation == "" {
		return Command{}, fmt.Errorf("%w: navigation without confirmation text", ErrNotCommand)
	}

	return Command{
		Kind:       CommandNavigation,
		Navigation: &Navigation{Target: target, ConfirmationText: confirmation},
	}, nil
}

// emergencyFrom fills gaps in a partial alert so that it can always be shown.
func emergencyFrom(env envelope) *chat.EmergencyPayload {
	payload := &chat.EmergencyPayload{
		Type:    chat.EmergencyType,
		Title:   strings.TrimSpace(env.Title),
		Message: strings.TrimSpace(env.Message),
	}
	if payload.Title == "" {
		payload.Title = defaultEmergencyTitle
	}
	if payload.Message == "" {
		payload.Message = defaultEmergencyMessage
	}
	for _, action := range env.Actions {
		if strings.TrimSpace(action.Text) == "" || strings.TrimSpace(action.URL) == "" {
			continue
		}
		payload.Actions = append(payload.Actions, action)
	}
	if len(payload.Actions) == 0 {
		payload.Actions = append([]chat.EmergencyAction(nil), defaultEmergencyActions...)
	}
	return payload
}

// DecodeRecipes parses text as a non-empty JSON array of recipes.
func DecodeRecipes(text string) ([]chat.Recipe, error) {
	body := StripCodeFence(text)
	if !strings.HasPrefix(body, "[") {
		return nil, errors.New("intent: recipes must be a json array")
	}

	var recipes []chat.Recipe
	if err := json.Unmarshal([]byte(body), &recipes); err != nil {
		return nil, fmt.Errorf("intent: decode recipes: %w", err)
	}
	if len(recipes) == 0 {
		return nil, errors.New("intent: empty recipe list")
	}
	for i, r := range recipes {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("intent: recipe %d: %w", i, err)
		}
	}
	return recipes, nil
}

// StripCodeFence removes a leading ```json (or bare ```) marker and a
// trailing ``` marker, then trims surrounding whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// couldBeCommand reports whether s may still grow into a fenced or bare JSON
// object once more fragments arrive.
func couldBeCommand(s string) bool {
	if strings.HasPrefix(s, "{") {
		return true
	}
	if !strings.HasPrefix(s, "```") {
		return strings.HasPrefix("```", s)
	}
	rest := s[3:]
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "json"):
		rest = rest[4:]
	case strings.HasPrefix("json", lower):
		return true
	}
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.HasPrefix(rest, "{")
}
