package chat

import (
	"errors"
	"fmt"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Message is one turn of a user's conversation. For AI messages exactly one
// of Text, Recipes and Emergency is populated once the turn is complete.
type Message struct {
	ID        int64             `json:"id"`
	Sender    Sender            `json:"sender"`
	Text      string            `json:"text,omitempty"`
	Recipes   []Recipe          `json:"recipes,omitempty"`
	Lang      string            `json:"lang,omitempty"`
	Emergency *EmergencyPayload `json:"emergencyPayload,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Kind reports which payload the message carries.
func (m Message) Kind() string {
	switch {
	case m.Emergency != nil:
		return "emergency"
	case len(m.Recipes) > 0:
		return "recipes"
	case m.Text != "":
		return "text"
	default:
		return "empty"
	}
}

// Recipe is a structured recipe suggested by the assistant.
type Recipe struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// Validate checks the fields a client needs to render the recipe.
func (r Recipe) Validate() error {
	if r.Name == "" {
		return errors.New("recipe name is required")
	}
	if r.Ingredients == nil {
		return fmt.Errorf("recipe %q: ingredients are required", r.Name)
	}
	if r.Instructions == nil {
		return fmt.Errorf("recipe %q: instructions are required", r.Name)
	}
	return nil
}

// EmergencyType is the discriminator carried by emergency payloads.
const EmergencyType = "EMERGENCY_ALERT"

// EmergencyPayload is shown to the user as a blocking alert.
type EmergencyPayload struct {
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Actions []EmergencyAction `json:"actions"`
}

// EmergencyAction is a call-to-action button of an emergency alert.
type EmergencyAction struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// NavigationTarget names an application view the assistant can open.
type NavigationTarget string

const (
	TargetChat     NavigationTarget = "chat"
	TargetTip      NavigationTarget = "tip"
	TargetWisdom   NavigationTarget = "wisdom"
	TargetConsult  NavigationTarget = "consult"
	TargetSettings NavigationTarget = "settings"
	TargetVision   NavigationTarget = "vision"
	TargetNewChat  NavigationTarget = "new_chat"
)

// Valid reports whether t is one of the known views.
func (t NavigationTarget) Valid() bool {
	switch t {
	case TargetChat, TargetTip, TargetWisdom, TargetConsult, TargetSettings, TargetVision, TargetNewChat:
		return true
	}
	return false
}
