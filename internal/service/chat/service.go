package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

var (
	ErrUserRequired  = errors.New("user id is required")
	ErrInvalidSender = errors.New("sender must be user or ai")
)

// MemoryStore keeps chat history in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]chat.Message
}

var _ chat.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string][]chat.Message)}
}

// Append stores msg unless its id is already present.
func (s *MemoryStore) Append(_ context.Context, userID string, msg chat.Message) error {
	if err := validate(userID, msg); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID], _ = appendUnique(s.history[userID], msg)
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, userID string, id int64, text, lang string) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	complete(s.history[userID], id, text, lang)
	return nil
}

func (s *MemoryStore) SaveRecipes(_ context.Context, userID string, id int64, recipes []chat.Recipe) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saveRecipes(s.history[userID], id, recipes)
	return nil
}

func (s *MemoryStore) SaveEmergency(_ context.Context, userID string, id int64, payload chat.EmergencyPayload) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saveEmergency(s.history[userID], id, payload)
	return nil
}

// History returns a copy of the user's messages in insertion order.
func (s *MemoryStore) History(_ context.Context, userID string) ([]chat.Message, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.history[userID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	delete(s.history, userID)
	s.mu.Unlock()
	return nil
}

func validate(userID string, msg chat.Message) error {
	if userID == "" {
		return ErrUserRequired
	}
	if !msg.Sender.Valid() {
		return ErrInvalidSender
	}
	return nil
}
