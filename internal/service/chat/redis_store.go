package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
)

const maxTxRetries = 5

// RedisStore keeps each user's history as one JSON document, updated inside
// WATCH transactions so concurrent writers do not lose messages.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

var _ chat.Store = (*RedisStore)(nil)

// NewRedisStore stores history under prefix+userID. A zero ttl keeps
// history forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (s *RedisStore) Append(ctx context.Context, userID string, msg chat.Message) error {
	if err := validate(userID, msg); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return s.mutate(ctx, userID, func(history []chat.Message) ([]chat.Message, bool) {
		return appendUnique(history, msg)
	})
}

func (s *RedisStore) Complete(ctx context.Context, userID string, id int64, text, lang string) error {
	return s.mutate(ctx, userID, func(history []chat.Message) ([]chat.Message, bool) {
		return history, complete(history, id, text, lang)
	})
}

func (s *RedisStore) SaveRecipes(ctx context.Context, userID string, id int64, recipes []chat.Recipe) error {
	return s.mutate(ctx, userID, func(history []chat.Message) ([]chat.Message, bool) {
		return history, saveRecipes(history, id, recipes)
	})
}

func (s *RedisStore) SaveEmergency(ctx context.Context, userID string, id int64, payload chat.EmergencyPayload) error {
	return s.mutate(ctx, userID, func(history []chat.Message) ([]chat.Message, bool) {
		return history, saveEmergency(history, id, payload)
	})
}

func (s *RedisStore) History(ctx context.Context, userID string) ([]chat.Message, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return decodeHistory(raw)
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// mutate applies fn to the stored history and writes it back when fn
// reports a change. Conflicting writers cause a bounded retry.
func (s *RedisStore) mutate(ctx context.Context, userID string, fn func([]chat.Message) ([]chat.Message, bool)) error {
	if userID == "" {
		return ErrUserRequired
	}
	key := s.key(userID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		history := []chat.Message{}
		if len(raw) > 0 {
			if history, err = decodeHistory(raw); err != nil {
				return err
			}
		}

		updated, changed := fn(history)
		if !changed {
			return nil
		}
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.log.Debug("history write conflict, retrying", zap.String("user_id", userID), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("update history for %s: too many conflicting writes", userID)
}

func decodeHistory(raw []byte) ([]chat.Message, error) {
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}
