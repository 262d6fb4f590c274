package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/config"
	"github.com/rasa-ai/rasa/backend/internal/observability"
)

// Guarded wraps a Generator with a circuit breaker. A stream counts as one
// call that succeeds when it reaches io.EOF or the caller gives up, and
// fails on any other receive error.
type Guarded struct {
	next Generator
	cb   *gobreaker.TwoStepCircuitBreaker
	log  *zap.Logger
}

// NewGuarded trips after cfg.ConsecutiveFailures failures in a row.
func NewGuarded(next Generator, cfg config.BreakerConfig, log *zap.Logger) *Guarded {
	name := "ai-" + next.Name()
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observability.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	observability.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	return &Guarded{next: next, cb: cb, log: log}
}

func (g *Guarded) Name() string {
	return g.next.Name()
}

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) Stream(ctx context.Context, p Prompt) (Stream, error) {
	done, err := g.cb.Allow()
	if err != nil {
		observability.AIFailuresTotal.WithLabelValues("stream_rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	start := time.Now()
	s, err := g.next.Stream(ctx, p)
	if err != nil {
		done(callerGaveUp(ctx, err))
		observability.AIFailuresTotal.WithLabelValues("stream_open").Inc()
		return nil, err
	}

	return &guardedStream{
		Stream: s,
		ctx:    ctx,
		finish: func(success bool) {
			done(success)
			observability.AIStreamDuration.WithLabelValues(g.next.Name()).Observe(time.Since(start).Seconds())
			if !success {
				observability.AIFailuresTotal.WithLabelValues("stream_recv").Inc()
			}
		},
	}, nil
}

func (g *Guarded) Generate(ctx context.Context, p Prompt) (string, error) {
	done, err := g.cb.Allow()
	if err != nil {
		observability.AIFailuresTotal.WithLabelValues("generate_rejected").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text, err := g.next.Generate(ctx, p)
	done(err == nil || callerGaveUp(ctx, err))
	if err != nil {
		observability.AIFailuresTotal.WithLabelValues("generate").Inc()
	}
	return text, err
}

type guardedStream struct {
	Stream
	ctx    context.Context
	once   sync.Once
	finish func(success bool)
}

func (s *guardedStream) Recv() (string, error) {
	chunk, err := s.Stream.Recv()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.once.Do(func() { s.finish(true) })
	default:
		s.once.Do(func() { s.finish(callerGaveUp(s.ctx, err)) })
	}
	return chunk, err
}

func (s *guardedStream) Close() {
	// closing before EOF means the consumer stopped reading
	s.once.Do(func() { s.finish(true) })
	s.Stream.Close()
}

// callerGaveUp reports whether err stems from the caller's own cancellation,
// which says nothing about provider health.
func callerGaveUp(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
