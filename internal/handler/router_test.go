package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/cache"
	chatModel "github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	chatService "github.com/rasa-ai/rasa/backend/internal/service/chat"
	contentService "github.com/rasa-ai/rasa/backend/internal/service/content"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	log := zap.NewNop()
	store := chatService.NewMemoryStore()
	users := user.NewMemoryStore(user.Seed())
	clock := chatModel.NewIDClock()
	c := cache.NewLocal(time.Minute, log)
	t.Cleanup(func() { _ = c.Close() })

	return NewRouter(Dependencies{
		Store:          store,
		Users:          users,
		Pipeline:       assistant.NewPipeline(assistant.Config{Store: store, Users: users, Clock: clock, HistoryLimit: 10, Logger: log}),
		Content:        contentService.NewService(nil, c, log),
		Clock:          clock,
		WakePhrases:    []string{"ok rasa"},
		HistoryLimit:   10,
		AllowedOrigins: []string{"*"},
		Logger:         log,
	})
}

func TestHealthzReportsDisabledAI(t *testing.T) {
	r := setupRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"ai":"disabled"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestMetricsExposed(t *testing.T) {
	r := setupRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestEventsWithoutProviderReturnApology(t *testing.T) {
	r := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/events", strings.NewReader(`{"message":"hello","userId":"1"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "I apologize") {
		t.Fatalf("expected apology in %s", resp.Body.String())
	}
}

func TestRawStreamWithoutProviderReturnsApology(t *testing.T) {
	r := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message":"hello","userId":"1"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if !strings.HasPrefix(resp.Body.String(), "I apologize") {
		t.Fatalf("expected apology, got %q", resp.Body.String())
	}
}
