package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/model/user"
	aiService "github.com/rasa-ai/rasa/backend/internal/service/ai"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	chatservice "github.com/rasa-ai/rasa/backend/internal/service/chat"
)

type cannedGenerator struct {
	fragments []string
	recvErr   error
}

func (g *cannedGenerator) Name() string { return "canned" }

func (g *cannedGenerator) Stream(context.Context, aiService.Prompt) (aiService.Stream, error) {
	return &cannedStream{items: append([]string(nil), g.fragments...), err: g.recvErr}, nil
}

func (g *cannedGenerator) Generate(context.Context, aiService.Prompt) (string, error) {
	return strings.Join(g.fragments, ""), nil
}

type cannedStream struct {
	items []string
	err   error
}

func (s *cannedStream) Recv() (string, error) {
	if len(s.items) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *cannedStream) Close() {}

func setupRouter(gen aiService.Generator) *chi.Mux {
	store := chatservice.NewMemoryStore()
	users := user.NewMemoryStore(user.Seed())
	pipeline := assistant.NewPipeline(assistant.Config{
		Store:        store,
		Users:        users,
		Generator:    gen,
		HistoryLimit: 10,
		Logger:       zap.NewNop(),
	})
	handler := New(pipeline, gen, store, users, 10, zap.NewNop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("invalid event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestRawStreamPassesModelOutputThrough(t *testing.T) {
	r := setupRouter(&cannedGenerator{fragments: []string{"[LANG:en-US] ", "Drink ", "warm water."}})

	resp := post(r, "/chat/stream", `{"message":"tips?","userId":"1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Body.String(); got != "[LANG:en-US] Drink warm water." {
		t.Fatalf("unexpected body %q", got)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
}

func TestRawStreamAppendsApologyOnFailure(t *testing.T) {
	r := setupRouter(&cannedGenerator{fragments: []string{"Partial"}, recvErr: errors.New("reset")})

	resp := post(r, "/chat/stream", `{"message":"tips?","userId":"1"}`)
	want := "Partial\n\n" + aiService.ApologyMessage
	if got := resp.Body.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRawStreamRequiresMessage(t *testing.T) {
	r := setupRouter(&cannedGenerator{})
	resp := post(r, "/chat/stream", `{"message":"  "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestEventsStreamClassifiedReply(t *testing.T) {
	r := setupRouter(&cannedGenerator{fragments: []string{`{"navigationTarget":"wisdom",`, `"confirmationText":"Opening seasonal wisdom."}`}})

	resp := post(r, "/chat/events", `{"message":"open seasonal wisdom","userId":"1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	events := readEvents(t, resp.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %s", len(events), resp.Body.String())
	}
	if events[0].Type != assistant.EventStart || events[1].Type != assistant.EventNavigation {
		t.Fatalf("unexpected event order %+v", events)
	}
	final := events[3]
	if final.Type != assistant.EventFinal || final.Message == nil || final.Message.Text != "Opening seasonal wisdom." {
		t.Fatalf("unexpected final event %+v", final)
	}
}

func TestEventsRequireUser(t *testing.T) {
	r := setupRouter(&cannedGenerator{})
	resp := post(r, "/chat/events", `{"message":"hi"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
