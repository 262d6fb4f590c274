package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	chatservice "github.com/rasa-ai/rasa/backend/internal/service/chat"
)

func setupRouter() (*chi.Mux, *chatservice.MemoryStore) {
	store := chatservice.NewMemoryStore()
	handler := New(store, chat.NewIDClock(), zap.NewNop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSaveMessageIsIdempotent(t *testing.T) {
	r, store := setupRouter()
	body := map[string]any{
		"userId":  "1",
		"message": map[string]any{"id": 42, "sender": "user", "text": "hello"},
	}

	for i := 0; i < 2; i++ {
		resp := do(r, http.MethodPost, "/chat/message", body)
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.Code)
		}
	}

	history, _ := store.History(context.Background(), "1")
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
}

func TestSaveMessageRejectsUnknownSender(t *testing.T) {
	r, _ := setupRouter()
	resp := do(r, http.MethodPost, "/chat/message", map[string]any{
		"userId":  "1",
		"message": map[string]any{"sender": "robot", "text": "hi"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCompleteAndRecipes(t *testing.T) {
	r, store := setupRouter()
	ctx := context.Background()
	_ = store.Append(ctx, "1", chat.Message{ID: 7, Sender: chat.SenderAI})

	resp := do(r, http.MethodPost, "/chat/message/complete", map[string]any{
		"userId": "1", "messageId": 7, "text": "Drink warm water.", "lang": "en-US",
	})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/chat/message/recipes", map[string]any{
		"userId": "1", "messageId": 7,
		"recipes": []map[string]any{{"name": "Kadha", "description": "", "ingredients": []string{"ginger"}, "instructions": []string{"boil"}}},
	})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	history, _ := store.History(ctx, "1")
	if history[0].Text != "" || len(history[0].Recipes) != 1 {
		t.Fatalf("expected recipes to replace text, got %+v", history[0])
	}
}

func TestRecipesValidation(t *testing.T) {
	r, _ := setupRouter()
	resp := do(r, http.MethodPost, "/chat/message/recipes", map[string]any{
		"userId": "1", "messageId": 7,
		"recipes": []map[string]any{{"name": "", "ingredients": []string{}, "instructions": []string{}}},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestEmergencyRequiresType(t *testing.T) {
	r, _ := setupRouter()
	resp := do(r, http.MethodPost, "/chat/message/emergency", map[string]any{
		"userId": "1", "messageId": 7, "emergencyPayload": map[string]any{"type": "OTHER"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHistoryAndClear(t *testing.T) {
	r, store := setupRouter()
	_ = store.Append(context.Background(), "1", chat.Message{ID: 1, Sender: chat.SenderUser, Text: "hi"})

	resp := do(r, http.MethodGet, "/chat/history/1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var history []chat.Message
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil || len(history) != 1 {
		t.Fatalf("unexpected history %s (%v)", resp.Body.String(), err)
	}

	resp = do(r, http.MethodDelete, "/chat/history/1", nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = do(r, http.MethodGet, "/chat/history/1", nil)
	if resp.Body.String() != "[]\n" {
		t.Fatalf("expected empty history, got %q", resp.Body.String())
	}
}
