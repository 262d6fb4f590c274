package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	aiService "github.com/rasa-ai/rasa/backend/internal/service/ai"
	contentService "github.com/rasa-ai/rasa/backend/internal/service/content"
)

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }

func (failingGenerator) Stream(context.Context, aiService.Prompt) (aiService.Stream, error) {
	return nil, errors.New("down")
}

func (failingGenerator) Generate(context.Context, aiService.Prompt) (string, error) {
	return "", errors.New("down")
}

func setupRouter() *chi.Mux {
	handler := New(contentService.NewService(failingGenerator{}, nil, zap.NewNop()))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestDailyTipFallsBack(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/daily-tip?lang=hi-IN", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var tip contentService.Tip
	if err := json.Unmarshal(resp.Body.Bytes(), &tip); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tip.Tip != contentService.FallbackTip || tip.Lang != "hi-IN" {
		t.Fatalf("unexpected tip %+v", tip)
	}
}

func TestTranslateReturnsOriginalOnFailure(t *testing.T) {
	r := setupRouter()
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(`{"text":"hello","target":"ta-IN"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"translated":"hello"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestAnalyzeRejectsInvalidImage(t *testing.T) {
	r := setupRouter()
	req := httptest.NewRequest(http.MethodPost, "/vision/analyze", strings.NewReader(`{"base64":"***","mime":"image/png"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLanguagesListsRegionalLocales(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/languages", nil))

	if !strings.Contains(resp.Body.String(), `"code":"gmj-IN"`) {
		t.Fatalf("expected Garhwali in %s", resp.Body.String())
	}
}
