package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	aiService "github.com/rasa-ai/rasa/backend/internal/service/ai"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	"github.com/rasa-ai/rasa/backend/pkg/utils"
)

// Handler streams assistant replies over HTTP
type Handler struct {
	pipeline     *assistant.Pipeline
	generator    aiService.Generator
	store        chat.Store
	users        user.Store
	historyLimit int
	log          *zap.Logger
}

// New creates a new stream handler. generator may be nil when no provider
// is configured; replies then consist of the apology.
func New(pipeline *assistant.Pipeline, generator aiService.Generator, store chat.Store, users user.Store, historyLimit int, log *zap.Logger) *Handler {
	return &Handler{
		pipeline:     pipeline,
		generator:    generator,
		store:        store,
		users:        users,
		historyLimit: historyLimit,
		log:          log,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	assistant.Event
	Error string `json:"error,omitempty"`
}

type streamRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Lang    string `json:"lang"`
}

// RegisterRoutes registers the streaming routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleRawStream)
	r.Post("/chat/events", h.handleEvents)
}

// handleRawStream writes the model output unmodified as chunked text. The
// client classifies the stream and persists the result itself.
func (h *Handler) handleRawStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if err := h.streamRaw(r.Context(), w, flusher, req); err != nil && r.Context().Err() == nil {
		h.log.Warn("raw stream failed", zap.String("user_id", req.UserID), zap.Error(err))
		fmt.Fprint(w, aiService.ApologyMessage)
		flusher.Flush()
	}
}

func (h *Handler) streamRaw(ctx context.Context, w io.Writer, flusher http.Flusher, req streamRequest) error {
	if h.generator == nil {
		return aiService.ErrUnavailable
	}

	var account *user.User
	if h.users != nil {
		if u, ok := h.users.FindByID(req.UserID); ok {
			account = &u
		}
	}
	prompt := aiService.Prompt{System: aiService.SystemPrompt, Query: aiService.ChatQuery(account, req.Message)}
	if h.store != nil && req.UserID != "" {
		history, err := h.store.History(ctx, req.UserID)
		if err != nil {
			h.log.Warn("failed to load history", zap.String("user_id", req.UserID), zap.Error(err))
		}
		prompt.History = aiService.RecentHistory(withoutTrailing(history, req.Message), h.historyLimit)
	}

	stream, err := h.generator.Stream(ctx, prompt)
	if err != nil {
		return err
	}
	defer stream.Close()

	wrote := false
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if wrote {
				// separate the apology from the partial answer
				fmt.Fprint(w, "\n\n")
			}
			return err
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		wrote = true
		flusher.Flush()
	}
}

// handleEvents runs the full pipeline and reports classified events as SSE.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	sink := assistant.SinkFunc(func(ev assistant.Event) error {
		return h.sendSSE(w, flusher, StreamResponse{Event: ev})
	})
	_, err := h.pipeline.Handle(r.Context(), assistant.Request{
		UserID:   req.UserID,
		Message:  req.Message,
		Language: req.Lang,
	}, sink, nil)
	if err != nil && r.Context().Err() == nil {
		h.log.Error("chat turn failed", zap.String("user_id", req.UserID), zap.Error(err))
		h.sendSSEError(w, flusher, err.Error())
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (streamRequest, bool) {
	var req streamRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return req, false
	}
	req.Lang = language.OrDefault(req.Lang)
	return req, true
}

// withoutTrailing drops the user's message when the client has already
// saved it, so it is not sent to the model twice.
func withoutTrailing(history []chat.Message, message string) []chat.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Sender == chat.SenderUser && strings.TrimSpace(last.Text) == message {
			return history[:n-1]
		}
	}
	return history
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	if err := utils.SendSSEChunk(w, flusher, response); err != nil {
		h.log.Debug("failed to write sse event", zap.Error(err))
		return err
	}
	return nil
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	_ = h.sendSSE(w, flusher, StreamResponse{Event: assistant.Event{Type: "error"}, Error: errorMsg})
}
