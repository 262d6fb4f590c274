package chat

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/model/chat"
	chatService "github.com/rasa-ai/rasa/backend/internal/service/chat"
	"github.com/rasa-ai/rasa/backend/pkg/utils"
)

// Handler 聊天记录的HTTP处理器
type Handler struct {
	store chat.Store
	clock *chat.IDClock
	log   *zap.Logger
}

// New 创建聊天处理器
func New(store chat.Store, clock *chat.IDClock, log *zap.Logger) *Handler {
	if clock == nil {
		clock = chat.NewIDClock()
	}
	return &Handler{store: store, clock: clock, log: log}
}

// RegisterRoutes 注册聊天记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/history/{userID}", h.handleHistory)
	r.Delete("/chat/history/{userID}", h.handleClear)
	r.Post("/chat/message", h.handleSaveMessage)
	r.Post("/chat/message/complete", h.handleComplete)
	r.Post("/chat/message/recipes", h.handleRecipes)
	r.Post("/chat/message/emergency", h.handleEmergency)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.History(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	if history == nil {
		history = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, history)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveMessage 保存消息，重复的 id 不会覆盖已有消息
func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string       `json:"userId"`
		Message chat.Message `json:"message"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := payload.Message
	if msg.ID == 0 {
		msg.ID = h.clock.Next()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	for _, recipe := range msg.Recipes {
		if err := recipe.Validate(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.store.Append(r.Context(), payload.UserID, msg); err != nil {
		h.storeError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		MessageID int64  `json:"messageId"`
		Text      string `json:"text"`
		Lang      string `json:"lang"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.MessageID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "messageId is required")
		return
	}

	if err := h.store.Complete(r.Context(), payload.UserID, payload.MessageID, payload.Text, payload.Lang); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecipes(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string        `json:"userId"`
		MessageID int64         `json:"messageId"`
		Recipes   []chat.Recipe `json:"recipes"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.MessageID == 0 || len(payload.Recipes) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "messageId and recipes are required")
		return
	}
	for _, recipe := range payload.Recipes {
		if err := recipe.Validate(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.store.SaveRecipes(r.Context(), payload.UserID, payload.MessageID, payload.Recipes); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string                `json:"userId"`
		MessageID int64                 `json:"messageId"`
		Emergency chat.EmergencyPayload `json:"emergencyPayload"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.MessageID == 0 || strings.TrimSpace(payload.Emergency.Type) != chat.EmergencyType {
		utils.RespondError(w, http.StatusBadRequest, "messageId and an EMERGENCY_ALERT payload are required")
		return
	}

	if err := h.store.SaveEmergency(r.Context(), payload.UserID, payload.MessageID, payload.Emergency); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrUserRequired), errors.Is(err, chatService.ErrInvalidSender):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("chat store failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "chat store unavailable")
	}
}
