package content

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rasa-ai/rasa/backend/internal/analysis/language"
	contentService "github.com/rasa-ai/rasa/backend/internal/service/content"
	"github.com/rasa-ai/rasa/backend/pkg/utils"
)

// Handler 提供每日提示、季节养生、翻译与图片分析接口
type Handler struct {
	svc *contentService.Service
}

// New 创建内容处理器
func New(svc *contentService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册内容相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/languages", h.handleLanguages)
	r.Get("/daily-tip", h.handleDailyTip)
	r.Get("/seasonal-wisdom", h.handleSeasonalWisdom)
	r.Get("/welcome", h.handleWelcome)
	r.Post("/translate", h.handleTranslate)
	r.Post("/vision/analyze", h.handleAnalyze)
}

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, language.Supported())
}

func (h *Handler) handleDailyTip(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.DailyTip(r.Context(), r.URL.Query().Get("lang")))
}

func (h *Handler) handleSeasonalWisdom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	utils.RespondJSON(w, http.StatusOK, h.svc.SeasonalWisdom(r.Context(), q.Get("season"), q.Get("lang")))
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	lang := language.OrDefault(r.URL.Query().Get("lang"))
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"text": h.svc.Welcome(r.Context(), lang),
		"lang": lang,
	})
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text   string `json:"text"`
		Target string `json:"target"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Target == "" {
		utils.RespondError(w, http.StatusBadRequest, "target is required")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"translated": h.svc.Translate(r.Context(), payload.Text, payload.Target),
	})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req contentService.ImageRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.AnalyzeImage(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contentService.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}
