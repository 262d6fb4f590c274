package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rasa-ai/rasa/backend/internal/model/user"
	"github.com/rasa-ai/rasa/backend/pkg/utils"
)

// Handler 用户信息的只读HTTP处理器
type Handler struct {
	users user.Store
}

// New 创建用户处理器
func New(users user.Store) *Handler {
	return &Handler{users: users}
}

// RegisterRoutes 注册用户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}", h.handleGetUser)
	r.Get("/consultants/{consultantID}/patients", h.handleListPatients)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.users.FindByID(chi.URLParam(r, "userID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, user.ErrUserNotFound.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, u)
}

// handleListPatients 列出顾问负责的患者
func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	consultantID := chi.URLParam(r, "consultantID")
	consultant, ok := h.users.FindByID(consultantID)
	if !ok || consultant.Role != user.RoleConsultant {
		utils.RespondError(w, http.StatusNotFound, "consultant not found")
		return
	}

	patients := h.users.ListPatients(consultantID)
	if patients == nil {
		patients = []user.User{}
	}
	utils.RespondJSON(w, http.StatusOK, patients)
}
