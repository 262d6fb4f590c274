package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/handler/chat"
	"github.com/rasa-ai/rasa/backend/internal/handler/content"
	"github.com/rasa-ai/rasa/backend/internal/handler/stream"
	userHandler "github.com/rasa-ai/rasa/backend/internal/handler/user"
	"github.com/rasa-ai/rasa/backend/internal/handler/voice"
	middlewarePkg "github.com/rasa-ai/rasa/backend/internal/middleware"
	chatModel "github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	aiService "github.com/rasa-ai/rasa/backend/internal/service/ai"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	contentService "github.com/rasa-ai/rasa/backend/internal/service/content"
	"github.com/rasa-ai/rasa/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer is wired to. Generator may be
// nil when no model provider is configured.
type Dependencies struct {
	Store          chatModel.Store
	Users          user.Store
	Generator      aiService.Generator
	Pipeline       *assistant.Pipeline
	Content        *contentService.Service
	Clock          *chatModel.IDClock
	WakePhrases    []string
	HistoryLimit   int
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	chatHandler := chat.New(deps.Store, deps.Clock, deps.Logger)
	streamHandler := stream.New(deps.Pipeline, deps.Generator, deps.Store, deps.Users, deps.HistoryLimit, deps.Logger)
	contentHandler := content.New(deps.Content)
	usersHandler := userHandler.New(deps.Users)
	voiceHandler := voice.NewWebSocketHandler(deps.Pipeline, deps.Users, deps.WakePhrases, deps.Clock, deps.Logger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			provider := "disabled"
			if deps.Generator != nil {
				provider = deps.Generator.Name()
			}
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "ai": provider})
		})

		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		contentHandler.RegisterRoutes(api)
		usersHandler.RegisterRoutes(api)
		voiceHandler.RegisterRoutes(api)
	})

	return r
}
