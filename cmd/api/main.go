package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rasa-ai/rasa/backend/internal/cache"
	"github.com/rasa-ai/rasa/backend/internal/config"
	"github.com/rasa-ai/rasa/backend/internal/handler"
	chatModel "github.com/rasa-ai/rasa/backend/internal/model/chat"
	"github.com/rasa-ai/rasa/backend/internal/model/user"
	"github.com/rasa-ai/rasa/backend/internal/observability"
	"github.com/rasa-ai/rasa/backend/internal/service/ai"
	"github.com/rasa-ai/rasa/backend/internal/service/assistant"
	"github.com/rasa-ai/rasa/backend/internal/service/chat"
	"github.com/rasa-ai/rasa/backend/internal/service/content"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(envErr))
	}

	users := user.NewMemoryStore(user.Seed())

	// Chat history and content cache: Redis when configured, memory otherwise
	var (
		store        chatModel.Store
		contentCache cache.Cache
	)
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		store = chat.NewRedisStore(client, "rasa:chat:", 0, logger)
		contentCache = cache.NewRedis(client, "rasa:content:", logger)
		logger.Info("using redis for chat history and content cache")
	} else {
		store = chat.NewMemoryStore()
		contentCache = cache.NewLocal(time.Minute, logger)
		logger.Info("redis not configured, using in-memory storage")
	}
	defer func() { _ = contentCache.Close() }()

	generator := newGenerator(ctx, cfg, logger)

	clock := chatModel.NewIDClock()
	pipeline := assistant.NewPipeline(assistant.Config{
		Store:        store,
		Users:        users,
		Generator:    generator,
		Clock:        clock,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Logger:       logger,
	})
	contentSvc := content.NewService(generator, contentCache, logger)

	router := handler.NewRouter(handler.Dependencies{
		Store:          store,
		Users:          users,
		Generator:      generator,
		Pipeline:       pipeline,
		Content:        contentSvc,
		Clock:          clock,
		WakePhrases:    cfg.Voice.WakePhrases,
		HistoryLimit:   cfg.Chat.HistoryLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newGenerator builds the configured provider behind the circuit breaker.
// It returns nil when AI is not configured; callers then answer with the
// fallback texts.
func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) ai.Generator {
	if !cfg.AIEnabled() {
		logger.Warn("AI credentials not configured, skipping AI initialization", zap.String("provider", cfg.AI.Provider))
		return nil
	}

	var (
		gen ai.Generator
		err error
	)
	switch cfg.AI.Provider {
	case config.ProviderArk:
		arkModel, modelErr := cfg.Ark.NewChatModel(ctx)
		if modelErr != nil {
			err = modelErr
			break
		}
		gen, err = ai.NewChainGenerator(ctx, config.ProviderArk, arkModel, logger)
	default:
		gen, err = ai.NewGeminiGenerator(ctx, cfg.Gemini, logger)
	}
	if err != nil {
		logger.Warn("failed to initialize AI service, continuing without AI functionality", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		return nil
	}

	logger.Info("AI service initialized", zap.String("provider", gen.Name()))
	return ai.NewGuarded(gen, cfg.Breaker, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Rasa AI backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
