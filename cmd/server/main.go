package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/finbot/internal/api"
	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/chat"
	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/llm"
	"github.com/wuwenbin0122/finbot/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	baseLogger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	logger := utils.Component(baseLogger, "server")

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatalw("postgres: failed to connect", "error", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		logger.Fatalw("postgres: ping failed", "error", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		logger.Fatalw("postgres: ensure schema", "error", err)
	}

	var history chat.HistoryStore = postgres
	if cfg.Chat.HistoryBackend == utils.HistoryBackendMongo {
		mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			logger.Fatalw("mongo: failed to connect", "error", err)
		}
		defer func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				logger.Warnw("mongo: close error", "error", err)
			}
		}()

		if err := mongoStore.EnsureCollections(ctx); err != nil {
			logger.Fatalw("mongo: ensure collections", "error", err)
		}
		history = mongoStore
	}

	financeOpts := []finance.Option{}
	if cfg.Redis.Addr != "" {
		redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warnw("redis: summary cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			financeOpts = append(financeOpts, finance.WithCache(db.NewSummaryCache(redisClient), cfg.Redis.SummaryTTL))
		}
	}
	aggregator := finance.NewAggregator(postgres, utils.Component(baseLogger, "finance"), financeOpts...)

	backend := newBackend(ctx, cfg.Gemini, cfg.Chat, logger)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, postgres)
	if err != nil {
		logger.Fatalw("failed to initialise auth service", "error", err)
	}

	registry := chat.NewRegistry(backend, postgres, chat.Options{
		History:        history,
		Context:        aggregator,
		Logger:         utils.Component(baseLogger, "chat"),
		PersistTimeout: cfg.Chat.PersistenceTimeout,
		StartTimeout:   cfg.Chat.StartTimeout,
	})

	handler := api.NewHandler(api.Dependencies{
		Auth:     authService,
		Profiles: postgres,
		Ledger:   postgres,
		Finance:  aggregator,
		Chats:    registry,
		Logger:   utils.Component(baseLogger, "api"),
	})

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     setupRouter(handler),
		ReadTimeout: 15 * time.Second,
		// Replies stream for as long as the model keeps generating.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("server listening", "addr", server.Addr, "history", cfg.Chat.HistoryBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("graceful shutdown failed", "error", err)
	}
	registry.Wait()

	logger.Info("server stopped cleanly")
}

func newBackend(ctx context.Context, cfg utils.GeminiConfig, chatCfg utils.ChatConfig, logger *zap.SugaredLogger) llm.Backend {
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; answering with the offline assistant")
		return llm.Offline{Delay: chatCfg.OfflineChunkDelay}
	}

	gemini, err := llm.NewGemini(ctx, cfg.APIKey, llm.Params{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
	})
	if err != nil {
		logger.Fatalw("gemini: failed to create client", "error", err)
	}
	return gemini
}

func setupRouter(handler *api.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handler.RegisterRoutes(router)

	return router
}
