package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/llm-cost-dashboard/config"
	"github.com/vnmchuo/llm-cost-dashboard/internal/analytics"
	"github.com/vnmchuo/llm-cost-dashboard/internal/api"
	"github.com/vnmchuo/llm-cost-dashboard/internal/auth"
	"github.com/vnmchuo/llm-cost-dashboard/internal/embedding"
	"github.com/vnmchuo/llm-cost-dashboard/internal/extract"
	"github.com/vnmchuo/llm-cost-dashboard/internal/llm"
	"github.com/vnmchuo/llm-cost-dashboard/internal/search"
	"github.com/vnmchuo/llm-cost-dashboard/internal/seeder"
	"github.com/vnmchuo/llm-cost-dashboard/internal/telemetry"
	"github.com/vnmchuo/llm-cost-dashboard/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("llm-cost-dashboard", cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init auth
	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb)

	// 6. Init rate limiter for LLM-backed routes
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitRPM)

	// 7. Init the hosted LLM client and the services built on it
	llmClient := llm.NewOpenAI(cfg.OpenAIAPIKey, llm.WithChatModel(cfg.LLMModel))
	extractor := extract.New(llmClient)
	searcher := search.New(llmClient, search.Dimensions{
		Models:       []string{"gpt-4", "gpt-4-turbo", "gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo", "claude-3-opus", "claude-3-sonnet", "claude-3-haiku", "gemini-1.5-pro"},
		Providers:    []string{"openai", "anthropic", "google"},
		Environments: []string{"production", "staging", "development"},
	})
	embedder := embedding.New(llmClient, rdb)
	defer embedder.Close()

	// 8. Init the analytics backend client
	usageClient := analytics.NewClient(cfg.AnalyticsAPIURL, cfg.AnalyticsAPIKey)

	// 9. Init handler
	tracer := otel.GetTracerProvider().Tracer("llm-cost-dashboard")
	handler := api.NewHandler(extractor, searcher, embedder, usageClient, limiter, tracer)

	// 10. Seed test API key if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestAPIKey(ctx, authStore)
	}

	// 11. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"llm-cost-dashboard"}`))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/extract-cost-parameters", handler.HandleExtractParameters)
		r.Post("/api/search", handler.HandleSearch)
		r.Post("/api/generate-embedding", handler.HandleGenerateEmbedding)
		r.Get("/api/usage", handler.HandleUsage)
		r.Post("/api/cost-prediction", handler.HandleCostPrediction)
		r.Get("/api/metrics", handler.HandleMetrics)
		r.Post("/api/messages/search", handler.HandleMessageSearch)
	})

	// 12. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("LLM cost dashboard starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
