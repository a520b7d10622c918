// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/config"
	"github.com/helpdesk-ai/support-engine/internal/engine"
	"github.com/helpdesk-ai/support-engine/internal/handler"
	"github.com/helpdesk-ai/support-engine/internal/llm"
	"github.com/helpdesk-ai/support-engine/internal/middleware"
	natsclient "github.com/helpdesk-ai/support-engine/internal/nats"
	"github.com/helpdesk-ai/support-engine/internal/notify"
	"github.com/helpdesk-ai/support-engine/internal/retrieval"
	"github.com/helpdesk-ai/support-engine/internal/service"
	"github.com/helpdesk-ai/support-engine/internal/taxonomy"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
	"github.com/helpdesk-ai/support-engine/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting support engine API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure the turn log stream exists
	turnLog := natsclient.NewTurnLog(natsClient)
	if err := turnLog.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure turn stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize the knowledge store and embedder
	embedder, err := retrieval.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Error("failed to create embedder", zap.Error(err))
		os.Exit(1)
	}

	store, err := retrieval.Open(cfg.DatabasePath, embedder)
	if err != nil {
		log.Error("failed to open knowledge store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	// The topic vocabulary is derived from the indexed corpus.
	taxonomyProvider := taxonomy.NewSQLProvider(store.DB())

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	} else {
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	llmClient = llm.WithTimeout(llmClient, cfg.LLMTimeout)

	// Initialize services
	ticketSvc := service.NewTicketService(log)

	// Escalations are deduplicated against the persisted ticket state, so a
	// conversation already sitting in a human queue does not notify twice.
	dispatcher := service.NewDedupDispatcher(ticketSvc, notify.NewNATSDispatcher(natsClient))

	routingEngine := engine.New(turnLog, taxonomyProvider, llmClient, store, dispatcher, engine.Options{
		RelevanceThreshold: cfg.RetrievalThreshold,
		TopK:               cfg.RetrievalTopK,
		ClarificationLimit: cfg.ClarificationLimit,
		ClassifierModel:    cfg.ClassifierModel,
		GenerationModel:    cfg.GenerationModel,
	}, log)

	turnSvc := service.NewTurnService(turnLog, ticketSvc, routingEngine, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	ticketHandler := handler.NewTicketHandler(ticketSvc, turnSvc, log)
	turnHandler := handler.NewTurnHandler(turnSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Turns attach to the caller's active ticket
		r.Post("/turns", turnHandler.Post)

		// Tickets
		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", ticketHandler.Create)
			r.Get("/", ticketHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ticketHandler.Get)
				r.Delete("/", ticketHandler.Close)
				r.Post("/rating", ticketHandler.Rate)

				r.Get("/turns", turnHandler.History)

				// Human agent replies
				r.With(middleware.RequireScope(middleware.ScopeAgent)).
					Post("/reply", ticketHandler.TechnicianReply)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
