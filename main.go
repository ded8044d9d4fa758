// Entry point of the chatbot service. Loads configuration, connects to the
// database, probes the generation backend, wires services and handlers, sets
// up the HTTP router and middleware, and runs the server with graceful
// shutdown.
// @title Chatbot API
// @version 1.0
// @description Conversational web service: registration, login, chat, history.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/chatbot-go/apperror"
	"github.com/user/chatbot-go/auth"
	"github.com/user/chatbot-go/chat"
	"github.com/user/chatbot-go/config"
	"github.com/user/chatbot-go/db"
	_ "github.com/user/chatbot-go/docs" // Swagger docs registration
	"github.com/user/chatbot-go/generator"
	"github.com/user/chatbot-go/logging"
	"github.com/user/chatbot-go/ratelimit"
)

// sweepInterval is how often the rate limiter evicts idle client entries.
const sweepInterval = time.Minute

func main() {
	// In production the environment is set directly; .env is a development
	// convenience.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Server.LogLevel)

	pool, err := db.NewPool(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()

	if cfg.DB.RunMigrations {
		if err := db.RunMigrations(cfg.DB.URL, "migrations"); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
	}

	// The generation backend is optional: if the probe fails the service
	// still starts, and chat turns answer 503 until a restart. The nil check
	// lives in the chat service, so gen must stay a nil interface rather
	// than a typed-nil *HTTPClient.
	var gen generator.Client
	if client, err := generator.NewHTTPClient(cfg.Generator); err != nil {
		log.Warn().Err(err).Str("url", cfg.Generator.URL).
			Msg("generation backend unavailable, chat will answer 503")
	} else {
		gen = client
		log.Info().Str("url", cfg.Generator.URL).Msg("generation backend ready")
	}

	authService := auth.NewService(pool, *cfg.Auth, log)
	authHandlers := auth.NewHandlers(authService)

	chatService := chat.NewService(pool, gen, cfg.Generator.Timeout, log)
	chatHandlers := chat.NewHandlers(chatService)

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	sweeperStop := make(chan struct{})
	limiter.StartSweeper(sweepInterval, sweeperStop)

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP) // must run before the rate limiter keys on RemoteAddr
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Panic recovery that answers in the same JSON error envelope as the
	// handlers instead of Recoverer's bare 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Error().Interface("panic", rvr).Str("path", req.URL.Path).Msg("panic recovered")
					writeError(ww, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, req)
		})
	})

	r.Use(ratelimit.Middleware(limiter))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandlers.HandleRegister())
		r.Post("/login", authHandlers.HandleLogin())

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authService))
			r.Post("/chat", chatHandlers.HandleChat())
			r.Get("/history", chatHandlers.HandleHistory())
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(sweeperStop)

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped gracefully")
}

// writeError is a local helper for the panic recovery middleware.
func writeError(w http.ResponseWriter, appErr *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	if err := json.NewEncoder(w).Encode(appErr.ToResponse()); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}
