package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"chess-arena/internal/audit"
	"chess-arena/internal/auth"
	"chess-arena/internal/config"
	"chess-arena/internal/db"
	"chess-arena/internal/handlers"
	"chess-arena/internal/match"
	"chess-arena/internal/middleware"
	"chess-arena/internal/services"
)

func main() {
	// Load configuration
	env := config.GetEnv()

	logger := newLogger(env)
	defer logger.Sync()

	cfg, err := config.Load(env)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("env", env), zap.Error(err))
	}

	logger.Info("starting arena server", zap.String("env", cfg.Environment))

	// Connect to MongoDB
	database, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Close(ctx); err != nil {
			logger.Warn("mongodb close failed", zap.Error(err))
		}
	}()

	// Persistence-side services
	auditor := audit.NewRecorder(database, logger)
	gameLog := services.NewGameLogger(database, logger)
	abuse := services.NewRatingAbuseMonitor(database, logger)
	sweeper := services.NewUnloggedRetrySweeper(database, gameLog, logger)
	sweeper.Start()

	// Match coordination
	registry := match.NewRegistry()
	index := match.NewActivePlayersIndex()
	coord := match.NewCoordinator(registry, index, match.NewSystemScheduler(), gameLog, abuse, auditor, logger)
	gameRouter := match.NewRouter(coord)

	invites := handlers.NewInviteManager(coord, index, registry, cfg.Game.Variants, logger)
	hub := handlers.NewHub(coord, gameRouter, invites, logger)
	go hub.Run()

	// HTTP surface
	authSvc := auth.NewService(cfg.JWT.Secret, time.Duration(cfg.JWT.TTLDays)*24*time.Hour)
	wsHandler := handlers.NewWebSocketHandler(hub, authSvc, cfg.CORS.AllowedOrigins, logger)
	sessions := handlers.NewSessionHandler(env != "dev", logger)
	leaderboard := handlers.NewLeaderboardHandler(database, cfg.Game.Variants[0], logger)

	limiter := middleware.NewRateLimiter(logger)
	defer limiter.Stop()

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders())

	router.Handle("/ws",
		limiter.IPRateLimitMiddleware(middleware.WebSocketUpgradeLimit)(
			http.HandlerFunc(wsHandler.HandleWebSocket)))

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/leaderboard",
		limiter.IPRateLimitMiddleware(middleware.LeaderboardLimit)(
			http.HandlerFunc(leaderboard.GetLeaderboard))).Methods("GET")
	api.Handle("/session/guest",
		limiter.IPRateLimitMiddleware(middleware.GuestSessionLimit)(
			http.HandlerFunc(sessions.CreateGuestSession))).Methods("POST")

	// Health check
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for signals. SIGHUP announces an upcoming restart without
	// stopping the listener; SIGINT/SIGTERM drain and exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	notice := time.Duration(cfg.Game.RestartNoticeSeconds) * time.Second
	for {
		sig := <-quit
		if sig != syscall.SIGHUP {
			break
		}
		// Operators send SIGHUP ahead of a deploy.
		logger.Info("restart announcement requested")
		coord.BroadcastGameRestarting(time.Now().Add(notice).UnixMilli())
	}

	logger.Info("shutdown signal received")

	// Announce the restart deadline to every socket, then conclude and
	// flush the live games before the listener stops taking writes.
	coord.BroadcastGameRestarting(time.Now().Add(notice).UnixMilli())

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFlush()
	coord.LogAllGames(flushCtx)

	sweeper.Stop()

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(env string) *zap.Logger {
	if env == "dev" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}
