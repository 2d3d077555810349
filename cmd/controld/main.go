// controld is the browser control plane: it owns session records, boots
// headless Chrome containers on open, and serves the /browser REST and
// debug-proxy surface the orbiter client speaks.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/api"
	"github.com/orbiterhq/orbiter/internal/kernel"
	"github.com/orbiterhq/orbiter/internal/profile"
	"github.com/orbiterhq/orbiter/internal/proxy"
	"github.com/orbiterhq/orbiter/internal/ratelimit"
	"github.com/orbiterhq/orbiter/internal/session"
)

func main() {
	// .env is optional; the real environment wins.
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()
	log := logger.Sugar()

	log.Info("starting orbiter control plane")

	kernels, err := kernel.NewManager(log)
	if err != nil {
		log.Fatalw("failed to create kernel manager", "err", err)
	}
	defer kernels.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Infow("ensuring browser images", "kernels", kernels.Versions())
	if err := kernels.EnsureImages(ctx); err != nil {
		log.Fatalw("failed to ensure browser images", "err", err)
	}

	profiles, err := profile.NewStore(envOr("CONTROLD_PROFILE_DIR", "./storage/profiles"), log)
	if err != nil {
		log.Fatalw("failed to create profile store", "err", err)
	}

	sessionCfg := session.Config{
		DriverPath:  envOr("CONTROLD_DRIVER_PATH", session.DefaultConfig().DriverPath),
		MaxOpen:     int64(envInt("CONTROLD_MAX_SESSIONS", 10)),
		MaxLifetime: time.Duration(envInt("CONTROLD_SESSION_LIFETIME_MIN", 60)) * time.Minute,
	}
	sessions := session.NewManager(sessionCfg, kernels, profiles, log)

	proxyServer := proxy.NewServer(sessions, log)

	requestsPerHour := envInt("CONTROLD_RATE_LIMIT", 100)
	rateLimiter := ratelimit.NewLimiter(requestsPerHour, 10)

	handler := api.NewHandler(sessions, log)
	router := handler.SetupRoutes(proxyServer, rateLimiter, requestsPerHour)

	srv := &http.Server{
		Addr:         envOr("CONTROLD_ADDR", ":8080"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("control plane listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("forced shutdown", "err", err)
	}

	log.Info("control plane stopped")
}

func newLogger() *zap.Logger {
	if os.Getenv("CONTROLD_LOG") == "debug" {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
