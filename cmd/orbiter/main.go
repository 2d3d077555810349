// orbiter drives one remote browser session end to end: create the
// session on the control plane, resolve and attach to its debugger,
// load a page, capture a screenshot, then close and delete the session.
// Any unrecovered error terminates the process with a non-zero status.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/orchestrator"
	"github.com/orbiterhq/orbiter/pkg/models"
)

func main() {
	_ = godotenv.Load()

	var (
		targetURL  = flag.String("url", "https://example.com", "page to load")
		screenshot = flag.String("screenshot", "page.png", "screenshot output path (empty to skip)")
		name       = flag.String("name", "", "session display name")
		headful    = flag.Bool("headful", false, "request a headful connection config")
	)
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()
	log := logger.Sugar()

	cfg := orchestrator.DefaultConfig()
	if base := os.Getenv("ORBITER_API_URL"); base != "" {
		cfg.Control.BaseURL = base
	}
	if key := os.Getenv("ORBITER_API_KEY"); key != "" {
		cfg.Control.Headers = map[string]string{"X-API-Key": key}
	}
	if dir := os.Getenv("ORBITER_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}

	orc := orchestrator.New(cfg, log)
	defer orc.Close()
	orc.WatchSignals()

	if err := run(orc, log, *targetURL, *screenshot, *name, *headful); err != nil {
		log.Errorw("session run failed", "err", err)
		orc.Close()
		os.Exit(1)
	}
}

func run(orc *orchestrator.Orchestrator, log *zap.SugaredLogger, targetURL, screenshotPath, name string, headful bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	id, err := orc.CreateSession(ctx, models.CreateBrowserRequest{Name: name})
	if err != nil {
		return err
	}

	var overrides *models.ConnectOverrides
	if headful {
		headless := false
		overrides = &models.ConnectOverrides{Headless: &headless}
	}

	info, err := orc.Connect(ctx, id, overrides)
	if err != nil {
		return fmt.Errorf("connect session %s: %w", id, err)
	}
	log.Infow("connected", "endpoint", info.DebuggerAddress, "port", info.ChromePort)

	bridge := orc.Bridge()
	if err := bridge.Navigate(ctx, targetURL, nil); err != nil {
		return err
	}

	title, err := bridge.Evaluate(ctx, "document.title")
	if err != nil {
		return err
	}
	log.Infow("page loaded", "title", string(title))

	if screenshotPath != "" {
		shot, err := bridge.Screenshot(ctx, nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(screenshotPath, shot, 0644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
		log.Infow("screenshot written", "path", screenshotPath, "bytes", len(shot))
	}

	if err := orc.CloseSession(ctx, id); err != nil {
		return err
	}
	return orc.DeleteSession(ctx, id)
}

func newLogger() *zap.Logger {
	if os.Getenv("ORBITER_LOG") == "debug" {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}
