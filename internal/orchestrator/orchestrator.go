// Package orchestrator wires the control client, endpoint resolver,
// artifact cache, and automation bridge into one session lifecycle.
// Each Orchestrator owns its own cleanup timer and signal subscription
// so instances can coexist (notably in tests) without fighting over
// process-global state.
package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/bridge"
	"github.com/orbiterhq/orbiter/internal/cache"
	"github.com/orbiterhq/orbiter/internal/control"
	"github.com/orbiterhq/orbiter/internal/endpoint"
	"github.com/orbiterhq/orbiter/pkg/models"
)

// Config is the orchestrator-level configuration surface.
type Config struct {
	Control         control.Config
	CacheDir        string
	CleanupInterval time.Duration
}

// DefaultConfig returns the baseline orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Control:         control.DefaultConfig(),
		CacheDir:        cache.DefaultDir(),
		CleanupInterval: 5 * time.Minute,
	}
}

// Orchestrator drives remote browser sessions end to end. Operations on
// one session are expected to be sequenced by the caller; only the
// background cleanup timer runs concurrently, and it performs nothing
// but idempotent deletes.
type Orchestrator struct {
	client   *control.Client
	resolver *endpoint.Resolver
	store    *cache.Store
	bridge   *bridge.Bridge
	log      *zap.SugaredLogger

	ticker    *time.Ticker
	done      chan struct{}
	sigCh     chan os.Signal
	closeOnce sync.Once

	// exit is swappable so signal handling is testable.
	exit func(code int)
}

// New constructs an orchestrator and starts its background cleanup
// timer. The caller must Close it to release the timer and signal
// subscription.
func New(cfg Config, log *zap.SugaredLogger) *Orchestrator {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}

	store := cache.NewStore(cfg.CacheDir, log)
	client := control.NewClient(cfg.Control, log)

	o := &Orchestrator{
		client:   client,
		resolver: endpoint.NewResolver(client, log),
		store:    store,
		bridge:   bridge.NewBridge(store, log),
		log:      log,
		ticker:   time.NewTicker(cfg.CleanupInterval),
		done:     make(chan struct{}),
		sigCh:    make(chan os.Signal, 1),
		exit:     os.Exit,
	}

	// The timer sweeps unconditionally: it exists for orphaned artifacts
	// left behind by termination paths that skip the explicit hooks.
	go func() {
		for {
			select {
			case <-o.done:
				return
			case <-o.ticker.C:
				o.store.Cleanup()
			}
		}
	}()

	return o
}

// API exposes the control client for direct session management calls.
func (o *Orchestrator) API() *control.Client { return o.client }

// Bridge exposes the automation bridge for page-level control.
func (o *Orchestrator) Bridge() *bridge.Bridge { return o.bridge }

// Cache exposes the artifact store.
func (o *Orchestrator) Cache() *cache.Store { return o.store }

// CreateSession registers a session with the control API.
func (o *Orchestrator) CreateSession(ctx context.Context, req models.CreateBrowserRequest) (string, error) {
	return o.client.Create(ctx, req)
}

// Connect opens the session, resolves its debugger endpoint, caches the
// resolution, and attaches the bridge. A cache write failure is logged
// and ignored: the cache is advisory and losing it never fails a
// session.
func (o *Orchestrator) Connect(ctx context.Context, id string, overrides *models.ConnectOverrides) (models.DebugInfo, error) {
	info, err := o.resolver.Resolve(ctx, id)
	if err != nil {
		return models.DebugInfo{}, err
	}

	cfg := models.DefaultConnectionConfig().Merge(overrides)
	cfg.BrowserWSEndpoint = info.DebuggerAddress
	if err := o.store.Persist(cfg, info); err != nil {
		o.log.Warnw("could not cache session artifacts", "id", id, "err", err)
	}

	if err := o.bridge.Connect(ctx, info, overrides); err != nil {
		return models.DebugInfo{}, err
	}
	return info, nil
}

// CloseSession detaches the bridge (failures surface), closes the
// remote session, and cleans up cached artifacts via the bridge hook.
func (o *Orchestrator) CloseSession(ctx context.Context, id string) error {
	if err := o.bridge.Close(); err != nil {
		o.log.Errorw("bridge disconnect failed", "id", id, "err", err)
		return err
	}
	return o.client.Close(ctx, id)
}

// DeleteSession removes the session record from the control API.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	return o.client.Delete(ctx, id)
}

// WatchSignals subscribes to interrupt/terminate. On a signal the cache
// is cleaned and the process exits non-zero.
func (o *Orchestrator) WatchSignals() {
	signal.Notify(o.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-o.done:
			return
		case sig := <-o.sigCh:
			o.log.Warnw("caught signal, cleaning up", "signal", sig)
			o.store.Cleanup()
			o.exit(1)
		}
	}()
}

// Close releases the timer and signal subscription and runs one final
// cleanup. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.ticker.Stop()
		signal.Stop(o.sigCh)
		close(o.done)
		o.store.Cleanup()
	})
}
