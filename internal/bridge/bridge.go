// Package bridge attaches to an already-running remote browser over its
// resolved WebSocket debugger address and exposes page-level control.
// It never launches a browser locally: the remote allocator is the only
// connection mode, and the resolved endpoint is used verbatim.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/cache"
	"github.com/orbiterhq/orbiter/pkg/models"
)

// ErrNoActivePage is returned by page operations issued before Connect.
var ErrNoActivePage = errors.New("no active page: connect before issuing page commands")

// challengeScript papers over the most common automation tells before
// any document script runs. Installed only when the merged config asks
// for challenge handling.
const challengeScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// NavigateOptions tune one navigation. A zero Timeout falls back to
// the merged connection config's navigation timeout.
type NavigateOptions struct {
	Timeout time.Duration
}

// ScreenshotOptions tune one capture. FullPage defaults to true.
type ScreenshotOptions struct {
	FullPage *bool
	Quality  int // JPEG quality for full-page captures; 0 means 90
}

// Bridge holds at most one live browser/page handle pair. A second
// Connect before Close silently replaces the held pair; guarding
// against that is the caller's job.
type Bridge struct {
	store *cache.Store
	log   *zap.SugaredLogger

	cfg         models.ConnectionConfig
	pageCtx     context.Context
	cancelPage  context.CancelFunc
	cancelAlloc context.CancelFunc
	connected   bool
}

// NewBridge creates a bridge that triggers cleanup on store when closed.
func NewBridge(store *cache.Store, log *zap.SugaredLogger) *Bridge {
	return &Bridge{store: store, log: log}
}

// Connect merges the default connection config with overrides, forces
// the resolved WebSocket endpoint into it, and attaches. Errors from
// the automation layer propagate unchanged; not-found-class failures
// additionally log likely root causes.
func (b *Bridge) Connect(ctx context.Context, info models.DebugInfo, overrides *models.ConnectOverrides) error {
	cfg := models.DefaultConnectionConfig().Merge(overrides)
	// The resolved endpoint always wins; clearing the HTTP URL keeps the
	// automation layer from choosing between two connection modes.
	cfg.BrowserWSEndpoint = info.DebuggerAddress
	cfg.BrowserURL = ""

	// The resolver already negotiated the endpoint, so the allocator
	// must not re-run its own discovery against it.
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(),
		cfg.BrowserWSEndpoint, chromedp.NoModifyURL)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.log.Debugf),
		chromedp.WithErrorf(b.log.Errorf),
	)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(cfg.Viewport.Width), int64(cfg.Viewport.Height)),
	}
	if cfg.AutoSolveChallenges {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(challengeScript).Do(ctx)
			return err
		}))
	}

	if err := chromedp.Run(pageCtx, actions...); err != nil {
		cancelPage()
		cancelAlloc()
		if isNotFoundClass(err) {
			b.log.Errorw("browser attach failed; likely causes: debug port not exposed, "+
				"malformed websocket url, devtools version mismatch, or remote browser crashed",
				"endpoint", cfg.BrowserWSEndpoint, "err", err)
		}
		return err
	}

	if b.connected {
		b.log.Warnw("replacing live browser handle", "endpoint", cfg.BrowserWSEndpoint)
		b.disconnect()
	}

	b.cfg = cfg
	b.pageCtx = pageCtx
	b.cancelPage = cancelPage
	b.cancelAlloc = cancelAlloc
	b.connected = true
	b.log.Infow("attached to remote browser", "endpoint", cfg.BrowserWSEndpoint,
		"viewport", fmt.Sprintf("%dx%d", cfg.Viewport.Width, cfg.Viewport.Height))
	return nil
}

// Config returns the merged configuration of the current connection.
func (b *Bridge) Config() models.ConnectionConfig { return b.cfg }

// Connected reports whether a page handle is held.
func (b *Bridge) Connected() bool { return b.connected }

// Navigate drives the page to url, waiting for the load to settle
// within the navigation timeout.
func (b *Bridge) Navigate(ctx context.Context, url string, opts *NavigateOptions) error {
	if !b.connected {
		return ErrNoActivePage
	}

	timeout := b.cfg.NavigationTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	runCtx, cancel := context.WithTimeout(b.pageCtx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		b.log.Errorw("navigation failed", "url", url, "err", err)
		return err
	}
	b.log.Infow("navigated", "url", url)
	return nil
}

// Evaluate runs a JavaScript expression in the page and returns the raw
// JSON-encoded result.
func (b *Bridge) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	if !b.connected {
		return nil, ErrNoActivePage
	}

	var raw []byte
	if err := chromedp.Run(b.pageCtx, chromedp.Evaluate(expression, &raw)); err != nil {
		b.log.Errorw("evaluate failed", "err", err)
		return nil, err
	}
	return raw, nil
}

// Screenshot captures the page, full-page by default.
func (b *Bridge) Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error) {
	if !b.connected {
		return nil, ErrNoActivePage
	}

	fullPage := true
	quality := 90
	if opts != nil {
		if opts.FullPage != nil {
			fullPage = *opts.FullPage
		}
		if opts.Quality > 0 {
			quality = opts.Quality
		}
	}

	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, quality)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := chromedp.Run(b.pageCtx, action); err != nil {
		b.log.Errorw("screenshot failed", "err", err)
		return nil, err
	}
	return buf, nil
}

// Close disconnects from the remote browser without terminating it —
// the control API owns the browser's lifetime — then cleans the cached
// artifacts.
func (b *Bridge) Close() error {
	if !b.connected {
		b.store.Cleanup()
		return nil
	}
	b.disconnect()
	b.log.Infow("detached from remote browser")
	b.store.Cleanup()
	return nil
}

// disconnect tears down the CDP connection contexts. Cancelling the
// remote allocator drops the websocket; it never issues Browser.close.
func (b *Bridge) disconnect() {
	b.cancelPage()
	b.cancelAlloc()
	b.pageCtx = nil
	b.connected = false
}

func isNotFoundClass(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "bad handshake") ||
		strings.Contains(msg, "connection refused")
}
