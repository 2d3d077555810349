// Package endpoint turns a session id into a usable WebSocket debugger
// address. The control API's advertised endpoint is treated as a
// starting hypothesis; the browser's own /json/version discovery
// endpoint is authoritative whenever it answers.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/pkg/models"
)

// discoveryTimeout bounds the /json/version side call. Discovery is
// best-effort: a hung call must degrade resolution, not block it.
const discoveryTimeout = 3 * time.Second

// IncompleteDebugInfoError means the opened session did not report the
// HTTP debug field the resolver needs.
type IncompleteDebugInfoError struct {
	SessionID string
}

func (e *IncompleteDebugInfoError) Error() string {
	return fmt.Sprintf("session %s opened without an http debug endpoint", e.SessionID)
}

// Opener is the slice of the control client the resolver needs.
type Opener interface {
	Open(ctx context.Context, id string) (models.OpenResult, error)
}

// Resolver opens sessions and derives their debugger address.
type Resolver struct {
	opener     Opener
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewResolver creates a resolver on top of a control client.
func NewResolver(opener Opener, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		opener:     opener,
		httpClient: &http.Client{Timeout: discoveryTimeout},
		log:        log,
	}
}

// Resolve opens the session and returns its debug info. Failures from
// Open propagate unchanged; a missing http field is an
// IncompleteDebugInfoError. Discovery failure is a soft fallback: the
// scheme-normalized control-API address is kept and a warning logged.
func (r *Resolver) Resolve(ctx context.Context, id string) (models.DebugInfo, error) {
	res, err := r.opener.Open(ctx, id)
	if err != nil {
		return models.DebugInfo{}, err
	}
	if res.HTTP == "" {
		err := &IncompleteDebugInfoError{SessionID: id}
		r.log.Errorw("resolve failed", "id", id, "err", err)
		return models.DebugInfo{}, err
	}

	// Sessions are assumed plaintext unless the API already said otherwise.
	addr := res.HTTP
	if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
		addr = "ws://" + addr
	}

	if discovered, err := r.discover(ctx, res.HTTP); err != nil {
		r.log.Warnw("debugger discovery failed, keeping advertised address",
			"id", id, "addr", addr, "err", err)
	} else {
		r.log.Infow("debugger discovery succeeded", "id", id, "url", discovered)
		addr = discovered
	}

	port, err := portOf(addr)
	if err != nil {
		r.log.Warnw("could not derive debug port", "addr", addr, "err", err)
	}

	return models.DebugInfo{
		DriverPath:      res.Driver,
		DebuggerAddress: addr,
		ChromePort:      port,
	}, nil
}

// discover queries the browser's /json/version endpoint for the
// negotiated WebSocket debugger URL.
func (r *Resolver) discover(ctx context.Context, hostport string) (string, error) {
	host := strings.TrimPrefix(strings.TrimPrefix(hostport, "ws://"), "wss://")

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+host+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery returned %d", resp.StatusCode)
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decode discovery body: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("discovery body has no webSocketDebuggerUrl")
	}
	return version.WebSocketDebuggerURL, nil
}

// portOf extracts the port from a ws://host:port[/path] address.
func portOf(addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	if u.Port() == "" {
		return "", fmt.Errorf("address %q has no explicit port", addr)
	}
	return u.Port(), nil
}
