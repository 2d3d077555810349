// Package control implements the typed client for the browser control
// API: session create/open/close/delete plus bulk partial updates, all
// speaking the {success, message, data} envelope.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/pkg/models"
)

// Config is the client-side configuration surface for the control API.
type Config struct {
	BaseURL            string
	Headers            map[string]string
	DefaultName        string
	DefaultCoreVersion string
	RequestTimeout     time.Duration
}

// DefaultConfig returns the baseline client configuration pointing at a
// local control plane.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://127.0.0.1:8080",
		DefaultName:        "orbiter-session",
		DefaultCoreVersion: "130",
		RequestTimeout:     30 * time.Second,
	}
}

// Client is the typed wrapper around the control API. Calls are not
// retried; a failed call surfaces immediately to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient creates a control-API client.
func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = DefaultConfig().DefaultName
	}
	if cfg.DefaultCoreVersion == "" {
		cfg.DefaultCoreVersion = DefaultConfig().DefaultCoreVersion
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        log,
	}
}

// Create registers a new session, filling defaults for any field the
// caller omitted: name falls back to the configured label, proxy to
// no_proxy/noproxy, fingerprint to the configured core version.
func (c *Client) Create(ctx context.Context, req models.CreateBrowserRequest) (string, error) {
	if req.Name == "" {
		req.Name = c.cfg.DefaultName
	}
	if req.Proxy == nil {
		req.Proxy = &models.ProxyConfig{
			Method: models.ProxyMethodNone,
			Type:   models.ProxyTypeNone,
		}
	}
	if req.Fingerprint == nil {
		req.Fingerprint = &models.FingerprintConfig{CoreVersion: c.cfg.DefaultCoreVersion}
	}

	data, err := c.post(ctx, "/browser/update", req)
	if err != nil {
		c.log.Errorw("create session failed", "err", err)
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &ProtocolError{Reason: "create: malformed data payload: " + err.Error()}
	}
	c.log.Infow("session created", "id", out.ID, "name", req.Name)
	return out.ID, nil
}

// Open boots the session's browser and returns the raw endpoint fields.
// The http field is left exactly as the API reported it; normalization
// belongs to the resolver.
func (c *Client) Open(ctx context.Context, id string) (models.OpenResult, error) {
	data, err := c.post(ctx, "/browser/open", map[string]string{"id": id})
	if err != nil {
		c.log.Errorw("open session failed", "id", id, "err", err)
		return models.OpenResult{}, err
	}

	var res models.OpenResult
	if err := json.Unmarshal(data, &res); err != nil {
		return models.OpenResult{}, &ProtocolError{Reason: "open: malformed data payload: " + err.Error()}
	}
	c.log.Infow("session opened", "id", id, "http", res.HTTP, "driver", res.Driver)
	return res, nil
}

// Close shuts down the session's browser without deleting the session.
func (c *Client) Close(ctx context.Context, id string) error {
	if _, err := c.post(ctx, "/browser/close", map[string]string{"id": id}); err != nil {
		c.log.Errorw("close session failed", "id", id, "err", err)
		return err
	}
	c.log.Infow("session closed", "id", id)
	return nil
}

// Delete removes the session record entirely.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.post(ctx, "/browser/delete", map[string]string{"id": id}); err != nil {
		c.log.Errorw("delete session failed", "id", id, "err", err)
		return err
	}
	c.log.Infow("session deleted", "id", id)
	return nil
}

// Update patches the given fields on every listed session. An empty id
// list is a ValidationError and never reaches the network; nil fields
// are omitted from the payload rather than sent as null.
func (c *Client) Update(ctx context.Context, ids []string, fields models.UpdateFields) error {
	if len(ids) == 0 {
		return &ValidationError{Field: "ids", Reason: "at least one session id is required"}
	}

	req := models.UpdateBrowserRequest{IDs: ids, UpdateFields: fields}
	if _, err := c.post(ctx, "/browser/update/partial", req); err != nil {
		c.log.Errorw("update sessions failed", "ids", ids, "err", err)
		return err
	}
	c.log.Infow("sessions updated", "count", len(ids))
	return nil
}

// post sends one JSON request and validates the envelope.
func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.log.Debugw("control api request", "path", path, "payload", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("control api %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProtocolError{Reason: "read response body: " + err.Error()}
	}
	return Validate(raw)
}
