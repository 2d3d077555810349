// Package session is the control plane's session registry: it owns the
// mapping from session ids to browser containers and the create /
// open / close / delete / update lifecycle behind the /browser REST
// surface.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/orbiterhq/orbiter/internal/browser"
	"github.com/orbiterhq/orbiter/internal/kernel"
	"github.com/orbiterhq/orbiter/pkg/models"
)

// Launcher is the slice of the kernel manager the session manager needs.
type Launcher interface {
	Route(requested string) kernel.Version
	Launch(ctx context.Context, version kernel.Version, opts browser.LaunchOptions) (*browser.Instance, error)
	Stop(ctx context.Context, containerID string) error
}

// ProfileStore persists user-data directories between opens.
type ProfileStore interface {
	Has(sessionID string) bool
	Save(sessionID, userDataDir string) error
	Restore(sessionID string) (string, error)
	Delete(sessionID string) error
}

// Config tunes the session manager.
type Config struct {
	DriverPath  string        // reported to clients in open results
	MaxOpen     int64         // concurrent open sessions
	MaxLifetime time.Duration // open sessions auto-close after this
}

// DefaultConfig returns the manager's baseline configuration.
func DefaultConfig() Config {
	return Config{
		DriverPath:  "/usr/local/bin/chromedriver",
		MaxOpen:     10,
		MaxLifetime: time.Hour,
	}
}

// record is the manager's private view of one session.
type record struct {
	mu          sync.Mutex
	meta        models.Browser
	containerID string
	debugAddr   string
	userDataDir string
	lifetime    *time.Timer
}

// Manager handles all session operations.
type Manager struct {
	sessions sync.Map // id -> *record
	open     *semaphore.Weighted
	kernels  Launcher
	profiles ProfileStore
	cfg      Config
	log      *zap.SugaredLogger
}

// NewManager creates a session manager.
func NewManager(cfg Config, kernels Launcher, profiles ProfileStore, log *zap.SugaredLogger) *Manager {
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = DefaultConfig().MaxOpen
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = DefaultConfig().MaxLifetime
	}
	if cfg.DriverPath == "" {
		cfg.DriverPath = DefaultConfig().DriverPath
	}
	return &Manager{
		open:     semaphore.NewWeighted(cfg.MaxOpen),
		kernels:  kernels,
		profiles: profiles,
		cfg:      cfg,
		log:      log,
	}
}

// Create registers a new session or fully replaces an existing one when
// the request carries a known id.
func (m *Manager) Create(req models.CreateBrowserRequest) (models.Browser, error) {
	if req.Name == "" {
		return models.Browser{}, fmt.Errorf("name is required")
	}

	now := time.Now()

	if req.ID != "" {
		if value, ok := m.sessions.Load(req.ID); ok {
			rec := value.(*record)
			rec.mu.Lock()
			rec.meta.Name = req.Name
			rec.meta.Remark = req.Remark
			if req.Proxy != nil {
				rec.meta.Proxy = *req.Proxy
			}
			if req.Fingerprint != nil {
				rec.meta.Fingerprint = *req.Fingerprint
			}
			rec.meta.UpdatedAt = now
			meta := rec.meta
			rec.mu.Unlock()
			m.log.Infow("session replaced", "id", req.ID)
			return meta, nil
		}
	}

	meta := models.Browser{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Remark:    req.Remark,
		Status:    models.StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Proxy != nil {
		meta.Proxy = *req.Proxy
	} else {
		meta.Proxy = models.ProxyConfig{Method: models.ProxyMethodNone, Type: models.ProxyTypeNone}
	}
	if req.Fingerprint != nil {
		meta.Fingerprint = *req.Fingerprint
	} else {
		meta.Fingerprint = models.FingerprintConfig{CoreVersion: string(kernel.DefaultVersion)}
	}

	m.sessions.Store(meta.ID, &record{meta: meta})
	m.log.Infow("session created", "id", meta.ID, "name", meta.Name)
	return meta, nil
}

// Get returns a session's metadata.
func (m *Manager) Get(id string) (models.Browser, error) {
	rec, err := m.record(id)
	if err != nil {
		return models.Browser{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.meta, nil
}

// List returns metadata for every known session.
func (m *Manager) List() []models.Browser {
	var out []models.Browser
	m.sessions.Range(func(_, value any) bool {
		rec := value.(*record)
		rec.mu.Lock()
		out = append(out, rec.meta)
		rec.mu.Unlock()
		return true
	})
	return out
}

// Open boots the session's browser container and returns its debug
// endpoint. Opening an already-open session returns the live endpoint
// instead of launching a second browser.
func (m *Manager) Open(ctx context.Context, id string) (models.OpenResult, error) {
	rec, err := m.record(id)
	if err != nil {
		return models.OpenResult{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.meta.Status == models.StatusActive {
		return models.OpenResult{HTTP: rec.debugAddr, Driver: m.cfg.DriverPath}, nil
	}

	if !m.open.TryAcquire(1) {
		return models.OpenResult{}, fmt.Errorf("concurrent session limit reached")
	}

	opts := browser.LaunchOptions{SessionID: id}
	if m.profiles.Has(id) {
		dir, err := m.profiles.Restore(id)
		if err != nil {
			m.log.Warnw("profile restore failed, starting clean", "id", id, "err", err)
		} else {
			opts.UserDataDir = dir
		}
	}
	if rec.meta.Proxy.Method == models.ProxyMethodCustom && rec.meta.Proxy.Host != "" {
		opts.ProxyServer = fmt.Sprintf("%s://%s:%d",
			rec.meta.Proxy.Type, rec.meta.Proxy.Host, rec.meta.Proxy.Port)
	}

	version := m.kernels.Route(rec.meta.Fingerprint.CoreVersion)
	instance, err := m.kernels.Launch(ctx, version, opts)
	if err != nil {
		m.open.Release(1)
		return models.OpenResult{}, fmt.Errorf("failed to launch browser: %w", err)
	}

	rec.containerID = instance.ContainerID
	rec.debugAddr = instance.DebugAddr
	rec.userDataDir = instance.UserDataDir
	rec.meta.Status = models.StatusActive
	rec.meta.UpdatedAt = time.Now()

	// Abandoned opens are reaped; explicit Close cancels the timer.
	rec.lifetime = time.AfterFunc(m.cfg.MaxLifetime, func() {
		m.log.Warnw("session exceeded max lifetime, closing", "id", id)
		if err := m.Close(context.Background(), id); err != nil {
			m.log.Errorw("lifetime close failed", "id", id, "err", err)
		}
	})

	m.log.Infow("session opened", "id", id, "kernel", version, "debug", instance.DebugAddr)
	return models.OpenResult{HTTP: instance.DebugAddr, Driver: m.cfg.DriverPath}, nil
}

// Close archives the session's profile and stops its container.
func (m *Manager) Close(ctx context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.meta.Status != models.StatusActive {
		return fmt.Errorf("session %s is not open", id)
	}

	if rec.lifetime != nil {
		rec.lifetime.Stop()
		rec.lifetime = nil
	}

	if rec.userDataDir != "" {
		if err := m.profiles.Save(id, rec.userDataDir); err != nil {
			m.log.Warnw("failed to save profile", "id", id, "err", err)
		}
	}

	if rec.containerID != "" {
		stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := m.kernels.Stop(stopCtx, rec.containerID); err != nil {
			m.log.Warnw("failed to stop container", "id", id, "container", rec.containerID, "err", err)
		}
	}

	rec.containerID = ""
	rec.debugAddr = ""
	rec.userDataDir = ""
	rec.meta.Status = models.StatusIdle
	rec.meta.UpdatedAt = time.Now()
	m.open.Release(1)

	m.log.Infow("session closed", "id", id)
	return nil
}

// Delete closes the session if needed and removes its record and
// profile archive.
func (m *Manager) Delete(ctx context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	active := rec.meta.Status == models.StatusActive
	rec.mu.Unlock()

	if active {
		if err := m.Close(ctx, id); err != nil {
			return err
		}
	}

	if err := m.profiles.Delete(id); err != nil {
		m.log.Warnw("failed to delete profile archive", "id", id, "err", err)
	}

	m.sessions.Delete(id)
	m.log.Infow("session deleted", "id", id)
	return nil
}

// UpdatePartial patches the supplied fields on every listed session.
func (m *Manager) UpdatePartial(ids []string, fields models.UpdateFields) error {
	if len(ids) == 0 {
		return fmt.Errorf("ids must not be empty")
	}

	// Validate the whole batch before mutating anything.
	records := make([]*record, 0, len(ids))
	for _, id := range ids {
		rec, err := m.record(id)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	now := time.Now()
	for _, rec := range records {
		rec.mu.Lock()
		if fields.Name != nil {
			rec.meta.Name = *fields.Name
		}
		if fields.Remark != nil {
			rec.meta.Remark = *fields.Remark
		}
		if fields.Proxy != nil {
			rec.meta.Proxy = *fields.Proxy
		}
		if fields.Fingerprint != nil {
			rec.meta.Fingerprint = *fields.Fingerprint
		}
		rec.meta.UpdatedAt = now
		rec.mu.Unlock()
	}

	m.log.Infow("sessions updated", "count", len(ids))
	return nil
}

// DebugAddr returns the live DevTools endpoint of an open session; the
// WebSocket proxy uses it to reach the container.
func (m *Manager) DebugAddr(id string) (string, error) {
	rec, err := m.record(id)
	if err != nil {
		return "", err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.meta.Status != models.StatusActive || rec.debugAddr == "" {
		return "", fmt.Errorf("session %s is not open", id)
	}
	return rec.debugAddr, nil
}

// Shutdown closes every open session; used on daemon exit.
func (m *Manager) Shutdown(ctx context.Context) {
	m.sessions.Range(func(key, value any) bool {
		rec := value.(*record)
		rec.mu.Lock()
		active := rec.meta.Status == models.StatusActive
		rec.mu.Unlock()
		if active {
			if err := m.Close(ctx, key.(string)); err != nil {
				m.log.Warnw("shutdown close failed", "id", key, "err", err)
			}
		}
		return true
	})
}

func (m *Manager) record(id string) (*record, error) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return value.(*record), nil
}
