// Package kernel routes sessions to browser pools by fingerprint core
// version. Each supported version is backed by its own container image
// and pool; unknown versions fall back to the default kernel.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/browser"
)

// Version is a supported browser kernel (Chrome major version).
type Version string

const (
	Version126 Version = "126"
	Version130 Version = "130"
	Version134 Version = "134"

	DefaultVersion = Version130
)

// images maps each kernel version to its headless-shell image tag.
var images = map[Version]string{
	Version126: "chromedp/headless-shell:126.0.6478.182",
	Version130: "chromedp/headless-shell:130.0.6723.58",
	Version134: "chromedp/headless-shell:134.0.6998.35",
}

// Manager owns one browser pool per supported kernel version.
type Manager struct {
	pools map[Version]*browser.Pool
	mu    sync.RWMutex
	log   *zap.SugaredLogger
}

// NewManager creates pools for every supported kernel.
func NewManager(log *zap.SugaredLogger) (*Manager, error) {
	manager := &Manager{
		pools: make(map[Version]*browser.Pool),
		log:   log,
	}

	for version, imageRef := range images {
		pool, err := browser.NewPool(string(version), imageRef, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create pool for kernel %s: %w", version, err)
		}
		manager.pools[version] = pool
	}

	return manager, nil
}

// GetPool returns the pool backing a specific kernel version.
func (m *Manager) GetPool(version Version) (*browser.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, exists := m.pools[version]
	if !exists {
		return nil, fmt.Errorf("unsupported kernel version: %s", version)
	}

	return pool, nil
}

// Route picks the kernel for a requested core version, falling back to
// the default when the request is empty or unsupported.
func (m *Manager) Route(requested string) Version {
	version := Version(requested)

	m.mu.RLock()
	_, exists := m.pools[version]
	m.mu.RUnlock()

	if exists {
		return version
	}

	return DefaultVersion
}

// Launch starts a browser on the given kernel.
func (m *Manager) Launch(ctx context.Context, version Version, opts browser.LaunchOptions) (*browser.Instance, error) {
	pool, err := m.GetPool(version)
	if err != nil {
		return nil, err
	}

	return pool.Launch(ctx, opts)
}

// Stop stops a container regardless of which kernel launched it.
func (m *Manager) Stop(ctx context.Context, containerID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	for _, pool := range m.pools {
		err := pool.Stop(ctx, containerID)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return lastErr
}

// EnsureImages pulls every kernel image that is missing locally.
func (m *Manager) EnsureImages(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for version, pool := range m.pools {
		if err := pool.EnsureImage(ctx); err != nil {
			return fmt.Errorf("failed to ensure image for kernel %s: %w", version, err)
		}
	}

	return nil
}

// Versions returns all supported kernel versions.
func (m *Manager) Versions() []Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]Version, 0, len(m.pools))
	for version := range m.pools {
		versions = append(versions, version)
	}

	return versions
}

// Close closes all pools.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pool := range m.pools {
		if err := pool.Close(); err != nil {
			return err
		}
	}

	return nil
}
