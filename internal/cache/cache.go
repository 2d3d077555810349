// Package cache persists resolved connection data to an ephemeral
// directory. Everything in it is advisory: absence never blocks a fresh
// resolution, and a stale artifact is never authoritative over a live
// one.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/pkg/models"
)

const (
	connectionFile = "connection.json"
	debugInfoFile  = "debuginfo.json"
)

// DefaultDir returns the fixed ephemeral directory artifacts live in.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "orbiter")
}

// Store owns the two artifact files.
type Store struct {
	dir string
	log *zap.SugaredLogger
}

// NewStore creates a store rooted at dir; an empty dir means DefaultDir.
func NewStore(dir string, log *zap.SugaredLogger) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir, log: log}
}

// ConnectionPath is where the serialized connection config lives.
func (s *Store) ConnectionPath() string { return filepath.Join(s.dir, connectionFile) }

// DebugInfoPath is where the serialized debug info lives.
func (s *Store) DebugInfoPath() string { return filepath.Join(s.dir, debugInfoFile) }

// Persist overwrites both artifacts with the given resolution. No merge
// with previous contents is attempted.
func (s *Store) Persist(cfg models.ConnectionConfig, info models.DebugInfo) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	if err := writeJSON(s.ConnectionPath(), cfg); err != nil {
		return err
	}
	if err := writeJSON(s.DebugInfoPath(), info); err != nil {
		return err
	}
	s.log.Debugw("cached session artifacts", "dir", s.dir)
	return nil
}

// Cleanup deletes both artifacts. It is idempotent and never fails:
// already-missing files count as success, anything else is logged and
// swallowed — losing the cache is never fatal to a session.
func (s *Store) Cleanup() {
	for _, path := range []string{s.ConnectionPath(), s.DebugInfoPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warnw("cache cleanup failed", "path", path, "err", err)
		}
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
