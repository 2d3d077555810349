// Package profile persists browser user-data directories across opens
// of the same session. A session's profile is archived on close and
// restored into a fresh directory on the next open; the archive on disk
// is the only state of record.
package profile

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store handles profile archive persistence.
type Store struct {
	storePath string
	log       *zap.SugaredLogger
}

// NewStore creates a profile store rooted at storePath.
func NewStore(storePath string, log *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(storePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile storage directory: %w", err)
	}

	return &Store{storePath: storePath, log: log}, nil
}

// archivePath is where a session's profile archive lives.
func (s *Store) archivePath(sessionID string) string {
	return filepath.Join(s.storePath, fmt.Sprintf("%s.tar.gz", sessionID))
}

// Has reports whether a saved profile exists for the session.
func (s *Store) Has(sessionID string) bool {
	_, err := os.Stat(s.archivePath(sessionID))
	return err == nil
}

// Save archives the session's user-data directory.
func (s *Store) Save(sessionID, userDataDir string) error {
	archive := s.archivePath(sessionID)
	if err := s.compressDirectory(userDataDir, archive); err != nil {
		return fmt.Errorf("failed to archive profile %s: %w", sessionID, err)
	}
	s.log.Debugw("profile saved", "session", sessionID, "archive", archive)
	return nil
}

// Restore extracts the session's saved profile into a fresh temporary
// directory and returns its path. Sessions without a saved profile get
// an error; callers treat that as "start clean".
func (s *Store) Restore(sessionID string) (string, error) {
	archive := s.archivePath(sessionID)
	if _, err := os.Stat(archive); err != nil {
		return "", fmt.Errorf("no saved profile for session %s", sessionID)
	}

	extractPath := filepath.Join(os.TempDir(), "orbiter-profiles", sessionID)
	if err := os.MkdirAll(extractPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}

	if err := s.extractDirectory(archive, extractPath); err != nil {
		return "", fmt.Errorf("failed to restore profile %s: %w", sessionID, err)
	}

	return extractPath, nil
}

// Delete removes the session's profile archive. A missing archive is
// not an error.
func (s *Store) Delete(sessionID string) error {
	if err := os.Remove(s.archivePath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete profile %s: %w", sessionID, err)
	}
	return nil
}

// compressDirectory creates a tar.gz archive of a directory.
func (s *Store) compressDirectory(source, target string) error {
	file, err := os.Create(target)
	if err != nil {
		return err
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, info.Name())
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if !info.IsDir() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			_, err = io.Copy(tarWriter, file)
			return err
		}

		return nil
	})
}

// extractDirectory extracts a tar.gz archive to a directory.
func (s *Store) extractDirectory(source, target string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		targetPath := filepath.Join(target, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}

			outFile, err := os.Create(targetPath)
			if err != nil {
				return err
			}

			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}

	return nil
}
