// Package blob stores media files on the local filesystem and serves them
// through stable URLs.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the media storage contract used by the publisher and the expirer.
type Store interface {
	Upload(path string, data []byte, contentType string) (string, error)
	Remove(path string) error
}

type fsStore struct {
	rootDir string
	baseURL string
}

// NewFSStore keeps uploads under rootDir and maps them to URLs below
// baseURL/media/.
func NewFSStore(rootDir, baseURL string) Store {
	return &fsStore{
		rootDir: rootDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *fsStore) Upload(path string, data []byte, contentType string) (string, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(clean), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(clean, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return s.baseURL + "/media/" + filepath.ToSlash(filepath.Clean(path)), nil
}

func (s *fsStore) Remove(path string) error {
	clean, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove media file: %w", err)
	}
	return nil
}

// resolve rejects paths that would escape the media root.
func (s *fsStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid media path %q", path)
	}
	return filepath.Join(s.rootDir, clean), nil
}
