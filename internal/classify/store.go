package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrArtifactNotFound means no bundle has been persisted yet
var ErrArtifactNotFound = errors.New("model artifact not found")

// Store persists the encoded bundle as a single artifact
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Location() string
}

// FileStore keeps the artifact on local disk
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the artifact
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Save writes to a temp file next to the target and renames it into place,
// so readers never observe a partial artifact.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// Location returns the artifact path
func (s *FileStore) Location() string {
	return s.path
}
