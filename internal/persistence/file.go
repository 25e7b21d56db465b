package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

// FileStore keeps snapshots as JSON files under a directory. Writes go
// through a temp file and rename so a crash never leaves a torn snapshot.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveRegime writes the detector snapshot.
func (f *FileStore) SaveRegime(_ context.Context, name string, m *regime.Model) error {
	return f.write("regime", name, m)
}

// LoadRegime reads and validates a detector snapshot.
func (f *FileStore) LoadRegime(_ context.Context, name string) (*regime.Model, error) {
	var m regime.Model
	if err := f.read("regime", name, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("regime snapshot %q: %w", name, err)
	}
	return &m, nil
}

// SavePredictor writes the predictor snapshot.
func (f *FileStore) SavePredictor(_ context.Context, name string, s *predict.Snapshot) error {
	return f.write("predictor", name, s)
}

// LoadPredictor reads and validates a predictor snapshot.
func (f *FileStore) LoadPredictor(_ context.Context, name string) (*predict.Snapshot, error) {
	var s predict.Snapshot
	if err := f.read("predictor", name, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("predictor snapshot %q: %w", name, err)
	}
	return &s, nil
}

func (f *FileStore) path(kind, name string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.json", kind, name))
}

func (f *FileStore) write(kind, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	dst := f.path(kind, name)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s snapshot: %w", kind, err)
	}
	return os.Rename(tmp, dst)
}

func (f *FileStore) read(kind, name string, v interface{}) error {
	data, err := os.ReadFile(f.path(kind, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s snapshot %q: %w", kind, name, ErrNotFound)
		}
		return fmt.Errorf("read %s snapshot: %w", kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s snapshot %q: %w", kind, name, err)
	}
	return nil
}
