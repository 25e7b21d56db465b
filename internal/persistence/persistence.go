// Package persistence stores model snapshots and simulation results so a
// run can resume from its last trained state and comparisons survive the
// process.
package persistence

import (
	"context"
	"errors"

	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

// ErrNotFound is returned when a named snapshot or record does not exist.
var ErrNotFound = errors.New("not found")

// SnapshotStore persists detector and predictor snapshots by name. Both
// payloads are self-validating on restore, so a store only moves bytes.
type SnapshotStore interface {
	SaveRegime(ctx context.Context, name string, m *regime.Model) error
	LoadRegime(ctx context.Context, name string) (*regime.Model, error)
	SavePredictor(ctx context.Context, name string, s *predict.Snapshot) error
	LoadPredictor(ctx context.Context, name string) (*predict.Snapshot, error)
}
