package estimator

import (
	"context"
	"errors"

	"neurocost/pkg/storage"
)

var (
	// ErrNotTrained is returned when a trainable baseline predicts before Fit or load.
	ErrNotTrained = errors.New("estimator: baseline not trained")
	// ErrModelNotFound is returned when the LCM predicts without a fitted forest.
	ErrModelNotFound = errors.New("estimator: learned cost model not available")
	// ErrHybridComponentsNotFound is returned when inference cannot load the
	// selector, the LCM or a linear baseline.
	ErrHybridComponentsNotFound = errors.New("estimator: hybrid components not found")
)

// ArtifactStore is the part of storage.ModelStore the estimators need.
type ArtifactStore interface {
	Exists(ctx context.Context, slot storage.Slot) (bool, error)
	Save(ctx context.Context, slot storage.Slot, v any, overwrite bool) (storage.SaveResult, error)
	Load(ctx context.Context, slot storage.Slot, v any) (storage.ArtifactInfo, error)
}

// IsNotFound reports whether err means a persisted artifact is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
