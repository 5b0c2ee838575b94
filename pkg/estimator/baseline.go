package estimator

import (
	"context"
	"fmt"
	"strings"

	"neurocost/pkg/common"
	"neurocost/pkg/model"
	"neurocost/pkg/storage"
)

// BaselineMode picks the baseline policy for a whole run.
type BaselineMode string

const (
	// BaselineIdentity returns the optimizer's estimated_cost unchanged.
	BaselineIdentity BaselineMode = "identity"
	// BaselineLinear regresses actual runtime on estimated_cost.
	BaselineLinear BaselineMode = "linear"
)

func ParseBaselineMode(s string) (BaselineMode, error) {
	switch BaselineMode(strings.ToLower(strings.TrimSpace(s))) {
	case BaselineIdentity, "":
		return BaselineIdentity, nil
	case BaselineLinear:
		return BaselineLinear, nil
	}
	return "", fmt.Errorf("unknown baseline mode %q", s)
}

// Baseline predicts runtime from a query's optimizer estimates.
type Baseline interface {
	Mode() BaselineMode
	Predict(records []common.QueryRecord) ([]float64, error)
}

// IdentityBaseline treats estimated_cost as a runtime in milliseconds.
type IdentityBaseline struct{}

func (IdentityBaseline) Mode() BaselineMode { return BaselineIdentity }

func (IdentityBaseline) Predict(records []common.QueryRecord) ([]float64, error) {
	out := make([]float64, len(records))
	for i := range records {
		out[i] = records[i].Cost()
	}
	return out, nil
}

// LinearBaseline is a least-squares line through (estimated_cost, actual_runtime_ms).
type LinearBaseline struct {
	Model *model.LinearModel `json:"model"`
}

func NewLinearBaseline() *LinearBaseline {
	return &LinearBaseline{Model: model.NewLinearModel()}
}

func (b *LinearBaseline) Mode() BaselineMode { return BaselineLinear }

// Fit replaces any previous fit.
func (b *LinearBaseline) Fit(records []common.QueryRecord) error {
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	for i := range records {
		xs[i] = records[i].Cost()
		ys[i] = records[i].Runtime()
	}
	if b.Model == nil {
		b.Model = model.NewLinearModel()
	}
	if err := b.Model.Train(xs, ys); err != nil {
		return fmt.Errorf("fit linear baseline: %w", err)
	}
	return nil
}

func (b *LinearBaseline) Predict(records []common.QueryRecord) ([]float64, error) {
	if b.Model == nil || !b.Model.Trained() {
		return nil, ErrNotTrained
	}
	out := make([]float64, len(records))
	for i := range records {
		out[i] = b.Model.Predict(records[i].Cost())
	}
	return out, nil
}

// LoadBaseline returns the baseline for mode. Identity needs no artifact;
// linear is read from the baseline slot.
func LoadBaseline(ctx context.Context, store ArtifactStore, mode BaselineMode) (Baseline, error) {
	switch mode {
	case BaselineIdentity, "":
		return IdentityBaseline{}, nil
	case BaselineLinear:
		b := &LinearBaseline{}
		if _, err := store.Load(ctx, storage.SlotBaseline, b); err != nil {
			return nil, err
		}
		if b.Model == nil || !b.Model.Trained() {
			return nil, fmt.Errorf("load baseline: %w", ErrNotTrained)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown baseline mode %q", mode)
}
