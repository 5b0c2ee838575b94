package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/dataset"
	"neurocost/pkg/features"
	"neurocost/pkg/logger"
	"neurocost/pkg/model"
	"neurocost/pkg/storage"
)

// SelectorLabels marks rows where the LCM is strictly closer to the actual
// runtime than the baseline. Equal errors label 0.
func SelectorLabels(baseline, lcm, actual []float64) []int {
	labels := make([]int, len(actual))
	for i := range actual {
		if math.Abs(lcm[i]-actual[i]) < math.Abs(baseline[i]-actual[i]) {
			labels[i] = 1
		}
	}
	return labels
}

type HybridOptions struct {
	Mode               BaselineMode
	ValidationFraction float64
	MaxDepth           int
	Seed               uint64
	// PersistBaseline saves a freshly fitted linear baseline.
	PersistBaseline bool
	// LCM configures the fallback model trained when none is persisted.
	LCM LCMOptions
}

func HybridOptionsFromConfig(cfg *config.Config) (HybridOptions, error) {
	mode, err := ParseBaselineMode(cfg.Hybrid.BaselineMode)
	if err != nil {
		return HybridOptions{}, err
	}
	return HybridOptions{
		Mode:               mode,
		ValidationFraction: cfg.Hybrid.ValidationFraction,
		MaxDepth:           cfg.Hybrid.MaxDepth,
		Seed:               cfg.Hybrid.Seed,
		PersistBaseline:    cfg.Hybrid.PersistBaseline,
		LCM:                LCMOptionsFromConfig(cfg.LCM),
	}, nil
}

// Hybrid routes each row to the baseline or the LCM using a learned selector.
type Hybrid struct {
	Baseline Baseline
	LCM      *LCM
	Selector *model.DecisionTreeClassifier
}

// Prediction is the per-row outcome of hybrid inference. Value is exactly
// LCM when UseLCM is set, otherwise exactly Baseline.
type Prediction struct {
	Baseline float64
	LCM      float64
	UseLCM   bool
	Value    float64
}

func (h *Hybrid) Predict(records []common.QueryRecord) ([]Prediction, error) {
	if h.Selector == nil || len(h.Selector.Nodes) == 0 {
		return nil, fmt.Errorf("%w: selector missing", ErrHybridComponentsNotFound)
	}
	if h.Baseline == nil {
		return nil, fmt.Errorf("%w: baseline missing", ErrHybridComponentsNotFound)
	}
	base, err := h.Baseline.Predict(records)
	if err != nil {
		return nil, err
	}
	xs := features.Extract(records)
	lcm, err := h.LCM.Predict(xs)
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, len(records))
	for i, x := range xs {
		p := Prediction{Baseline: base[i], LCM: lcm[i], Value: base[i]}
		if h.Selector.Predict(x) == 1 {
			p.UseLCM = true
			p.Value = lcm[i]
		}
		out[i] = p
	}
	return out, nil
}

// Values returns only the dispatched predictions.
func Values(preds []Prediction) []float64 {
	out := make([]float64, len(preds))
	for i, p := range preds {
		out[i] = p.Value
	}
	return out
}

// HybridTrainResult describes one TrainHybrid call.
type HybridTrainResult struct {
	Hybrid *Hybrid
	// LCMFallback is set when no LCM was persisted and one was trained here.
	LCMFallback     bool
	BaselineTrained bool
	ValidationRows  int
	// LCMWins counts validation rows labeled 1.
	LCMWins      int
	SelectorInfo storage.ArtifactInfo
}

// TrainHybrid learns which estimator to trust per row.
//
// Records are split with opts.ValidationFraction held out. The baseline is
// fitted on the training part (linear mode only, unless already persisted),
// both estimators predict the held-out part, and the selector is fitted on
// those rows against SelectorLabels. The selector slot is always overwritten.
func TrainHybrid(ctx context.Context, records []common.QueryRecord, opts HybridOptions, store ArtifactStore, log *logger.Logger) (*HybridTrainResult, error) {
	log = log.Or()

	frac := opts.ValidationFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.3
	}
	train, val, err := dataset.SplitRecords(records, frac, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("split hybrid data: %w", err)
	}

	baseline, baselineTrained, err := ensureBaseline(ctx, train, opts, store, log)
	if err != nil {
		return nil, err
	}
	lcm, fallback, err := ensureLCM(ctx, records, opts.LCM, store, log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	basePred, err := baseline.Predict(val)
	if err != nil {
		return nil, err
	}
	xs := features.Extract(val)
	lcmPred, err := lcm.Predict(xs)
	if err != nil {
		return nil, err
	}
	labels := SelectorLabels(basePred, lcmPred, features.Targets(val))

	selector := model.NewDecisionTreeClassifier(model.TreeParams{MaxDepth: opts.MaxDepth})
	if err := selector.Fit(xs, labels); err != nil {
		log.LogTraining(ctx, "selector", len(val), 0, time.Since(start), err)
		return nil, fmt.Errorf("fit selector: %w", err)
	}

	wins := 0
	for _, l := range labels {
		wins += l
	}
	h := &Hybrid{Baseline: baseline, LCM: lcm, Selector: selector}
	log.LogTraining(ctx, "selector", len(val), model.MAE(features.Targets(val), dispatch(h, xs, basePred, lcmPred)), time.Since(start), nil)

	res, err := store.Save(ctx, storage.SlotSelector, selector, true)
	log.LogArtifact(ctx, string(storage.SlotSelector), res.Info.Key, res.Info.RunID, res.Saved, err)
	if err != nil {
		return nil, err
	}
	return &HybridTrainResult{
		Hybrid:          h,
		LCMFallback:     fallback,
		BaselineTrained: baselineTrained,
		ValidationRows:  len(val),
		LCMWins:         wins,
		SelectorInfo:    res.Info,
	}, nil
}

func dispatch(h *Hybrid, xs []common.FeatureVector, base, lcm []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if h.Selector.Predict(x) == 1 {
			out[i] = lcm[i]
		} else {
			out[i] = base[i]
		}
	}
	return out
}

func ensureBaseline(ctx context.Context, train []common.QueryRecord, opts HybridOptions, store ArtifactStore, log *logger.Logger) (Baseline, bool, error) {
	if opts.Mode != BaselineLinear {
		return IdentityBaseline{}, false, nil
	}
	b, err := LoadBaseline(ctx, store, BaselineLinear)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	start := time.Now()
	lb := NewLinearBaseline()
	if err := lb.Fit(train); err != nil {
		log.LogTraining(ctx, "baseline", len(train), 0, time.Since(start), err)
		return nil, false, err
	}
	pred, _ := lb.Predict(train)
	log.LogTraining(ctx, "baseline", len(train), model.MAE(features.Targets(train), pred), time.Since(start), nil)

	if opts.PersistBaseline {
		res, err := store.Save(ctx, storage.SlotBaseline, lb, true)
		log.LogArtifact(ctx, string(storage.SlotBaseline), res.Info.Key, res.Info.RunID, res.Saved, err)
		if err != nil {
			return nil, false, err
		}
	}
	return lb, true, nil
}

// LoadHybrid assembles a Hybrid from persisted artifacts. Any missing
// component yields ErrHybridComponentsNotFound wrapping the cause.
func LoadHybrid(ctx context.Context, store ArtifactStore, mode BaselineMode) (*Hybrid, error) {
	selector := &model.DecisionTreeClassifier{}
	if _, err := store.Load(ctx, storage.SlotSelector, selector); err != nil {
		return nil, fmt.Errorf("%w: selector: %w", ErrHybridComponentsNotFound, err)
	}
	if len(selector.Nodes) == 0 {
		return nil, fmt.Errorf("%w: selector is empty", ErrHybridComponentsNotFound)
	}
	lcm, err := LoadLCM(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("%w: lcm: %w", ErrHybridComponentsNotFound, err)
	}
	baseline, err := LoadBaseline(ctx, store, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: baseline: %w", ErrHybridComponentsNotFound, err)
	}
	return &Hybrid{Baseline: baseline, LCM: lcm, Selector: selector}, nil
}
