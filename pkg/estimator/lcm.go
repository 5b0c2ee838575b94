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

// LCM is the learned cost model: a bagged regression forest over the
// three plan features, predicting actual runtime in milliseconds.
type LCM struct {
	Forest *model.Forest `json:"forest"`
}

// Predict returns one runtime per feature row.
func (m *LCM) Predict(xs []common.FeatureVector) ([]float64, error) {
	if m == nil || m.Forest == nil || !m.Forest.Fitted() {
		return nil, ErrModelNotFound
	}
	return m.Forest.PredictBatch(xs), nil
}

// PredictRecords extracts features and predicts.
func (m *LCM) PredictRecords(records []common.QueryRecord) ([]float64, error) {
	return m.Predict(features.Extract(records))
}

// PredictOne scores a single feature vector.
func (m *LCM) PredictOne(x common.FeatureVector) (float64, error) {
	if m == nil || m.Forest == nil || !m.Forest.Fitted() {
		return 0, ErrModelNotFound
	}
	return m.Forest.Predict(x), nil
}

type LCMOptions struct {
	NumTrees           int
	MaxDepth           int
	MinSamplesLeaf     int
	ValidationFraction float64
	Seed               uint64
	Overwrite          bool
}

func DefaultLCMOptions() LCMOptions {
	return LCMOptionsFromConfig(config.Default().LCM)
}

func LCMOptionsFromConfig(c config.LCMConfig) LCMOptions {
	return LCMOptions{
		NumTrees:           c.NumTrees,
		MaxDepth:           c.MaxDepth,
		MinSamplesLeaf:     c.MinSamplesLeaf,
		ValidationFraction: c.ValidationFraction,
		Seed:               c.Seed,
		Overwrite:          c.Overwrite,
	}
}

// TrainResult describes one TrainLCM call.
type TrainResult struct {
	Model *LCM
	// Trained is false when an existing artifact was reused.
	Trained bool
	// ValidationMAE is NaN when training was skipped.
	ValidationMAE float64
	TrainRows     int
	Saved         bool
	Info          storage.ArtifactInfo
}

// TrainLCM fits a forest on a seeded split of records and persists it.
//
// With Overwrite false and an artifact already present, nothing is trained:
// the persisted model is loaded and returned so repeated runs predict
// identically.
func TrainLCM(ctx context.Context, records []common.QueryRecord, opts LCMOptions, store ArtifactStore, log *logger.Logger) (*TrainResult, error) {
	log = log.Or()

	if !opts.Overwrite {
		exists, err := store.Exists(ctx, storage.SlotLCM)
		if err != nil {
			return nil, fmt.Errorf("check lcm artifact: %w", err)
		}
		if exists {
			m, info, err := loadLCM(ctx, store)
			if err != nil {
				return nil, err
			}
			log.LogSkip(ctx, "lcm", info.Key)
			return &TrainResult{Model: m, ValidationMAE: math.NaN(), Info: info}, nil
		}
	}

	frac := opts.ValidationFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.2
	}
	train, val, err := dataset.SplitRecords(records, frac, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("split lcm data: %w", err)
	}

	start := time.Now()
	forest := model.NewForest(model.ForestParams{
		NumTrees: opts.NumTrees,
		Seed:     opts.Seed,
		Tree: model.TreeParams{
			MaxDepth:       opts.MaxDepth,
			MinSamplesLeaf: opts.MinSamplesLeaf,
		},
	})
	if err := forest.Fit(features.Extract(train), features.Targets(train)); err != nil {
		log.LogTraining(ctx, "lcm", len(train), 0, time.Since(start), err)
		return nil, fmt.Errorf("fit lcm: %w", err)
	}
	m := &LCM{Forest: forest}

	preds, _ := m.PredictRecords(val)
	mae := model.MAE(features.Targets(val), preds)
	log.LogTraining(ctx, "lcm", len(train), mae, time.Since(start), nil)

	res, err := store.Save(ctx, storage.SlotLCM, m, opts.Overwrite)
	log.LogArtifact(ctx, string(storage.SlotLCM), res.Info.Key, res.Info.RunID, res.Saved, err)
	if err != nil {
		return nil, err
	}
	return &TrainResult{
		Model:         m,
		Trained:       true,
		ValidationMAE: mae,
		TrainRows:     len(train),
		Saved:         res.Saved,
		Info:          res.Info,
	}, nil
}

// LoadLCM reads the persisted model. A missing artifact yields an error
// satisfying errors.Is(err, storage.ErrNotFound).
func LoadLCM(ctx context.Context, store ArtifactStore) (*LCM, error) {
	m, _, err := loadLCM(ctx, store)
	return m, err
}

func loadLCM(ctx context.Context, store ArtifactStore) (*LCM, storage.ArtifactInfo, error) {
	m := &LCM{}
	info, err := store.Load(ctx, storage.SlotLCM, m)
	if err != nil {
		return nil, info, err
	}
	if m.Forest == nil || !m.Forest.Fitted() {
		return nil, info, fmt.Errorf("load lcm: %w", ErrModelNotFound)
	}
	return m, info, nil
}

// ensureLCM loads the persisted LCM, training one from records when absent.
func ensureLCM(ctx context.Context, records []common.QueryRecord, opts LCMOptions, store ArtifactStore, log *logger.Logger) (*LCM, bool, error) {
	m, err := LoadLCM(ctx, store)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	log.LogFallback(ctx, "lcm", err.Error())
	opts.Overwrite = true
	res, err := TrainLCM(ctx, records, opts, store, log)
	if err != nil {
		return nil, false, fmt.Errorf("fallback lcm training: %w", err)
	}
	return res.Model, true, nil
}
