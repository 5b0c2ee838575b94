package estimator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/features"
	"neurocost/pkg/logger"
	"neurocost/pkg/model"
	"neurocost/pkg/storage"
)

func newStore() *storage.ModelStore {
	return storage.NewModelStore(storage.NewMemoryBackend(4), config.Default().Store.Keys, storage.CompressionZstd)
}

// workload builds n records whose runtime depends on joins and cost in a way
// the raw cost estimate does not capture.
func workload(n int) []common.QueryRecord {
	out := make([]common.QueryRecord, n)
	for i := range out {
		joins := float64(i % 5)
		cost := float64(10 + (i*37)%400)
		rows := float64(1 + (i*13)%900)
		runtime := 0.05*cost + 12*joins*joins + 0.001*rows
		out[i] = common.QueryRecord{
			QueryName:       "q" + string(rune('a'+i%26)) + ".sql",
			Category:        common.Categories[i%3],
			JoinCount:       common.Some(joins),
			EstimatedCost:   common.Some(cost),
			EstimatedRows:   common.Some(rows),
			ActualRuntimeMs: common.Some(runtime),
		}
	}
	return out
}

func smallLCM() LCMOptions {
	opts := DefaultLCMOptions()
	opts.NumTrees = 10
	return opts
}

func TestIdentityBaselinePassesCostThrough(t *testing.T) {
	records := []common.QueryRecord{
		{EstimatedCost: common.Some(10)},
		{EstimatedCost: common.Some(20)},
		{EstimatedCost: common.Some(30)},
	}
	got, err := IdentityBaseline{}.Predict(records)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, got)
}

func TestLinearBaseline(t *testing.T) {
	lb := NewLinearBaseline()
	_, err := lb.Predict([]common.QueryRecord{{}})
	assert.ErrorIs(t, err, ErrNotTrained)

	records := []common.QueryRecord{
		{EstimatedCost: common.Some(1), ActualRuntimeMs: common.Some(3)},
		{EstimatedCost: common.Some(2), ActualRuntimeMs: common.Some(5)},
		{EstimatedCost: common.Some(3), ActualRuntimeMs: common.Some(7)},
	}
	require.NoError(t, lb.Fit(records))
	got, err := lb.Predict([]common.QueryRecord{{EstimatedCost: common.Some(10)}})
	require.NoError(t, err)
	assert.InDelta(t, 21.0, got[0], 1e-9)
}

func TestParseBaselineMode(t *testing.T) {
	m, err := ParseBaselineMode("Linear")
	require.NoError(t, err)
	assert.Equal(t, BaselineLinear, m)
	m, err = ParseBaselineMode("")
	require.NoError(t, err)
	assert.Equal(t, BaselineIdentity, m)
	_, err = ParseBaselineMode("quadratic")
	assert.Error(t, err)
}

func TestSelectorLabelsTiesFavorBaseline(t *testing.T) {
	actual := []float64{10, 10, 10, 10}
	base := []float64{12, 8, 15, 10}
	lcm := []float64{11, 12, 5, 10}
	assert.Equal(t, []int{1, 0, 0, 0}, SelectorLabels(base, lcm, actual))
}

func TestLCMUnfitted(t *testing.T) {
	var m *LCM
	_, err := m.Predict([]common.FeatureVector{{}})
	assert.ErrorIs(t, err, ErrModelNotFound)
	_, err = (&LCM{Forest: model.NewForest(model.ForestParams{})}).PredictOne(common.FeatureVector{})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestTrainLCMIdempotentWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	records := workload(60)

	first, err := TrainLCM(ctx, records, smallLCM(), store, logger.NoopLogger())
	require.NoError(t, err)
	assert.True(t, first.Trained)
	assert.True(t, first.Saved)
	assert.Equal(t, 48, first.TrainRows)
	assert.False(t, math.IsNaN(first.ValidationMAE))

	opts := smallLCM()
	opts.Seed = 99
	second, err := TrainLCM(ctx, records, opts, store, nil)
	require.NoError(t, err)
	assert.False(t, second.Trained)
	assert.True(t, math.IsNaN(second.ValidationMAE))
	assert.Equal(t, first.Info.RunID, second.Info.RunID)

	xs := features.Extract(records)
	p1, err := first.Model.Predict(xs)
	require.NoError(t, err)
	p2, err := second.Model.Predict(xs)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	opts.Overwrite = true
	third, err := TrainLCM(ctx, records, opts, store, nil)
	require.NoError(t, err)
	assert.True(t, third.Trained)
	assert.NotEqual(t, first.Info.RunID, third.Info.RunID)
}

func TestTrainLCMDeterministic(t *testing.T) {
	ctx := context.Background()
	records := workload(40)
	a, err := TrainLCM(ctx, records, smallLCM(), newStore(), nil)
	require.NoError(t, err)
	b, err := TrainLCM(ctx, records, smallLCM(), newStore(), nil)
	require.NoError(t, err)

	xs := features.Extract(records)
	pa, _ := a.Model.Predict(xs)
	pb, _ := b.Model.Predict(xs)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.ValidationMAE, b.ValidationMAE)
}

func TestTrainLCMTooFewRows(t *testing.T) {
	_, err := TrainLCM(context.Background(), workload(1), smallLCM(), newStore(), nil)
	assert.Error(t, err)
}

func TestLoadLCMMissing(t *testing.T) {
	_, err := LoadLCM(context.Background(), newStore())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, IsNotFound(err))
}

func TestHybridDispatchIsExact(t *testing.T) {
	// Selector: join_count <= 1.5 -> baseline, otherwise LCM.
	selector := &model.DecisionTreeClassifier{Tree: model.Tree{
		Criterion: model.Gini,
		Nodes: []model.Node{
			{Feature: 0, Threshold: 1.5, Left: 1, Right: 2},
			{Feature: -1, Value: 0},
			{Feature: -1, Value: 1},
		},
	}}
	forest := &model.Forest{Trees: []*model.Tree{
		{Nodes: []model.Node{{Feature: -1, Value: 7.123456789}}},
		{Nodes: []model.Node{{Feature: -1, Value: 1.1}}},
	}}
	h := &Hybrid{Baseline: IdentityBaseline{}, LCM: &LCM{Forest: forest}, Selector: selector}

	records := []common.QueryRecord{
		{JoinCount: common.Some(3), EstimatedCost: common.Some(500)},
		{JoinCount: common.Some(0), EstimatedCost: common.Some(42.5)},
	}
	preds, err := h.Predict(records)
	require.NoError(t, err)

	want := forest.Predict(features.ExtractOne(&records[0]))
	assert.True(t, preds[0].UseLCM)
	assert.Equal(t, math.Float64bits(want), math.Float64bits(preds[0].Value))
	assert.Equal(t, preds[0].LCM, preds[0].Value)

	assert.False(t, preds[1].UseLCM)
	assert.Equal(t, 42.5, preds[1].Value)
	assert.Equal(t, []float64{want, 42.5}, Values(preds))
}

func TestTrainHybridFallsBackToLCMTraining(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	records := workload(60)

	opts := HybridOptions{Mode: BaselineIdentity, ValidationFraction: 0.3, MaxDepth: 4, Seed: 42, LCM: smallLCM()}
	res, err := TrainHybrid(ctx, records, opts, store, logger.NoopLogger())
	require.NoError(t, err)
	assert.True(t, res.LCMFallback)
	assert.False(t, res.BaselineTrained)
	assert.Equal(t, 18, res.ValidationRows)
	assert.LessOrEqual(t, res.Hybrid.Selector.Depth(), 4)

	ok, err := store.Exists(ctx, storage.SlotLCM)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists(ctx, storage.SlotBaseline)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := LoadHybrid(ctx, store, BaselineIdentity)
	require.NoError(t, err)
	want, err := res.Hybrid.Predict(records)
	require.NoError(t, err)
	got, err := loaded.Predict(records)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, err := TrainHybrid(ctx, records, opts, store, nil)
	require.NoError(t, err)
	assert.False(t, again.LCMFallback)
}

func TestTrainHybridLinearPersistsBaseline(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	records := workload(50)

	opts := HybridOptions{Mode: BaselineLinear, ValidationFraction: 0.3, MaxDepth: 4, Seed: 42, PersistBaseline: true, LCM: smallLCM()}
	res, err := TrainHybrid(ctx, records, opts, store, nil)
	require.NoError(t, err)
	assert.True(t, res.BaselineTrained)
	assert.Equal(t, BaselineLinear, res.Hybrid.Baseline.Mode())

	second, err := TrainHybrid(ctx, records, opts, store, nil)
	require.NoError(t, err)
	assert.False(t, second.BaselineTrained)

	loaded, err := LoadHybrid(ctx, store, BaselineLinear)
	require.NoError(t, err)

	want, err := res.Hybrid.Baseline.Predict(records)
	require.NoError(t, err)
	got, err := loaded.Baseline.Predict(records)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, math.Float64bits(want[i]), math.Float64bits(got[i]), "row %d", i)
	}
}

func TestHybridPredictMissingParts(t *testing.T) {
	ctx := context.Background()
	res, err := TrainHybrid(ctx, workload(40), HybridOptions{Mode: BaselineIdentity, MaxDepth: 4, Seed: 42, LCM: smallLCM()}, newStore(), nil)
	require.NoError(t, err)

	noBaseline := *res.Hybrid
	noBaseline.Baseline = nil
	assert.NotPanics(t, func() {
		_, err = noBaseline.Predict(workload(3))
	})
	assert.ErrorIs(t, err, ErrHybridComponentsNotFound)

	noSelector := *res.Hybrid
	noSelector.Selector = nil
	_, err = noSelector.Predict(workload(3))
	assert.ErrorIs(t, err, ErrHybridComponentsNotFound)
}

func TestLoadHybridMissingComponents(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	_, err := LoadHybrid(ctx, store, BaselineIdentity)
	assert.ErrorIs(t, err, ErrHybridComponentsNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = TrainLCM(ctx, workload(30), smallLCM(), store, nil)
	require.NoError(t, err)
	_, err = LoadHybrid(ctx, store, BaselineIdentity)
	assert.ErrorIs(t, err, ErrHybridComponentsNotFound)

	_, err = TrainHybrid(ctx, workload(30), HybridOptions{Mode: BaselineIdentity, MaxDepth: 4, Seed: 1, LCM: smallLCM()}, store, nil)
	require.NoError(t, err)
	_, err = LoadHybrid(ctx, store, BaselineLinear)
	assert.ErrorIs(t, err, ErrHybridComponentsNotFound)
	_, err = LoadHybrid(ctx, store, BaselineIdentity)
	assert.NoError(t, err)
}

func TestHybridOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Hybrid.BaselineMode = "linear"
	opts, err := HybridOptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, BaselineLinear, opts.Mode)
	assert.Equal(t, 100, opts.LCM.NumTrees)

	cfg.Hybrid.BaselineMode = "cubic"
	_, err = HybridOptionsFromConfig(cfg)
	assert.Error(t, err)
}
