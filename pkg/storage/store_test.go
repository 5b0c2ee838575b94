package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/model"
)

type fakeModel struct {
	Weights []float64 `json:"weights"`
	Name    string    `json:"name"`
}

func testKeys() config.KeysConfig {
	return config.KeysConfig{Baseline: "baseline_linreg", LCM: "lcm", Selector: "hybrid_selector"}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteBackend(filepath.Join(dir, "artifacts.db"))
	require.NoError(t, err)
	bdg, err := NewBadgerBackend("")
	require.NoError(t, err)

	m := map[string]Backend{
		"file":   file,
		"sqlite": sqlite,
		"badger": bdg,
		"memory": NewMemoryBackend(4),
	}
	t.Cleanup(func() {
		for _, b := range m {
			b.Close()
		}
	})
	return m
}

func TestModelStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		for _, comp := range []Compression{CompressionZstd, CompressionNone} {
			t.Run(name+"/"+string(comp), func(t *testing.T) {
				s := NewModelStore(b, testKeys(), comp)
				require.NoError(t, s.Delete(ctx, SlotLCM))

				want := fakeModel{Weights: []float64{0.1, 1.0 / 3.0, 123456.789}, Name: "forest"}
				res, err := s.Save(ctx, SlotLCM, want, true)
				require.NoError(t, err)
				assert.True(t, res.Saved)
				assert.NotEmpty(t, res.Info.RunID)
				assert.Equal(t, "lcm", res.Info.Key)

				var got fakeModel
				info, err := s.Load(ctx, SlotLCM, &got)
				require.NoError(t, err)
				assert.Equal(t, want, got)
				assert.Equal(t, res.Info.RunID, info.RunID)
			})
		}
	}
}

func TestModelStoreOverwriteFlag(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewModelStore(b, testKeys(), CompressionZstd)

			first, err := s.Save(ctx, SlotSelector, fakeModel{Name: "first"}, false)
			require.NoError(t, err)
			assert.True(t, first.Saved)

			skipped, err := s.Save(ctx, SlotSelector, fakeModel{Name: "second"}, false)
			require.NoError(t, err)
			assert.False(t, skipped.Saved)

			var got fakeModel
			_, err = s.Load(ctx, SlotSelector, &got)
			require.NoError(t, err)
			assert.Equal(t, "first", got.Name)

			replaced, err := s.Save(ctx, SlotSelector, fakeModel{Name: "third"}, true)
			require.NoError(t, err)
			assert.True(t, replaced.Saved)
			_, err = s.Load(ctx, SlotSelector, &got)
			require.NoError(t, err)
			assert.Equal(t, "third", got.Name)
		})
	}
}

func TestModelStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewModelStore(b, testKeys(), CompressionZstd)
			ok, err := s.Exists(ctx, SlotBaseline)
			require.NoError(t, err)
			assert.False(t, ok)

			var got fakeModel
			_, err = s.Load(ctx, SlotBaseline, &got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.True(t, errors.Is(err, os.ErrNotExist))

			assert.NoError(t, s.Delete(ctx, SlotBaseline))
		})
	}
}

func TestModelStoreKindMismatch(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(4)
	shared := config.KeysConfig{Baseline: "same", LCM: "same", Selector: "hybrid_selector"}
	s := NewModelStore(b, shared, CompressionNone)

	_, err := s.Save(ctx, SlotLCM, fakeModel{Name: "lcm"}, true)
	require.NoError(t, err)

	var got fakeModel
	_, err = s.Load(ctx, SlotBaseline, &got)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestOpenFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Store
	cfg.Path = filepath.Join(t.TempDir(), "models")

	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(ctx, SlotLCM, fakeModel{Name: "x"}, true)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Path, "lcm"+fileExt))
	assert.NoError(t, err)

	cfg.Backend = "tape"
	_, err = Open(ctx, cfg)
	assert.Error(t, err)
}

func TestMemoryBackendKeysOrdered(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(2)
	for _, k := range []string{"lcm", "baseline", "selector"} {
		require.NoError(t, b.Put(ctx, k, []byte(k)))
	}
	assert.Equal(t, []string{"baseline", "lcm", "selector"}, b.Keys())
	assert.Equal(t, len("lcm")+len("baseline")+len("selector"), b.Size())

	require.NoError(t, b.Put(ctx, "lcm", []byte("x")))
	assert.Equal(t, 1+len("baseline")+len("selector"), b.Size())
}

func TestForestSurvivesStore(t *testing.T) {
	ctx := context.Background()
	xs := []common.FeatureVector{{1, 10, 100}, {2, 50, 80}, {3, 400, 20}, {0, 5, 1}, {4, 900, 3000}, {2, 70, 60}}
	ys := []float64{1.5, 4, 30, 0.2, 120, 6}

	f := model.NewForest(model.ForestParams{NumTrees: 15, Seed: 7})
	require.NoError(t, f.Fit(xs, ys))

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewModelStore(b, testKeys(), CompressionZstd)
			_, err := s.Save(ctx, SlotLCM, f, true)
			require.NoError(t, err)

			var loaded model.Forest
			_, err = s.Load(ctx, SlotLCM, &loaded)
			require.NoError(t, err)
			require.Len(t, loaded.Trees, 15)
			for _, x := range append(xs, common.FeatureVector{2.5, 123.4, 77}) {
				assert.Equal(t, f.Predict(x), loaded.Predict(x))
			}
		})
	}
}
