package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/dataset"
	"neurocost/pkg/estimator"
	"neurocost/pkg/features"
	"neurocost/pkg/logger"
	"neurocost/pkg/monitor"
	"neurocost/pkg/optimizer"
	"neurocost/pkg/storage"
)

func main() {
	metrics := flag.String("metrics", "", "Metrics CSV to train on (default: synthetic workload)")
	nRows := flag.Int("rows", 2000, "Synthetic workload size when -metrics is empty")
	nTrees := flag.Int("trees", 100, "Number of trees in the LCM")
	nReq := flag.Int("n", 5000, "Number of predictions per run")
	flag.Parse()

	records, err := loadWorkload(*metrics, *nRows)
	if err != nil {
		log.Fatalf("Load workload failed: %v", err)
	}

	fmt.Printf("neurocost Estimator Benchmark (rows=%d, trees=%d, N=%d)\n", len(records), *nTrees, *nReq)
	fmt.Println("---------------------------------------------------")

	ctx := context.Background()
	store := storage.NewModelStore(storage.NewMemoryBackend(16), config.Default().Store.Keys, storage.CompressionZstd)
	defer store.Close()

	opts := estimator.HybridOptions{
		Mode:               estimator.BaselineIdentity,
		ValidationFraction: 0.3,
		MaxDepth:           4,
		Seed:               42,
		LCM:                estimator.DefaultLCMOptions(),
	}
	opts.LCM.NumTrees = *nTrees

	fmt.Println(">> Training hybrid (LCM forest + selector)...")
	start := time.Now()
	res, err := estimator.TrainHybrid(ctx, records, opts, store, logger.NoopLogger())
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Printf("   Train Time: %v | LCM wins on %d/%d validation rows\n\n", time.Since(start), res.LCMWins, res.ValidationRows)

	h := res.Hybrid
	queries := make([]common.QueryRecord, *nReq)
	for i := range queries {
		queries[i] = records[i%len(records)]
	}

	fmt.Println(">> Starting LCM Benchmark (forest only)...")
	lcmDuration := runLCMBenchmark(h.LCM, queries)
	fmt.Printf("   LCM    Time: %v | QPS: %.0f\n\n", lcmDuration, float64(*nReq)/lcmDuration.Seconds())

	fmt.Println(">> Starting Hybrid Benchmark (selector dispatch)...")
	dispatch := monitor.NewPlanStats()
	hybridDuration := runHybridBenchmark(h, queries, dispatch)
	fmt.Printf("   Hybrid Time: %v | QPS: %.0f\n\n", hybridDuration, float64(*nReq)/hybridDuration.Seconds())

	fmt.Println(">> Starting Plan Choice Benchmark (synthesize + score 3 candidates)...")
	scorer := optimizer.NewScorer(h.LCM, nil)
	planDuration := runPlanBenchmark(scorer, queries)
	fmt.Printf("   Plans  Time: %v | QPS: %.0f\n", planDuration, float64(*nReq)/planDuration.Seconds())

	fmt.Println("---------------------------------------------------")
	fmt.Printf("   Skipped candidates: %.1f%%\n", 100*scorer.Stats().SkipRatio())
	fmt.Printf("Conclusion: hybrid dispatch costs %.2fx a plain LCM prediction; LCM share %.1f%%\n",
		hybridDuration.Seconds()/lcmDuration.Seconds(), 100*dispatch.LCMShare())
}

func loadWorkload(path string, n int) ([]common.QueryRecord, error) {
	if path != "" {
		return dataset.LoadCSV(path)
	}
	rng := rand.New(rand.NewPCG(7, 7))
	records := make([]common.QueryRecord, n)
	for i := range records {
		joins := float64(rng.IntN(6))
		cost := 100 + rng.Float64()*1e5
		rows := 1 + rng.Float64()*1e6
		runtime := 0.002*cost + 3*joins*joins + rng.NormFloat64()
		records[i] = common.QueryRecord{
			QueryName:       fmt.Sprintf("q%d.sql", i),
			Category:        common.Categories[i%len(common.Categories)],
			JoinCount:       common.Some(joins),
			EstimatedCost:   common.Some(cost),
			EstimatedRows:   common.Some(rows),
			ActualRuntimeMs: common.Some(max(runtime, 0)),
		}
	}
	return records, nil
}

func runLCMBenchmark(m *estimator.LCM, queries []common.QueryRecord) time.Duration {
	start := time.Now()
	for i := range queries {
		if _, err := m.PredictOne(features.ExtractOne(&queries[i])); err != nil {
			log.Fatalf("LCM predict failed: %v", err)
		}
	}
	return time.Since(start)
}

func runHybridBenchmark(h *estimator.Hybrid, queries []common.QueryRecord, stats *monitor.PlanStats) time.Duration {
	start := time.Now()
	for i := range queries {
		preds, err := h.Predict(queries[i : i+1])
		if err != nil {
			log.Fatalf("Hybrid predict failed: %v", err)
		}
		stats.RecordDispatch(preds[0].UseLCM)
	}
	return time.Since(start)
}

func runPlanBenchmark(s *optimizer.Scorer, queries []common.QueryRecord) time.Duration {
	start := time.Now()
	for i := range queries {
		_, _ = s.ChooseBest(optimizer.Synthesize(&queries[i]))
	}
	return time.Since(start)
}

