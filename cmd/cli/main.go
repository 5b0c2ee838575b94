package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/estimator"
	"neurocost/pkg/logger"
	"neurocost/pkg/optimizer"
	"neurocost/pkg/pipeline"
	"neurocost/pkg/report"
	"neurocost/pkg/storage"
)

const Prompt = "neurocost> "

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: configs/neurocost.yaml or neurocost.yaml)")
	overwrite := flag.Bool("overwrite", false, "Retrain the LCM even if an artifact exists")
	baselineMode := flag.String("baseline", "", "Baseline mode override: identity | linear")
	backend := flag.String("store", "", "Store backend override: file | sqlite | badger | minio | memory")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *overwrite {
		cfg.LCM.Overwrite = true
	}
	if *baselineMode != "" {
		cfg.Hybrid.BaselineMode = *baselineMode
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}

	log, err := logger.FromConfig(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		log.Error("open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	p := pipeline.New(cfg, store, log)
	if err := run(ctx, flag.Arg(0), cfg, store, p); err != nil {
		log.Error("command failed", "command", flag.Arg(0), "error", err)
		store.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, cfg *config.Config, store *storage.ModelStore, p *pipeline.Pipeline) error {
	if cmd == "shell" {
		return shell(ctx, cfg, store)
	}

	records, err := p.LoadRecords()
	if err != nil {
		return err
	}

	switch cmd {
	case "train-lcm":
		res, err := p.TrainLCM(ctx, records)
		if err != nil {
			return err
		}
		if res.Trained {
			fmt.Printf("LCM trained on %d rows: validation MAE %.3f ms (saved=%v)\n", res.TrainRows, res.ValidationMAE, res.Saved)
		} else {
			fmt.Printf("LCM artifact %q exists (run %s); training skipped\n", res.Info.Key, res.Info.RunID)
		}
	case "train-hybrid":
		res, err := p.TrainHybrid(ctx, records)
		if err != nil {
			return err
		}
		fmt.Printf("Selector trained on %d validation rows (LCM better on %d); lcm fallback=%v baseline trained=%v\n",
			res.ValidationRows, res.LCMWins, res.LCMFallback, res.BaselineTrained)
	case "eval":
		ev, err := p.Evaluate(ctx, records)
		if err != nil {
			return err
		}
		printEvaluation(ev)
	case "plans":
		rep, err := p.GeneratePlans(ctx, records)
		if err != nil {
			return err
		}
		printPlans(rep)
	case "report":
		rep, err := p.BuildReport(ctx, records)
		if err != nil {
			return err
		}
		return report.WriteText(os.Stdout, rep.Summary)
	case "all":
		res, err := p.RunAll(ctx, records)
		if err != nil {
			return err
		}
		printEvaluation(res.Evaluation)
		printPlans(res.Plans)
		return report.WriteText(os.Stdout, res.Report.Summary)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printEvaluation(ev *pipeline.Evaluation) {
	fmt.Printf("Held-out evaluation (%d train / %d test rows, %v)\n", ev.TrainRows, ev.TestRows, ev.Took.Round(time.Millisecond))
	for _, m := range ev.Metrics {
		fmt.Printf("  %-8s MAE: %.3f ms, RMSE: %.3f ms\n", m.Name, m.MAE, m.RMSE)
	}
}

func printPlans(rep *optimizer.BatchReport) {
	fmt.Printf("Plans: %d queries, %d chosen, %d without a scorable candidate, %d predicted faster than baseline\n",
		rep.Queries, rep.Chosen, rep.NoChoice, rep.FasterThanBaseline)
	fmt.Printf("Variant SQL: %d written, %d failed\n", rep.SQLWritten, rep.SQLFailed)
	for _, s := range rep.Skipped {
		fmt.Printf("  skipped %s/%s: %s\n", s.Query, s.Tag, s.Reason)
	}
}

// shell is an interactive prompt over the persisted models.
func shell(ctx context.Context, cfg *config.Config, store *storage.ModelStore) error {
	mode, err := estimator.ParseBaselineMode(cfg.Hybrid.BaselineMode)
	if err != nil {
		return err
	}
	h, err := estimator.LoadHybrid(ctx, store, mode)
	if err != nil {
		fmt.Printf("Hybrid not available: %v\n", err)
		fmt.Println("Tip: train first (e.g. neurocost all).")
		return err
	}
	scorer := optimizer.NewScorer(h.LCM, nil)
	fmt.Printf("neurocost shell (store=%s, baseline=%s). Type 'help' for commands.\n", cfg.Store.Backend, mode)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "predict":
			handlePredict(h, parts)
		case "score":
			handleScore(scorer, parts)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
	return scanner.Err()
}

func parseRecord(parts []string) (common.QueryRecord, error) {
	if len(parts) < 4 {
		return common.QueryRecord{}, fmt.Errorf("need <join_count> <estimated_cost> <estimated_rows>")
	}
	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return common.QueryRecord{}, fmt.Errorf("%s must be a number", common.FeatureNames[i])
		}
		vals[i] = v
	}
	return common.QueryRecord{
		QueryName:     "shell",
		JoinCount:     common.Some(vals[0]),
		EstimatedCost: common.Some(vals[1]),
		EstimatedRows: common.Some(vals[2]),
	}, nil
}

func handlePredict(h *estimator.Hybrid, parts []string) {
	rec, err := parseRecord(parts)
	if err != nil {
		fmt.Printf("Usage: predict <joins> <cost> <rows> (%v)\n", err)
		return
	}
	start := time.Now()
	preds, err := h.Predict([]common.QueryRecord{rec})
	duration := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	p := preds[0]
	picked := report.ModelBaseline
	if p.UseLCM {
		picked = report.ModelLCM
	}
	fmt.Printf("%.3f ms via %s (baseline %.3f, lcm %.3f) (%v)\n", p.Value, picked, p.Baseline, p.LCM, duration)
}

func handleScore(s *optimizer.Scorer, parts []string) {
	rec, err := parseRecord(parts)
	if err != nil {
		fmt.Printf("Usage: score <joins> <cost> <rows> (%v)\n", err)
		return
	}
	choice, outcomes := s.ChooseBest(optimizer.Synthesize(&rec))
	for _, o := range outcomes {
		if o.Scored {
			fmt.Printf("  %-18s %.3f ms\n", o.Tag, o.PredictedMs)
		} else {
			fmt.Printf("  %-18s skipped: %s\n", o.Tag, o.Reason())
		}
	}
	if choice.Found {
		fmt.Printf("Chosen: %s (%.3f ms)\n", choice.Plan.Tag, choice.PredictedMs)
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  predict <joins> <cost> <rows>   Hybrid runtime prediction
  score <joins> <cost> <rows>     Rank synthesized plan variants with the LCM
  exit                            Exit shell
	`)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: neurocost [flags] <command>

Commands:
  train-lcm      Train (or reuse) the learned cost model
  train-hybrid   Train the hybrid selector
  eval           Held-out evaluation of baseline, LCM and hybrid
  plans          Choose plans for every query and write the choice logs
  report         Write the comparison CSV and HTML report
  all            eval, plans and report in sequence
  shell          Interactive predictions from persisted models

Flags:
`)
	flag.PrintDefaults()
}
