package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"neurocost/pkg/collector"
	"neurocost/pkg/config"
	"neurocost/pkg/dataset"
	"neurocost/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides collector.dsn, falls back to $NEUROCOST_PG_DSN)")
	queryDir := flag.String("queries", "", "Root directory with small/, medium/ and large/ query folders")
	out := flag.String("out", "", "Output metrics CSV (default: data.metrics_csv)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dsn != "" {
		cfg.Collector.DSN = *dsn
	}
	if cfg.Collector.DSN == "" {
		cfg.Collector.DSN = os.Getenv("NEUROCOST_PG_DSN")
	}
	if *queryDir != "" {
		cfg.Collector.QueryDir = *queryDir
	}
	if *out != "" {
		cfg.Data.MetricsCSV = *out
	}
	if cfg.Collector.DSN == "" {
		log.Fatalf("no DSN: set -dsn, collector.dsn or NEUROCOST_PG_DSN")
	}

	lg, err := logger.FromConfig(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx := context.Background()
	db, err := collector.Open(ctx, cfg.Collector.DSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	start := time.Now()
	c := collector.New(collector.NewPostgresExplainer(db), lg)
	records, failed, err := c.CollectDir(ctx, cfg.Collector.QueryDir)
	if err != nil {
		log.Fatalf("collect: %v", err)
	}
	if err := dataset.SaveCSV(cfg.Data.MetricsCSV, records); err != nil {
		log.Fatalf("save %s: %v", cfg.Data.MetricsCSV, err)
	}

	fmt.Printf("Collected %d queries in %v -> %s\n", len(records), time.Since(start).Round(time.Millisecond), cfg.Data.MetricsCSV)
	for _, qe := range failed {
		fmt.Printf("  failed: %v\n", qe)
	}
}
