package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	LCM       LCMConfig       `yaml:"lcm"`
	Hybrid    HybridConfig    `yaml:"hybrid"`
	Data      DataConfig      `yaml:"data"`
	Plans     PlansConfig     `yaml:"plans"`
	Collector CollectorConfig `yaml:"collector"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects where trained artifacts live.
type StoreConfig struct {
	Backend     string      `yaml:"backend"` // file | sqlite | badger | minio | memory
	Path        string      `yaml:"path"`    // directory (file, badger) or database file (sqlite)
	Compression string      `yaml:"compression"`
	Keys        KeysConfig  `yaml:"keys"`
	Minio       MinioConfig `yaml:"minio"`
}

// KeysConfig names the storage key of each artifact slot.
type KeysConfig struct {
	Baseline string `yaml:"baseline"`
	LCM      string `yaml:"lcm"`
	Selector string `yaml:"selector"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LCMConfig struct {
	NumTrees           int     `yaml:"n_estimators"`
	MaxDepth           int     `yaml:"max_depth"` // 0 = unlimited
	MinSamplesLeaf     int     `yaml:"min_samples_leaf"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	Seed               uint64  `yaml:"seed"`
	Overwrite          bool    `yaml:"overwrite"`
}

type HybridConfig struct {
	BaselineMode       string  `yaml:"baseline_mode"` // identity | linear
	ValidationFraction float64 `yaml:"validation_fraction"`
	MaxDepth           int     `yaml:"max_depth"`
	Seed               uint64  `yaml:"seed"`
	PersistBaseline    bool    `yaml:"persist_baseline"`
}

type DataConfig struct {
	MetricsCSV    string  `yaml:"metrics_csv"`
	ComparisonCSV string  `yaml:"comparison_csv"`
	ReportHTML    string  `yaml:"report_html"`
	EvalFraction  float64 `yaml:"eval_fraction"`
	EvalSeed      uint64  `yaml:"eval_seed"`
}

type PlansConfig struct {
	ChoicesCSV string `yaml:"choices_csv"`
	RichCSV    string `yaml:"rich_csv"`
	ChosenDir  string `yaml:"chosen_dir"`
	SQLDir     string `yaml:"sql_dir"`
	QueryDir   string `yaml:"query_dir"`
	WriteSQL   bool   `yaml:"write_sql"`
}

type CollectorConfig struct {
	DSN      string `yaml:"dsn"`
	QueryDir string `yaml:"query_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     "file",
			Path:        "models",
			Compression: "zstd",
			Keys: KeysConfig{
				Baseline: "baseline_linreg",
				LCM:      "lcm",
				Selector: "hybrid_selector",
			},
		},
		LCM: LCMConfig{
			NumTrees:           100,
			MinSamplesLeaf:     1,
			ValidationFraction: 0.2,
			Seed:               42,
		},
		Hybrid: HybridConfig{
			BaselineMode:       "identity",
			ValidationFraction: 0.3,
			MaxDepth:           4,
			Seed:               42,
			PersistBaseline:    true,
		},
		Data: DataConfig{
			MetricsCSV:    "results/query_metrics.csv",
			ComparisonCSV: "results/query_metrics_comparison.csv",
			ReportHTML:    "results/website/index.html",
			EvalFraction:  0.2,
			EvalSeed:      42,
		},
		Plans: PlansConfig{
			ChoicesCSV: "results/generated_plan_choices.csv",
			RichCSV:    "results/generated_plan_choices_rich.csv",
			ChosenDir:  "results/chosen_plans",
			SQLDir:     "results/generated_sql_alternatives",
			QueryDir:   "queries",
			WriteSQL:   true,
		},
		Collector: CollectorConfig{
			QueryDir: "queries",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/neurocost.yaml", "neurocost.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Store.Compression == "" {
		cfg.Store.Compression = def.Store.Compression
	}
	if cfg.Store.Keys.Baseline == "" {
		cfg.Store.Keys.Baseline = def.Store.Keys.Baseline
	}
	if cfg.Store.Keys.LCM == "" {
		cfg.Store.Keys.LCM = def.Store.Keys.LCM
	}
	if cfg.Store.Keys.Selector == "" {
		cfg.Store.Keys.Selector = def.Store.Keys.Selector
	}
	if cfg.LCM.NumTrees <= 0 {
		cfg.LCM.NumTrees = def.LCM.NumTrees
	}
	if cfg.LCM.MaxDepth < 0 {
		cfg.LCM.MaxDepth = 0
	}
	if cfg.LCM.MinSamplesLeaf <= 0 {
		cfg.LCM.MinSamplesLeaf = def.LCM.MinSamplesLeaf
	}
	if cfg.LCM.ValidationFraction <= 0 || cfg.LCM.ValidationFraction >= 1 {
		cfg.LCM.ValidationFraction = def.LCM.ValidationFraction
	}
	if cfg.Hybrid.BaselineMode == "" {
		cfg.Hybrid.BaselineMode = def.Hybrid.BaselineMode
	}
	if cfg.Hybrid.ValidationFraction <= 0 || cfg.Hybrid.ValidationFraction >= 1 {
		cfg.Hybrid.ValidationFraction = def.Hybrid.ValidationFraction
	}
	if cfg.Hybrid.MaxDepth <= 0 {
		cfg.Hybrid.MaxDepth = def.Hybrid.MaxDepth
	}
	if cfg.Data.EvalFraction <= 0 || cfg.Data.EvalFraction >= 1 {
		cfg.Data.EvalFraction = def.Data.EvalFraction
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
