package collector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"neurocost/pkg/common"
	"neurocost/pkg/logger"
	nsql "neurocost/pkg/sql"
)

var ErrEmptyPlan = errors.New("collector: EXPLAIN returned no plan")

// Explainer runs EXPLAIN (FORMAT JSON) for a statement, with ANALYZE when
// analyze is set, and returns the raw JSON document.
type Explainer interface {
	Explain(ctx context.Context, query string, analyze bool) ([]byte, error)
}

// PostgresExplainer explains statements over a database/sql connection.
type PostgresExplainer struct {
	db *sql.DB
}

func NewPostgresExplainer(db *sql.DB) *PostgresExplainer {
	return &PostgresExplainer{db: db}
}

// Open connects with the lib/pq driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (e *PostgresExplainer) Explain(ctx context.Context, query string, analyze bool) ([]byte, error) {
	prefix := "EXPLAIN (FORMAT JSON) "
	if analyze {
		prefix = "EXPLAIN (ANALYZE, FORMAT JSON) "
	}
	var raw []byte
	if err := e.db.QueryRowContext(ctx, prefix+query).Scan(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PlanSummary holds the top-level plan node fields the collector reads.
type PlanSummary struct {
	TotalCost       float64
	PlanRows        float64
	ActualTotalTime common.Optional
	ActualRows      common.Optional
	// Raw is the first element of the EXPLAIN array, compacted.
	Raw string
}

type explainDoc struct {
	Plan struct {
		TotalCost       float64  `json:"Total Cost"`
		PlanRows        float64  `json:"Plan Rows"`
		ActualTotalTime *float64 `json:"Actual Total Time"`
		ActualRows      *float64 `json:"Actual Rows"`
	} `json:"Plan"`
}

// ParsePlan decodes the JSON produced by EXPLAIN (FORMAT JSON).
func ParsePlan(raw []byte) (*PlanSummary, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode explain output: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrEmptyPlan
	}
	var doc explainDoc
	if err := json.Unmarshal(docs[0], &doc); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	s := &PlanSummary{
		TotalCost: doc.Plan.TotalCost,
		PlanRows:  doc.Plan.PlanRows,
		Raw:       compact(docs[0]),
	}
	if doc.Plan.ActualTotalTime != nil {
		s.ActualTotalTime = common.Some(*doc.Plan.ActualTotalTime)
	}
	if doc.Plan.ActualRows != nil {
		s.ActualRows = common.Some(*doc.Plan.ActualRows)
	}
	return s, nil
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// QueryFile is one .sql file under a category directory.
type QueryFile struct {
	Name     string
	Category common.Category
	Path     string
}

// DiscoverQueries lists root/<category>/*.sql for every known category, in
// category order and then by file name. Missing category directories are
// skipped.
func DiscoverQueries(root string) ([]QueryFile, error) {
	var out []QueryFile
	for _, c := range common.Categories {
		dir := filepath.Join(root, string(c))
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, QueryFile{Name: n, Category: c, Path: filepath.Join(dir, n)})
		}
	}
	return out, nil
}

// QueryError records a query that could not be collected.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Collector turns query files into QueryRecords by explaining each one
// twice: once for estimates and once with ANALYZE for actuals.
type Collector struct {
	explainer Explainer
	log       *logger.Logger
}

func New(e Explainer, log *logger.Logger) *Collector {
	return &Collector{explainer: e, log: log.Or()}
}

// CollectQuery explains one statement.
func (c *Collector) CollectQuery(ctx context.Context, name string, category common.Category, query string) (common.QueryRecord, error) {
	start := time.Now()
	raw, err := c.explainer.Explain(ctx, query, false)
	if err != nil {
		return common.QueryRecord{}, &QueryError{Query: name, Err: err}
	}
	est, err := ParsePlan(raw)
	if err != nil {
		return common.QueryRecord{}, &QueryError{Query: name, Err: err}
	}
	raw, err = c.explainer.Explain(ctx, query, true)
	if err != nil {
		return common.QueryRecord{}, &QueryError{Query: name, Err: err}
	}
	act, err := ParsePlan(raw)
	if err != nil {
		return common.QueryRecord{}, &QueryError{Query: name, Err: err}
	}

	return common.QueryRecord{
		QueryName:        name,
		Category:         category,
		JoinCount:        common.Some(float64(nsql.CountJoins(query))),
		EstimatedCost:    common.Some(est.TotalCost),
		EstimatedRows:    common.Some(est.PlanRows),
		ActualRuntimeMs:  act.ActualTotalTime,
		ActualRows:       act.ActualRows,
		ExecutionTimeSec: common.Some(time.Since(start).Seconds()),
		PlanJSON:         act.Raw,
	}, nil
}

// CollectDir collects every query under root. Failing queries are logged
// and returned separately; they do not stop the run.
func (c *Collector) CollectDir(ctx context.Context, root string) ([]common.QueryRecord, []*QueryError, error) {
	files, err := DiscoverQueries(root)
	if err != nil {
		return nil, nil, err
	}
	var (
		records []common.QueryRecord
		failed  []*QueryError
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return records, failed, err
		}
		text, err := os.ReadFile(f.Path)
		if err != nil {
			failed = append(failed, &QueryError{Query: f.Name, Err: err})
			continue
		}
		rec, err := c.CollectQuery(ctx, f.Name, f.Category, strings.TrimSpace(string(text)))
		if err != nil {
			var qe *QueryError
			if !errors.As(err, &qe) {
				qe = &QueryError{Query: f.Name, Err: err}
			}
			c.log.WarnContext(ctx, "query failed", "query", f.Name, "category", f.Category, "error", qe.Err)
			failed = append(failed, qe)
			continue
		}
		c.log.DebugContext(ctx, "query collected", "query", f.Name, "runtime_ms", rec.Runtime())
		records = append(records, rec)
	}
	c.log.InfoContext(ctx, "collection finished", "collected", len(records), "failed", len(failed))
	return records, failed, nil
}
