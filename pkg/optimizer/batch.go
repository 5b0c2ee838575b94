package optimizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/logger"
	"neurocost/pkg/sql"
	"neurocost/pkg/storage"
)

// RichHeader is the column layout of the enriched choices log.
var RichHeader = []string{"query_name", "chosen_pred_ms", "baseline_actual_ms", "would_be_faster_than_baseline"}

type BatchOptions struct {
	ChoicesCSV string
	RichCSV    string
	ChosenDir  string
	// SQLDir receives variant SQL files when WriteSQL is set; sources are
	// looked up under QueryDir.
	SQLDir   string
	QueryDir string
	WriteSQL bool
	// Append keeps rows from earlier runs instead of truncating both logs.
	Append bool
}

func BatchOptionsFromConfig(c config.PlansConfig) BatchOptions {
	return BatchOptions{
		ChoicesCSV: c.ChoicesCSV,
		RichCSV:    c.RichCSV,
		ChosenDir:  c.ChosenDir,
		SQLDir:     c.SQLDir,
		QueryDir:   c.QueryDir,
		WriteSQL:   c.WriteSQL,
	}
}

// SkippedCandidate is one candidate left out of a choice.
type SkippedCandidate struct {
	Query  string
	Tag    string
	Reason string
}

// BatchReport aggregates a RunBatch call.
type BatchReport struct {
	Queries            int
	Chosen             int
	NoChoice           int
	FasterThanBaseline int
	Skipped            []SkippedCandidate
	SQLWritten         int
	SQLFailed          int
	Selections         []*Selection
}

// RunBatch synthesizes candidates for every record, records the choice and
// an enriched row, and writes variant SQL. Variant failures are logged and
// counted but never stop the batch.
func (s *Scorer) RunBatch(ctx context.Context, records []common.QueryRecord, opts BatchOptions, log *logger.Logger) (*BatchReport, error) {
	log = log.Or()

	rec, err := NewRecorder(opts.ChoicesCSV, opts.ChosenDir)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	if err := os.MkdirAll(filepath.Dir(opts.RichCSV), 0755); err != nil {
		return nil, err
	}
	rich, err := storage.OpenAppendLog(opts.RichCSV, RichHeader)
	if err != nil {
		return nil, fmt.Errorf("open rich log: %w", err)
	}
	defer rich.Close()

	if !opts.Append {
		if err := rec.Reset(); err != nil {
			return nil, err
		}
		if err := rich.Truncate(); err != nil {
			return nil, err
		}
	}

	report := &BatchReport{}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r := &records[i]
		name := r.QueryName
		if name == "" {
			name = "unknown"
		}

		sel, err := s.SelectAndRecord(name, Synthesize(r), rec)
		if err != nil {
			return report, err
		}
		report.Queries++
		report.Selections = append(report.Selections, sel)
		for _, o := range sel.Outcomes {
			if !o.Scored {
				report.Skipped = append(report.Skipped, SkippedCandidate{Query: name, Tag: o.Tag, Reason: o.Reason()})
			}
		}
		log.LogChoice(ctx, name, sel.Choice.Plan.Tag, sel.Choice.PredictedMs, len(sel.Outcomes)-countSkipped(sel.Outcomes), countSkipped(sel.Outcomes))

		if !sel.Choice.Found {
			report.NoChoice++
			if err := rich.Append([]string{name, "", formatActual(r), "False"}); err != nil {
				return report, err
			}
			if opts.WriteSQL {
				writeSQL(ctx, report, name, log, func() (string, error) {
					return sql.WriteNoChoice(opts.SQLDir, opts.QueryDir, name)
				})
			}
			continue
		}
		report.Chosen++

		faster := r.ActualRuntimeMs.Valid && sel.Choice.PredictedMs < r.ActualRuntimeMs.Value
		if faster {
			report.FasterThanBaseline++
		}
		row := []string{
			name,
			strconv.FormatFloat(sel.Choice.PredictedMs, 'g', -1, 64),
			formatActual(r),
			formatBool(faster),
		}
		if err := rich.Append(row); err != nil {
			return report, err
		}

		if opts.WriteSQL {
			writeSQL(ctx, report, name, log, func() (string, error) {
				return sql.WriteVariant(opts.SQLDir, opts.QueryDir, name, sel.Choice.Plan, sel.Choice.PredictedMs)
			})
		}
	}
	return report, nil
}

// writeSQL counts a variant write; failures are logged, never returned.
func writeSQL(ctx context.Context, report *BatchReport, name string, log *logger.Logger, write func() (string, error)) {
	if _, err := write(); err != nil {
		report.SQLFailed++
		log.WarnContext(ctx, "variant sql not written", "query", name, "error", err)
		return
	}
	report.SQLWritten++
}

func countSkipped(outcomes []CandidateOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Scored {
			n++
		}
	}
	return n
}

func formatActual(r *common.QueryRecord) string {
	if !r.ActualRuntimeMs.Valid {
		return ""
	}
	return strconv.FormatFloat(r.ActualRuntimeMs.Value, 'g', -1, 64)
}

// formatBool matches the True/False spelling of the other result files.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
