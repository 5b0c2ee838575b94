package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"neurocost/pkg/common"
	"neurocost/pkg/estimator"
	"neurocost/pkg/storage"
)

// Estimator names as they appear in closest_model. Ties between equal
// errors go to the alphabetically first name.
const (
	ModelBaseline = "Baseline"
	ModelHybrid   = "Hybrid"
	ModelLCM      = "LCM"
)

// Columns is the layout of the comparison CSV.
var Columns = []string{
	"query_name", "category", "actual_runtime_ms",
	"pred_baseline_ms", "pred_lcm_ms", "pred_hybrid_ms",
	"err_baseline_ms", "err_lcm_ms", "err_hybrid_ms",
	"closest_model", "chosen_pred_ms", "would_be_faster_than_baseline",
}

// Row is one query in the comparison.
type Row struct {
	QueryName     string   `json:"query_name"`
	Category      string   `json:"category"`
	ActualMs      float64  `json:"actual_runtime_ms"`
	PredBaseline  float64  `json:"pred_baseline_ms"`
	PredLCM       float64  `json:"pred_lcm_ms"`
	PredHybrid    float64  `json:"pred_hybrid_ms"`
	ErrBaseline   float64  `json:"err_baseline_ms"`
	ErrLCM        float64  `json:"err_lcm_ms"`
	ErrHybrid     float64  `json:"err_hybrid_ms"`
	ClosestModel  string   `json:"closest_model"`
	ChosenPredMs  *float64 `json:"chosen_pred_ms"`
	WouldBeFaster bool     `json:"would_be_faster_than_baseline"`
	UsedLCM       bool     `json:"used_lcm"`
}

// PlanChoice is the part of the enriched choices log merged into rows.
type PlanChoice struct {
	ChosenPredMs  *float64
	WouldBeFaster bool
}

// Closest returns the estimator with the smallest error.
func Closest(errBaseline, errLCM, errHybrid float64) string {
	type cand struct {
		name string
		err  float64
	}
	// alphabetical order, so a strict < keeps the first name on ties
	cands := []cand{{ModelBaseline, errBaseline}, {ModelHybrid, errHybrid}, {ModelLCM, errLCM}}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.err < best.err {
			best = c
		}
	}
	return best.name
}

// Build joins records with their hybrid predictions and any recorded plan
// choice. preds must be aligned with records.
func Build(records []common.QueryRecord, preds []estimator.Prediction, choices map[string]PlanChoice) ([]Row, error) {
	if len(records) != len(preds) {
		return nil, fmt.Errorf("report: %d records but %d predictions", len(records), len(preds))
	}
	rows := make([]Row, len(records))
	for i := range records {
		r := &records[i]
		p := preds[i]
		actual := r.Runtime()
		row := Row{
			QueryName:    r.QueryName,
			Category:     string(r.Category),
			ActualMs:     actual,
			PredBaseline: p.Baseline,
			PredLCM:      p.LCM,
			PredHybrid:   p.Value,
			ErrBaseline:  math.Abs(p.Baseline - actual),
			ErrLCM:       math.Abs(p.LCM - actual),
			ErrHybrid:    math.Abs(p.Value - actual),
			UsedLCM:      p.UseLCM,
		}
		row.ClosestModel = Closest(row.ErrBaseline, row.ErrLCM, row.ErrHybrid)
		if c, ok := choices[r.QueryName]; ok {
			row.ChosenPredMs = c.ChosenPredMs
			row.WouldBeFaster = c.WouldBeFaster
		}
		rows[i] = row
	}
	return rows, nil
}

// LoadChoices reads the enriched choices log keyed by query name. A missing
// file yields an empty map. Later rows for the same query win.
func LoadChoices(path string) (map[string]PlanChoice, error) {
	out := make(map[string]PlanChoice)
	it, err := storage.OpenLogIterator(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		row, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var c PlanChoice
		if s := strings.TrimSpace(row["chosen_pred_ms"]); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("read %s: chosen_pred_ms %q: %w", path, s, err)
			}
			c.ChosenPredMs = &v
		}
		c.WouldBeFaster = parseBool(row["would_be_faster_than_baseline"])
		out[row["query_name"]] = c
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteCSV writes rows under Columns.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		chosen := ""
		if r.ChosenPredMs != nil {
			chosen = formatFloat(*r.ChosenPredMs)
		}
		rec := []string{
			r.QueryName, r.Category, formatFloat(r.ActualMs),
			formatFloat(r.PredBaseline), formatFloat(r.PredLCM), formatFloat(r.PredHybrid),
			formatFloat(r.ErrBaseline), formatFloat(r.ErrLCM), formatFloat(r.ErrHybrid),
			r.ClosestModel, chosen, formatBool(r.WouldBeFaster),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the comparison to path, creating parent directories.
func SaveCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
