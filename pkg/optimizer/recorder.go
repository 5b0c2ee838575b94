package optimizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"neurocost/pkg/common"
	"neurocost/pkg/storage"
)

// ChoicesHeader is the column layout of the choices log.
var ChoicesHeader = []string{"query_name", "chosen_pred_ms", "chosen_plan_summary"}

// Recorder appends choices to a CSV log and optionally writes one JSON file
// per query into a directory.
type Recorder struct {
	log       *storage.AppendLog
	chosenDir string
}

// NewRecorder opens (or creates) the choices log at path. An empty
// chosenDir disables per-query files.
func NewRecorder(path, chosenDir string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if chosenDir != "" {
		if err := os.MkdirAll(chosenDir, 0755); err != nil {
			return nil, err
		}
	}
	l, err := storage.OpenAppendLog(path, ChoicesHeader)
	if err != nil {
		return nil, fmt.Errorf("open choices log: %w", err)
	}
	return &Recorder{log: l, chosenDir: chosenDir}, nil
}

// Reset empties the log, keeping the header.
func (r *Recorder) Reset() error {
	return r.log.Truncate()
}

func (r *Recorder) Close() error {
	return r.log.Close()
}

// ChosenPlan is the per-query JSON artifact.
type ChosenPlan struct {
	QueryName   string               `json:"query_name"`
	ChosenPred  float64              `json:"chosen_pred_ms"`
	ChosenPlan  common.CandidatePlan `json:"chosen_plan"`
	Candidates  int                  `json:"candidates"`
	SkippedTags []string             `json:"skipped_tags,omitempty"`
}

// Selection is what SelectAndRecord did for one query.
type Selection struct {
	Query    string
	Choice   Choice
	Outcomes []CandidateOutcome
	// ArtifactPath is empty when no per-query file was written.
	ArtifactPath string
}

// SelectAndRecord chooses the best candidate and appends one row to the
// log. A query with no scorable candidate still gets a row, with empty
// prediction and summary, and no per-query file.
func (s *Scorer) SelectAndRecord(query string, candidates []common.CandidatePlan, r *Recorder) (*Selection, error) {
	choice, outcomes := s.ChooseBest(candidates)
	sel := &Selection{Query: query, Choice: choice, Outcomes: outcomes}

	pred, summary := "", ""
	if choice.Found {
		b, err := json.Marshal(choice.Plan)
		if err != nil {
			return nil, err
		}
		pred = strconv.FormatFloat(choice.PredictedMs, 'g', -1, 64)
		summary = string(b)
	}
	if err := r.log.Append([]string{query, pred, summary}); err != nil {
		return nil, fmt.Errorf("append choice for %s: %w", query, err)
	}

	if !choice.Found || r.chosenDir == "" {
		return sel, nil
	}
	artifact := ChosenPlan{
		QueryName:  query,
		ChosenPred: choice.PredictedMs,
		ChosenPlan: choice.Plan,
		Candidates: len(candidates),
	}
	for _, o := range outcomes {
		if !o.Scored {
			artifact.SkippedTags = append(artifact.SkippedTags, o.Tag)
		}
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, err
	}
	p := filepath.Join(r.chosenDir, common.SafeName(query)+".json")
	if err := os.WriteFile(p, data, 0644); err != nil {
		return nil, fmt.Errorf("write chosen plan for %s: %w", query, err)
	}
	sel.ArtifactPath = p
	return sel, nil
}
