// Package optimizer 用学习型代价模型 (LCM) 为每个查询在候选计划中挑选预测最快的一个，
// 并把选择结果追加记录到 CSV 日志与逐查询的 JSON 文件。
package optimizer

import (
	"errors"
	"fmt"
	"math"

	"neurocost/pkg/common"
	"neurocost/pkg/features"
	"neurocost/pkg/monitor"
)

// ErrMalformedCandidate marks a candidate that cannot be scored.
var ErrMalformedCandidate = errors.New("optimizer: malformed candidate")

// Model predicts a runtime for one feature vector. *estimator.LCM satisfies it.
type Model interface {
	PredictOne(x common.FeatureVector) (float64, error)
}

// Scorer ranks candidate plans by predicted runtime.
type Scorer struct {
	model Model
	stats *monitor.PlanStats
}

// NewScorer wraps m. stats may be nil.
func NewScorer(m Model, stats *monitor.PlanStats) *Scorer {
	if stats == nil {
		stats = monitor.NewPlanStats()
	}
	return &Scorer{model: m, stats: stats}
}

func (s *Scorer) Stats() *monitor.PlanStats { return s.stats }

func validate(c common.CandidatePlan) error {
	switch {
	case c.Tag == "":
		return fmt.Errorf("%w: empty tag", ErrMalformedCandidate)
	case c.JoinCount < 0:
		return fmt.Errorf("%w: negative join_count %d", ErrMalformedCandidate, c.JoinCount)
	case math.IsNaN(c.EstimatedCost) || math.IsInf(c.EstimatedCost, 0) || c.EstimatedCost < 0:
		return fmt.Errorf("%w: estimated_cost %v", ErrMalformedCandidate, c.EstimatedCost)
	case math.IsNaN(c.EstimatedRows) || math.IsInf(c.EstimatedRows, 0) || c.EstimatedRows < 0:
		return fmt.Errorf("%w: estimated_rows %v", ErrMalformedCandidate, c.EstimatedRows)
	}
	return nil
}

// Score predicts the runtime of one candidate in milliseconds.
func (s *Scorer) Score(c common.CandidatePlan) (float64, error) {
	if err := validate(c); err != nil {
		return 0, err
	}
	v, err := s.model.PredictOne(features.FromCandidate(c))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: model returned %v", ErrMalformedCandidate, v)
	}
	return v, nil
}

// CandidateOutcome is the result of scoring one candidate. Skipped
// candidates carry the reason and take no part in the choice.
type CandidateOutcome struct {
	Index       int
	Tag         string
	Scored      bool
	PredictedMs float64
	Err         error
}

func (o CandidateOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Choice is the cheapest scored candidate. Found is false when nothing
// could be scored.
type Choice struct {
	Plan        common.CandidatePlan
	PredictedMs float64
	Found       bool
}

// ChooseBest scans candidates in order and keeps the first strictly lower
// prediction, so on ties the earlier candidate wins.
func (s *Scorer) ChooseBest(candidates []common.CandidatePlan) (Choice, []CandidateOutcome) {
	var best Choice
	outcomes := make([]CandidateOutcome, len(candidates))
	for i, c := range candidates {
		v, err := s.Score(c)
		outcomes[i] = CandidateOutcome{Index: i, Tag: c.Tag}
		if err != nil {
			outcomes[i].Err = err
			s.stats.RecordSkipped()
			continue
		}
		s.stats.RecordScored()
		outcomes[i].Scored = true
		outcomes[i].PredictedMs = v
		if !best.Found || v < best.PredictedMs {
			best = Choice{Plan: c, PredictedMs: v, Found: true}
		}
	}
	s.stats.RecordChoice(best.Found)
	return best, outcomes
}

// Synthesize derives three hypotheses from an observed record: the plan as
// observed, a cheaper one (cost x0.6, rows x0.9, floored at 1) and a more
// expensive one (cost x1.3, rows x1.1).
func Synthesize(r *common.QueryRecord) []common.CandidatePlan {
	joins := int(r.Joins())
	cost, rows := r.Cost(), r.Rows()
	return []common.CandidatePlan{
		{Tag: common.TagBaseline, JoinCount: joins, EstimatedCost: cost, EstimatedRows: rows},
		{Tag: common.TagCheap, JoinCount: joins, EstimatedCost: max(1.0, cost*0.6), EstimatedRows: max(1.0, rows*0.9)},
		{Tag: common.TagExpensive, JoinCount: max(0, joins), EstimatedCost: cost * 1.3, EstimatedRows: rows * 1.1},
	}
}
