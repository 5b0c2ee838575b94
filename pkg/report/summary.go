package report

import (
	"neurocost/pkg/common"
)

// CategorySummary is the per-category slice of the summary.
type CategorySummary struct {
	Category    string  `json:"category"`
	Queries     int     `json:"queries"`
	MAEBaseline float64 `json:"mae_baseline"`
	MAELCM      float64 `json:"mae_lcm"`
	MAEHybrid   float64 `json:"mae_hybrid"`
	// HybridImprovementPct is nil when the baseline MAE is zero.
	HybridImprovementPct *float64 `json:"hybrid_improvement_pct"`
}

// Summary aggregates a comparison.
type Summary struct {
	Queries                    int               `json:"queries"`
	MAEBaseline                float64           `json:"mae_baseline"`
	MAELCM                     float64           `json:"mae_lcm"`
	MAEHybrid                  float64           `json:"mae_hybrid"`
	WinnerCounts               map[string]int    `json:"winner_counts"`
	ChosenPredMeanMs           *float64          `json:"chosen_pred_mean_ms"`
	LCMPredictedBetterCount    int               `json:"lcm_predicted_better_count"`
	HybridPredictedBetterCount int               `json:"hybrid_predicted_better_count"`
	ActualMeanMs               float64           `json:"actual_mean_ms"`
	HybridLCMShare             float64           `json:"hybrid_lcm_share"`
	Categories                 []CategorySummary `json:"categories"`
}

type acc struct {
	n                   int
	base, lcm, hyb, act float64
}

func (a *acc) add(r Row) {
	a.n++
	a.base += r.ErrBaseline
	a.lcm += r.ErrLCM
	a.hyb += r.ErrHybrid
	a.act += r.ActualMs
}

func (a *acc) mean(v float64) float64 {
	if a.n == 0 {
		return 0
	}
	return v / float64(a.n)
}

// improvement is the relative MAE reduction from `from` to `to`, in percent.
func improvement(from, to float64) *float64 {
	if from == 0 {
		return nil
	}
	v := (from - to) / from * 100
	return &v
}

// Summarize computes mean errors, closest-model counts and plan-quality
// counters over rows.
func Summarize(rows []Row) Summary {
	s := Summary{
		Queries:      len(rows),
		WinnerCounts: make(map[string]int),
	}
	var all acc
	perCat := make(map[string]*acc)
	var chosenSum float64
	var chosenN, lcmRouted int

	for _, r := range rows {
		all.add(r)
		a, ok := perCat[r.Category]
		if !ok {
			a = &acc{}
			perCat[r.Category] = a
		}
		a.add(r)

		s.WinnerCounts[r.ClosestModel]++
		if r.ChosenPredMs != nil {
			chosenSum += *r.ChosenPredMs
			chosenN++
		}
		if r.WouldBeFaster {
			s.LCMPredictedBetterCount++
		}
		if r.PredHybrid < r.ActualMs {
			s.HybridPredictedBetterCount++
		}
		if r.UsedLCM {
			lcmRouted++
		}
	}

	s.MAEBaseline = all.mean(all.base)
	s.MAELCM = all.mean(all.lcm)
	s.MAEHybrid = all.mean(all.hyb)
	s.ActualMeanMs = all.mean(all.act)
	if chosenN > 0 {
		m := chosenSum / float64(chosenN)
		s.ChosenPredMeanMs = &m
	}
	if len(rows) > 0 {
		s.HybridLCMShare = float64(lcmRouted) / float64(len(rows))
	}

	for _, c := range common.Categories {
		a, ok := perCat[string(c)]
		if !ok {
			continue
		}
		cs := CategorySummary{
			Category:    string(c),
			Queries:     a.n,
			MAEBaseline: a.mean(a.base),
			MAELCM:      a.mean(a.lcm),
			MAEHybrid:   a.mean(a.hyb),
		}
		cs.HybridImprovementPct = improvement(cs.MAEBaseline, cs.MAEHybrid)
		s.Categories = append(s.Categories, cs)
	}
	return s
}
