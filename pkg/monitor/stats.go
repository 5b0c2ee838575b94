package monitor

import (
	"sync/atomic"
)

// PlanStats counts scoring and dispatch decisions over a run.
type PlanStats struct {
	Scored        uint64
	Skipped       uint64
	Chosen        uint64
	NoChoice      uint64
	LCMPicks      uint64
	BaselinePicks uint64
}

func NewPlanStats() *PlanStats {
	return &PlanStats{}
}

func (ps *PlanStats) RecordScored() {
	atomic.AddUint64(&ps.Scored, 1)
}

func (ps *PlanStats) RecordSkipped() {
	atomic.AddUint64(&ps.Skipped, 1)
}

// RecordChoice counts one query; found is false when no candidate scored.
func (ps *PlanStats) RecordChoice(found bool) {
	if found {
		atomic.AddUint64(&ps.Chosen, 1)
	} else {
		atomic.AddUint64(&ps.NoChoice, 1)
	}
}

// RecordDispatch counts one hybrid routing decision.
func (ps *PlanStats) RecordDispatch(useLCM bool) {
	if useLCM {
		atomic.AddUint64(&ps.LCMPicks, 1)
	} else {
		atomic.AddUint64(&ps.BaselinePicks, 1)
	}
}

// LCMShare is the fraction of dispatches routed to the LCM.
func (ps *PlanStats) LCMShare() float64 {
	lcm := atomic.LoadUint64(&ps.LCMPicks)
	base := atomic.LoadUint64(&ps.BaselinePicks)

	if lcm+base == 0 {
		return 0.0
	}
	return float64(lcm) / float64(lcm+base)
}

// SkipRatio is skipped candidates over all candidates seen.
func (ps *PlanStats) SkipRatio() float64 {
	scored := atomic.LoadUint64(&ps.Scored)
	skipped := atomic.LoadUint64(&ps.Skipped)

	if scored+skipped == 0 {
		return 0.0
	}
	return float64(skipped) / float64(scored+skipped)
}

// Snapshot copies the counters.
func (ps *PlanStats) Snapshot() PlanStats {
	return PlanStats{
		Scored:        atomic.LoadUint64(&ps.Scored),
		Skipped:       atomic.LoadUint64(&ps.Skipped),
		Chosen:        atomic.LoadUint64(&ps.Chosen),
		NoChoice:      atomic.LoadUint64(&ps.NoChoice),
		LCMPicks:      atomic.LoadUint64(&ps.LCMPicks),
		BaselinePicks: atomic.LoadUint64(&ps.BaselinePicks),
	}
}
