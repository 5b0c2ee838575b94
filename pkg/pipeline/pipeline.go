package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"neurocost/pkg/common"
	"neurocost/pkg/config"
	"neurocost/pkg/dataset"
	"neurocost/pkg/estimator"
	"neurocost/pkg/features"
	"neurocost/pkg/logger"
	"neurocost/pkg/model"
	"neurocost/pkg/monitor"
	"neurocost/pkg/optimizer"
	"neurocost/pkg/report"
	"neurocost/pkg/storage"
)

// Stage names one step of a run.
type Stage string

const (
	StageLoad        Stage = "load"
	StageTrainLCM    Stage = "train-lcm"
	StageTrainHybrid Stage = "train-hybrid"
	StageEvaluate    Stage = "evaluate"
	StagePlans       Stage = "plans"
	StageReport      Stage = "report"
)

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: s, Err: err}
}

// Pipeline runs the training, evaluation, plan selection and report stages
// against one artifact store.
type Pipeline struct {
	cfg   *config.Config
	store estimator.ArtifactStore
	log   *logger.Logger
	stats *monitor.PlanStats
}

func New(cfg *config.Config, store estimator.ArtifactStore, log *logger.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{cfg: cfg, store: store, log: log.Or(), stats: monitor.NewPlanStats()}
}

func (p *Pipeline) Stats() *monitor.PlanStats { return p.stats }

// LoadRecords reads the metrics CSV named in the configuration.
func (p *Pipeline) LoadRecords() ([]common.QueryRecord, error) {
	records, err := dataset.LoadCSV(p.cfg.Data.MetricsCSV)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	p.log.Info("metrics loaded", "path", p.cfg.Data.MetricsCSV, "records", len(records))
	return records, nil
}

func (p *Pipeline) TrainLCM(ctx context.Context, records []common.QueryRecord) (*estimator.TrainResult, error) {
	res, err := estimator.TrainLCM(ctx, records, estimator.LCMOptionsFromConfig(p.cfg.LCM), p.store, p.log.WithStage(string(StageTrainLCM)))
	return res, stageErr(StageTrainLCM, err)
}

func (p *Pipeline) hybridOptions() (estimator.HybridOptions, error) {
	return estimator.HybridOptionsFromConfig(p.cfg)
}

func (p *Pipeline) TrainHybrid(ctx context.Context, records []common.QueryRecord) (*estimator.HybridTrainResult, error) {
	opts, err := p.hybridOptions()
	if err != nil {
		return nil, stageErr(StageTrainHybrid, err)
	}
	res, err := estimator.TrainHybrid(ctx, records, opts, p.store, p.log.WithStage(string(StageTrainHybrid)))
	return res, stageErr(StageTrainHybrid, err)
}

// EstimatorMetrics is one line of an evaluation.
type EstimatorMetrics struct {
	Name string
	MAE  float64
	RMSE float64
}

// Evaluation is the held-out accuracy of the three estimators.
type Evaluation struct {
	TrainRows int
	TestRows  int
	Metrics   []EstimatorMetrics
	Hybrid    *estimator.HybridTrainResult
	Took      time.Duration
}

// Evaluate holds out a seeded test split, retrains the LCM (overwriting)
// and the selector on the rest, and scores all three estimators on the
// held-out rows.
func (p *Pipeline) Evaluate(ctx context.Context, records []common.QueryRecord) (*Evaluation, error) {
	start := time.Now()
	log := p.log.WithStage(string(StageEvaluate))

	train, test, err := dataset.SplitRecords(records, p.cfg.Data.EvalFraction, p.cfg.Data.EvalSeed)
	if err != nil {
		return nil, stageErr(StageEvaluate, err)
	}

	lcmOpts := estimator.LCMOptionsFromConfig(p.cfg.LCM)
	lcmOpts.Overwrite = true
	if _, err := estimator.TrainLCM(ctx, train, lcmOpts, p.store, log); err != nil {
		return nil, stageErr(StageEvaluate, err)
	}
	opts, err := p.hybridOptions()
	if err != nil {
		return nil, stageErr(StageEvaluate, err)
	}
	opts.LCM = lcmOpts
	hres, err := estimator.TrainHybrid(ctx, train, opts, p.store, log)
	if err != nil {
		return nil, stageErr(StageEvaluate, err)
	}

	preds, err := hres.Hybrid.Predict(test)
	if err != nil {
		return nil, stageErr(StageEvaluate, err)
	}
	actual := features.Targets(test)
	base := make([]float64, len(preds))
	lcm := make([]float64, len(preds))
	for i, pr := range preds {
		base[i], lcm[i] = pr.Baseline, pr.LCM
	}
	hyb := estimator.Values(preds)

	ev := &Evaluation{
		TrainRows: len(train),
		TestRows:  len(test),
		Hybrid:    hres,
		Metrics: []EstimatorMetrics{
			{Name: report.ModelBaseline, MAE: model.MAE(actual, base), RMSE: model.RMSE(actual, base)},
			{Name: report.ModelLCM, MAE: model.MAE(actual, lcm), RMSE: model.RMSE(actual, lcm)},
			{Name: report.ModelHybrid, MAE: model.MAE(actual, hyb), RMSE: model.RMSE(actual, hyb)},
		},
		Took: time.Since(start),
	}
	for _, m := range ev.Metrics {
		log.InfoContext(ctx, "held-out accuracy", "estimator", m.Name, "mae_ms", m.MAE, "rmse_ms", m.RMSE, "rows", len(test))
	}
	return ev, nil
}

// GeneratePlans scores synthesized candidates for every record with the
// persisted LCM, training one first when none exists.
func (p *Pipeline) GeneratePlans(ctx context.Context, records []common.QueryRecord) (*optimizer.BatchReport, error) {
	log := p.log.WithStage(string(StagePlans))

	lcm, err := estimator.LoadLCM(ctx, p.store)
	if errors.Is(err, storage.ErrNotFound) {
		log.LogFallback(ctx, "lcm", err.Error())
		opts := estimator.LCMOptionsFromConfig(p.cfg.LCM)
		opts.Overwrite = true
		res, terr := estimator.TrainLCM(ctx, records, opts, p.store, log)
		if terr != nil {
			return nil, stageErr(StagePlans, terr)
		}
		lcm, err = res.Model, nil
	}
	if err != nil {
		return nil, stageErr(StagePlans, err)
	}

	scorer := optimizer.NewScorer(lcm, p.stats)
	rep, err := scorer.RunBatch(ctx, records, optimizer.BatchOptionsFromConfig(p.cfg.Plans), log)
	if err != nil {
		return rep, stageErr(StagePlans, err)
	}
	log.InfoContext(ctx, "plans generated",
		"queries", rep.Queries,
		"chosen", rep.Chosen,
		"skipped_candidates", len(rep.Skipped),
		"sql_written", rep.SQLWritten,
		"sql_failed", rep.SQLFailed,
	)
	return rep, nil
}

// Report is the output of BuildReport.
type Report struct {
	Rows    []report.Row
	Summary report.Summary
	// Retrained is set when hybrid components were missing and Evaluate ran first.
	Retrained bool
}

// BuildReport predicts every record with the persisted hybrid, merges the
// enriched plan log and writes the comparison CSV and HTML page. Missing
// hybrid components trigger an Evaluate run first.
func (p *Pipeline) BuildReport(ctx context.Context, records []common.QueryRecord) (*Report, error) {
	log := p.log.WithStage(string(StageReport))
	opts, err := p.hybridOptions()
	if err != nil {
		return nil, stageErr(StageReport, err)
	}

	out := &Report{}
	h, err := estimator.LoadHybrid(ctx, p.store, opts.Mode)
	if errors.Is(err, estimator.ErrHybridComponentsNotFound) {
		log.LogFallback(ctx, "hybrid", err.Error())
		if _, eerr := p.Evaluate(ctx, records); eerr != nil {
			return nil, stageErr(StageReport, eerr)
		}
		out.Retrained = true
		h, err = estimator.LoadHybrid(ctx, p.store, opts.Mode)
	}
	if err != nil {
		return nil, stageErr(StageReport, err)
	}

	preds, err := h.Predict(records)
	if err != nil {
		return nil, stageErr(StageReport, err)
	}
	for _, pr := range preds {
		p.stats.RecordDispatch(pr.UseLCM)
	}

	choices, err := report.LoadChoices(p.cfg.Plans.RichCSV)
	if err != nil {
		return nil, stageErr(StageReport, err)
	}
	rows, err := report.Build(records, preds, choices)
	if err != nil {
		return nil, stageErr(StageReport, err)
	}
	out.Rows = rows
	out.Summary = report.Summarize(rows)

	if err := report.SaveCSV(p.cfg.Data.ComparisonCSV, rows); err != nil {
		return nil, stageErr(StageReport, err)
	}
	if err := report.SaveHTML(p.cfg.Data.ReportHTML, rows, out.Summary, string(opts.Mode)); err != nil {
		return nil, stageErr(StageReport, err)
	}
	log.InfoContext(ctx, "report written",
		"csv", p.cfg.Data.ComparisonCSV,
		"html", p.cfg.Data.ReportHTML,
		"mae_hybrid_ms", out.Summary.MAEHybrid,
	)
	return out, nil
}

// Result collects the outputs of RunAll.
type Result struct {
	Evaluation *Evaluation
	Plans      *optimizer.BatchReport
	Report     *Report
}

// RunAll evaluates (which also persists fresh models), generates plans and
// builds the report, in that order.
func (p *Pipeline) RunAll(ctx context.Context, records []common.QueryRecord) (*Result, error) {
	var (
		res Result
		err error
	)
	if res.Evaluation, err = p.Evaluate(ctx, records); err != nil {
		return &res, err
	}
	if res.Plans, err = p.GeneratePlans(ctx, records); err != nil {
		return &res, err
	}
	if res.Report, err = p.BuildReport(ctx, records); err != nil {
		return &res, err
	}
	return &res, nil
}
