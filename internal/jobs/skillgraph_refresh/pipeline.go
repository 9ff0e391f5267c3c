package skillgraph_refresh

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/learnhub/internal/data/repos/skillgraph"
	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

// Pipeline runs one miner pass and records it as an analysis run.
type Pipeline struct {
	miner   *sentry.Miner
	runs    skillgraph.AnalysisRunRepo
	hubID   string
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New builds a pipeline; runs may be nil when no database is configured.
func New(miner *sentry.Miner, runs skillgraph.AnalysisRunRepo, hubID string, baseLog *logger.Logger, metrics *observability.Metrics) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Pipeline{
		miner:   miner,
		runs:    runs,
		hubID:   hubID,
		log:     baseLog.With("job", "skillgraph_refresh"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *Pipeline) Type() string { return "skillgraph_refresh" }

func (p *Pipeline) Run(ctx context.Context, trigger string) (res sentry.Result, err error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph_refresh.run",
		attribute.String("analysis.trigger", trigger),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := p.now()
	run := p.startRun(ctx, trigger, start)

	res, err = p.miner.Analyze(ctx)

	status := types.RunStatusSucceeded
	if err != nil {
		status = types.RunStatusFailed
	}
	p.metrics.ObserveAnalysis(trigger, status, p.now().Sub(start))
	span.SetAttributes(
		attribute.Bool("analysis.published", res.Published),
		attribute.Int("analysis.folded", res.Folded),
		attribute.Int("analysis.edges", res.Edges),
	)
	p.finishRun(ctx, run, status, res, err)

	if err != nil {
		p.log.Warn("Skill graph analysis failed", "trigger", trigger, "error", err)
		return res, err
	}
	p.log.Debug("Skill graph analysis finished", "trigger", trigger, "folded", res.Folded,
		"published", res.Published, "reason", res.Reason)
	return res, nil
}

func (p *Pipeline) startRun(ctx context.Context, trigger string, start time.Time) *types.AnalysisRun {
	if p.runs == nil {
		return nil
	}
	run, err := p.runs.Start(dbctx.New(ctx), p.hubID, trigger, start)
	if err != nil {
		p.log.Warn("Failed to record analysis run start", "error", err)
		return nil
	}
	return run
}

func (p *Pipeline) finishRun(ctx context.Context, run *types.AnalysisRun, status string, res sentry.Result, runErr error) {
	if p.runs == nil || run == nil {
		return
	}
	finished := p.now().UTC()
	run.Status = status
	run.Folded = res.Folded
	run.Malformed = res.Malformed
	run.Published = res.Published
	run.Reason = res.Reason
	run.CohortID = res.CohortID
	run.CohortSize = res.CohortSize
	run.EdgeCount = res.Edges
	run.FinishedAt = &finished
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// a cancelled request still gets its run closed out
	if err := p.runs.Finish(dbctx.New(context.WithoutCancel(ctx)), run); err != nil {
		p.log.Warn("Failed to record analysis run finish", "run_id", run.ID, "error", err)
	}
}
