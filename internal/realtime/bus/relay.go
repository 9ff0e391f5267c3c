package bus

import (
	"context"
	"time"

	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/realtime"
	"github.com/yungbote/learnhub/internal/sentry"
)

// Relay connects a hub to its peers: it announces published graphs and
// bandit summaries and merges summaries it hears from other hubs.
type Relay struct {
	bus     Bus
	engine  *engine.Engine
	hubID   string
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewRelay(b Bus, eng *engine.Engine, hubID string, baseLog *logger.Logger, metrics *observability.Metrics) *Relay {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Relay{
		bus:     b,
		engine:  eng,
		hubID:   hubID,
		log:     baseLog.With("component", "NoticeRelay"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (r *Relay) Name() string { return "bus" }

// Publish announces a freshly published graph. It satisfies sentry.Publisher.
func (r *Relay) Publish(ctx context.Context, g *sentry.Graph) error {
	if g == nil {
		return nil
	}
	if err := r.bus.Publish(ctx, realtime.GraphPublished(r.hubID, g, r.now())); err != nil {
		return err
	}
	r.metrics.IncBusMessage("out", string(realtime.KindGraphPublished))
	return nil
}

// BroadcastSummary sends peers the evidence observed at this hub. Nothing is
// sent before the first local observation.
func (r *Relay) BroadcastSummary(ctx context.Context) error {
	s, err := r.engine.ExportBanditSummary(ctx)
	if err != nil {
		return err
	}
	if s.SampleSize == 0 {
		return nil
	}
	if err := r.bus.Publish(ctx, realtime.BanditSummary(r.hubID, s, r.now())); err != nil {
		return err
	}
	r.metrics.IncBusMessage("out", string(realtime.KindBanditSummary))
	return nil
}

// Start subscribes to the bus until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	return r.bus.StartForwarder(ctx, func(n realtime.Notice) {
		r.handle(ctx, n)
	})
}

func (r *Relay) handle(ctx context.Context, n realtime.Notice) {
	if n.HubID == r.hubID {
		return
	}
	if !n.Valid() {
		r.metrics.IncBusMessage("in", "invalid")
		r.log.Warn("Dropping invalid notice", "kind", n.Kind, "hub_id", n.HubID)
		return
	}
	r.metrics.IncBusMessage("in", string(n.Kind))

	switch n.Kind {
	case realtime.KindBanditSummary:
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		// the notice's hub is who sent it; the engine keys peer evidence by it
		summary := *n.Summary
		summary.HubID = n.HubID
		if _, err := r.engine.MergeRemoteSummary(mctx, summary, "bus"); err != nil {
			if engine.IsFatal(err) {
				r.log.Error("Peer summary merge failed", "hub_id", n.HubID, "error", err)
			}
		}
	case realtime.KindGraphPublished:
		r.log.Info("Peer published skill graph", "hub_id", n.HubID,
			"cohort", n.Graph.DiscoveredCohort, "edges", len(n.Graph.Edges))
	}
}
