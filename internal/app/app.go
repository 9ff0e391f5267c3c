package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/learnhub/internal/data/db"
	"github.com/yungbote/learnhub/internal/data/graph"
	server "github.com/yungbote/learnhub/internal/http"
	"github.com/yungbote/learnhub/internal/jobs/skillgraph_refresh"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/hubtoken"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/realtime/bus"
	"github.com/yungbote/learnhub/internal/sentry"
)

// Version is stamped at build time.
var Version = "dev"

type App struct {
	Log     *logger.Logger
	Cfg     Config
	Metrics *observability.Metrics
	DB      *gorm.DB
	Clients Clients
	Repos   Repos

	Engine   *engine.Engine
	Miner    *sentry.Miner
	Pipeline *skillgraph_refresh.Pipeline
	Trigger  *skillgraph_refresh.Trigger
	Relay    *bus.Relay
	Signer   *hubtoken.Signer
	Server   *server.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("hub_id", cfg.HubID)

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: ServiceName,
		Environment: cfg.Environment,
		Version:     Version,
		HubID:       cfg.HubID,
	})

	var theDB *gorm.DB
	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database, log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init database: %w", err)
		}
		theDB = conn
	}
	reposet := wireRepos(theDB, log)

	clients, err := wireClients(cfg, log)
	if err != nil {
		_ = db.Close(theDB)
		log.Sync()
		return nil, err
	}

	eng := engine.New(engine.Config{
		StatePath: cfg.StatePath,
		HubID:     cfg.HubID,
		Hyper:     cfg.Engine,
	}, log, metrics)
	relay := bus.NewRelay(clients.Bus, eng, cfg.HubID, log, metrics)

	miner := sentry.NewMiner(cfg.Sentry, log, metrics)
	if reposet.SkillGraph != nil {
		miner.AddPublisher(skillgraph_refresh.NewMirrorPublisher(reposet.SkillGraph, cfg.HubID))
	}
	if clients.Neo4j != nil {
		miner.AddPublisher(graph.NewSkillGraphPublisher(clients.Neo4j, log, cfg.HubID))
	}
	miner.AddPublisher(relay)

	pipeline := skillgraph_refresh.New(miner, reposet.AnalysisRuns, cfg.HubID, log, metrics)
	trigger := skillgraph_refresh.NewTrigger(pipeline, cfg.Sentry.EventsDir, cfg.Analysis, log)

	signer := hubtoken.NewSigner(cfg.Federation.Secret, cfg.Federation.TokenTTL)
	handlers := wireHandlers(cfg, log, eng, miner, trigger)
	srv := wireServer(routerConfig(log, metrics, cfg, handlers, signer))

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		DB:           theDB,
		Clients:      clients,
		Repos:        reposet,
		Engine:       eng,
		Miner:        miner,
		Pipeline:     pipeline,
		Trigger:      trigger,
		Relay:        relay,
		Signer:       signer,
		Server:       srv,
		otelShutdown: otelShutdown,
	}, nil
}

// Serve runs the HTTP API, the analysis trigger, the peer relay and the
// summary broadcast until ctx is done or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.HTTP.MetricsAddr)

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
		return a.Server.Run(gctx, a.Cfg.HTTP.Addr)
	})
	g.Go(func() error {
		return a.Trigger.Start(gctx)
	})

	if err := a.Relay.Start(gctx); err != nil {
		a.Log.Warn("Notice relay not started", "error", err)
	} else if a.Cfg.Federation.BroadcastInterval > 0 {
		g.Go(func() error {
			a.broadcastLoop(gctx, a.Cfg.Federation.BroadcastInterval)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) broadcastLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.Relay.BroadcastSummary(ctx); err != nil && ctx.Err() == nil {
				a.Log.Warn("Bandit summary broadcast failed", "error", err)
			}
		}
	}
}

// Close flushes engine state and releases clients.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Engine != nil {
		if err := a.Engine.Save(); err != nil {
			a.Log.Warn("Final state save failed", "error", err)
		}
	}
	a.Clients.Close(ctx)
	if err := db.Close(a.DB); err != nil {
		a.Log.Warn("Database close failed", "error", err)
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
