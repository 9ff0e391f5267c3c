package app

import (
	server "github.com/yungbote/learnhub/internal/http"
	httpH "github.com/yungbote/learnhub/internal/http/handlers"
	httpMW "github.com/yungbote/learnhub/internal/http/middleware"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/hubtoken"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Learning   *httpH.LearningHandler
	Sentry     *httpH.SentryHandler
	Federation *httpH.FederationHandler
}

func wireHandlers(cfg Config, log *logger.Logger, eng *engine.Engine, miner *sentry.Miner, runner httpH.AnalysisRunner) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(cfg.HubID),
		Learning:   httpH.NewLearningHandler(eng, miner, cfg.CatalogPath, cfg.Sentry.MasteryThreshold, log),
		Sentry:     httpH.NewSentryHandler(miner, runner, log),
		Federation: httpH.NewFederationHandler(eng, log),
	}
}

func routerConfig(log *logger.Logger, metrics *observability.Metrics, cfg Config, h Handlers, signer *hubtoken.Signer) server.RouterConfig {
	return server.RouterConfig{
		ServiceName:       ServiceName,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		Log:               log,
		Metrics:           metrics,
		HubAuth:           httpMW.NewHubAuth(log, signer),
		HealthHandler:     h.Health,
		LearningHandler:   h.Learning,
		SentryHandler:     h.Sentry,
		FederationHandler: h.Federation,
	}
}

func wireServer(rc server.RouterConfig) *server.Server {
	return server.NewServer(rc)
}
