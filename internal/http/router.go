package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/learnhub/internal/http/handlers"
	httpMW "github.com/yungbote/learnhub/internal/http/middleware"
	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	Log         *logger.Logger
	Metrics     *observability.Metrics

	HubAuth *httpMW.HubAuth

	HealthHandler     *httpH.HealthHandler
	LearningHandler   *httpH.LearningHandler
	SentryHandler     *httpH.SentryHandler
	FederationHandler *httpH.FederationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	} else {
		r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	}

	api := r.Group("/api/v1")
	{
		// Engine
		if cfg.LearningHandler != nil {
			api.POST("/lessons/seed", cfg.LearningHandler.SeedLessons)
			api.POST("/students/:id/select", cfg.LearningHandler.SelectLesson)
			api.POST("/students/:id/next", cfg.LearningHandler.NextLesson)
			api.GET("/students/:id/ability", cfg.LearningHandler.StudentAbility)
			api.POST("/observations", cfg.LearningHandler.RecordObservation)
			api.GET("/status", cfg.LearningHandler.Status)
		}

		// Skill graph
		if cfg.SentryHandler != nil {
			api.POST("/events", cfg.SentryHandler.IngestEvents)
			api.GET("/graph", cfg.SentryHandler.GetGraph)
			api.POST("/sentry/analyze", cfg.SentryHandler.Analyze)
		}
	}

	// Federation (hub tokens)
	if cfg.FederationHandler != nil && cfg.HubAuth != nil {
		fed := api.Group("/federation")
		fed.Use(cfg.HubAuth.RequireHub())
		fed.GET("/summary", cfg.FederationHandler.Summary)
		fed.POST("/merge", cfg.FederationHandler.Merge)
	}

	return r
}
