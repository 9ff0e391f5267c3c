package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnhub/internal/http/response"
	"github.com/yungbote/learnhub/internal/platform/apierr"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

const maxEventBatch = 1000

// AnalysisRunner runs (or joins) an analysis pass.
type AnalysisRunner interface {
	RunNow(ctx context.Context, source string) (sentry.Result, error)
}

type SentryHandler struct {
	events *sentry.EventLog
	graph  func() (*sentry.Graph, bool, error)
	runner AnalysisRunner
	log    *logger.Logger
	now    func() time.Time
}

func NewSentryHandler(miner *sentry.Miner, runner AnalysisRunner, baseLog *logger.Logger) *SentryHandler {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &SentryHandler{
		events: miner.EventLog(),
		graph:  miner.Graph,
		runner: runner,
		log:    baseLog.With("handler", "SentryHandler"),
		now:    time.Now,
	}
}

type ingestEventsRequest struct {
	Events []sentry.Event `json:"events"`
}

// IngestEvents appends completion records to today's event file. The batch
// is rejected as a whole if any record is invalid.
func (h *SentryHandler) IngestEvents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 4<<20)
	var req ingestEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Events) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_batch", errors.New("events required"))
		return
	}
	if len(req.Events) > maxEventBatch {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Errorf("at most %d events per request", maxEventBatch))
		return
	}
	now := h.now()
	for i := range req.Events {
		if err := req.Events[i].Validate(); err != nil {
			respondErr(c, h.log, apierr.BadRequest("invalid_event", fmt.Errorf("event %d: %w", i, err)))
			return
		}
		if req.Events[i].CompletedAt.IsZero() {
			req.Events[i].CompletedAt = now.UTC()
		}
	}
	file, err := h.events.Append(req.Events, now)
	if err != nil {
		respondErr(c, h.log, fmt.Errorf("append events: %w", err))
		return
	}
	response.RespondAccepted(c, gin.H{"accepted": len(req.Events), "file": file})
}

func (h *SentryHandler) GetGraph(c *gin.Context) {
	g, ok, err := h.graph()
	if err != nil {
		respondErr(c, h.log, fmt.Errorf("read skill graph: %w", err))
		return
	}
	if !ok {
		response.RespondError(c, http.StatusNotFound, "graph_not_published", errors.New("no skill graph published yet"))
		return
	}
	response.RespondOK(c, g)
}

func (h *SentryHandler) Analyze(c *gin.Context) {
	res, err := h.runner.RunNow(c.Request.Context(), "api")
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}
