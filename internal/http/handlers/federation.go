package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnhub/internal/http/response"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/platform/ctxutil"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type FederationHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

func NewFederationHandler(eng *engine.Engine, baseLog *logger.Logger) *FederationHandler {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &FederationHandler{engine: eng, log: baseLog.With("handler", "FederationHandler")}
}

func (h *FederationHandler) Summary(c *gin.Context) {
	s, err := h.engine.ExportBanditSummary(c.Request.Context())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, s)
}

// Merge records a peer's summary and returns the rebuilt combined summary.
func (h *FederationHandler) Merge(c *gin.Context) {
	var remote federation.Summary
	if err := c.ShouldBindJSON(&remote); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	// the token names the sending hub; the body cannot claim another one
	if hd := ctxutil.GetHubData(c.Request.Context()); hd != nil && strings.TrimSpace(hd.HubID) != "" {
		remote.HubID = hd.HubID
	}
	merged, err := h.engine.MergeRemoteSummary(c.Request.Context(), remote, "http")
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, merged)
}
