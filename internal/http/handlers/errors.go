package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnhub/internal/http/response"
	"github.com/yungbote/learnhub/internal/learning/engine"
	apperr "github.com/yungbote/learnhub/internal/pkg/errors"
	"github.com/yungbote/learnhub/internal/platform/apierr"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

// respondErr maps domain errors onto the error envelope. Fatal-tier errors
// are logged loudly; they mean the hub's state needs an operator.
func respondErr(c *gin.Context, log *logger.Logger, err error) {
	if ae, ok := apierr.As(err); ok {
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	switch {
	case engine.IsFatal(err):
		log.Error("Fatal engine error", "path", c.FullPath(), "error", err)
		response.RespondError(c, http.StatusInternalServerError, "fatal_state", err)
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, sentry.ErrMalformedEvent):
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrUnauthorized):
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	default:
		log.Error("Request failed", "path", c.FullPath(), "error", err)
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
