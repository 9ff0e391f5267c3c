package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnhub/internal/http/response"
	"github.com/yungbote/learnhub/internal/platform/ctxutil"
	"github.com/yungbote/learnhub/internal/platform/hubtoken"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

// HubAuth guards the federation endpoints with hub-signed bearer tokens.
type HubAuth struct {
	log    *logger.Logger
	signer *hubtoken.Signer
}

func NewHubAuth(log *logger.Logger, signer *hubtoken.Signer) *HubAuth {
	if log == nil {
		log = logger.Nop()
	}
	return &HubAuth{log: log.With("middleware", "HubAuth"), signer: signer}
}

func (h *HubAuth) RequireHub() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.signer.Enabled() {
			response.RespondError(c, http.StatusServiceUnavailable, "federation_disabled", errors.New("federation secret not configured"))
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		claims, err := h.signer.Verify(tokenString)
		if err != nil {
			h.log.Debug("Hub token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		ctx := ctxutil.WithHubData(c.Request.Context(), &ctxutil.HubData{HubID: claims.Subject, Level: claims.Level})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
