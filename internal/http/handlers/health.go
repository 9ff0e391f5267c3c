package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	hubID string
}

func NewHealthHandler(hubID string) *HealthHandler { return &HealthHandler{hubID: hubID} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "hubId": h.hubID})
}
