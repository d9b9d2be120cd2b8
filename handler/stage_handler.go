package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/service"
)

type StageHandler struct {
	stages  *service.StageService
	catalog *service.CatalogService
}

func NewStageHandler(stages *service.StageService, catalog *service.CatalogService) *StageHandler {
	return &StageHandler{stages: stages, catalog: catalog}
}

// GET /api/stages/active
func (h *StageHandler) GetActiveStage(c *gin.Context) {
	stage, err := h.stages.ActiveStage(c)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveStage) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stage)
}

// GET /api/payment-tokens
func (h *StageHandler) ListPaymentTokens(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.catalog.Items()})
}
