package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/service"
)

type ReferralHandler struct {
	referrals *service.ReferralService
}

func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// GET /api/referrals/stats
func (h *ReferralHandler) GetStats(c *gin.Context) {
	summary, err := h.referrals.Summary(c, callerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
