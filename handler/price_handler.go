package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/presale_portal/service"
	"go.uber.org/zap"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the portal frontend is served from a different origin in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

type PriceHandler struct {
	prices *service.PriceService
	logger *zap.Logger
}

func NewPriceHandler(prices *service.PriceService, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// GET /api/prices
func (h *PriceHandler) GetPrices(c *gin.Context) {
	table := h.prices.Table()
	if len(table) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prices not available yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prices":          table,
		"fetched_at":      h.prices.FetchedAt(),
		"next_refresh_in": h.prices.NextRefreshIn().Seconds(),
	})
}

// GET /api/prices/ws pushes every refreshed table to the client until it
// disconnects.
func (h *PriceHandler) StreamPrices(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.prices.Subscribe()
	defer h.prices.Unsubscribe(sub)

	// reader goroutine: we only care about the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if table := h.prices.Table(); len(table) > 0 {
		if err := conn.WriteJSON(gin.H{"prices": table, "fetched_at": h.prices.FetchedAt()}); err != nil {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case table, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"prices": table, "fetched_at": h.prices.FetchedAt()}); err != nil {
				return
			}
		}
	}
}
