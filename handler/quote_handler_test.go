package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/presale_portal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newQuoteTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ethereum":{"usd":2000},"bitcoin":{"usd":50000}}`)
	}))
	t.Cleanup(feed.Close)

	logger := zap.NewNop()
	userRepo := repository.NewUserRepository(db)

	catalog := service.NewCatalogService(repository.NewPaymentTokenRepository(db), logger)
	prices := service.NewPriceService(feed.URL, "usd", time.Minute,
		catalog.Items(), model.CoinIDs, nil, logger)
	require.NoError(t, prices.Refresh(ctx))

	stageRepo := repository.NewStageRepository(db)
	require.NoError(t, stageRepo.Create(ctx, &model.Stage{
		ID: "s1", Name: "Stage 1", TokenPrice: 0.05,
		StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour),
		Bonuses: model.StageBonuses{BasePercentage: 5},
	}))
	stages := service.NewStageService(stageRepo, time.Minute, logger)

	h := NewQuoteHandler(prices, stages, catalog, userRepo, logger)

	r := gin.New()
	r.POST("/api/quote", h.GetQuote)
	r.GET("/api/quote/ws", h.QuoteSession)
	return r
}

func postQuote(t *testing.T, r *gin.Engine, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var out map[string]json.RawMessage
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestGetQuoteFiatEdit(t *testing.T) {
	r := newQuoteTestRouter(t)

	code, out := postQuote(t, r, `{"token_id":"eth","fiat_amount":1000,"last_edited":"fiat"}`)
	require.Equal(t, http.StatusOK, code)

	var quote service.Quote
	require.NoError(t, json.Unmarshal(out["quote"], &quote))
	assert.Equal(t, 1000.0, quote.FiatAmount)
	assert.Equal(t, 0.5, quote.TokenAmount)
	assert.Equal(t, "eth", quote.Token.ID)

	var bonuses service.BonusBreakdown
	require.NoError(t, json.Unmarshal(out["bonuses"], &bonuses))
	assert.Equal(t, 5.0, bonuses.TotalPercentage)
	assert.Equal(t, 50.0, bonuses.TotalFiat)
}

func TestGetQuoteTokenEdit(t *testing.T) {
	r := newQuoteTestRouter(t)

	code, out := postQuote(t, r, `{"token_id":"btc","token_amount":0.1,"last_edited":"token"}`)
	require.Equal(t, http.StatusOK, code)

	var quote service.Quote
	require.NoError(t, json.Unmarshal(out["quote"], &quote))
	assert.Equal(t, 0.1, quote.TokenAmount)
	assert.Equal(t, 5000.0, quote.FiatAmount)
}

func TestGetQuoteUnknownTokenDegradesToZeroAmount(t *testing.T) {
	r := newQuoteTestRouter(t)

	code, out := postQuote(t, r, `{"token_id":"mystery","fiat_amount":100,"last_edited":"fiat"}`)
	require.Equal(t, http.StatusOK, code)

	var quote service.Quote
	require.NoError(t, json.Unmarshal(out["quote"], &quote))
	assert.Equal(t, 100.0, quote.FiatAmount)
	assert.Equal(t, 0.0, quote.TokenAmount)
	assert.Equal(t, model.PlaceholderTokenImage, quote.Token.ImageURL)
}

func TestGetQuoteRejectsMalformedBody(t *testing.T) {
	r := newQuoteTestRouter(t)

	code, _ := postQuote(t, r, `{"fiat_amount":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQuoteSessionPushesQuoteThenDebouncedBonuses(t *testing.T) {
	server := httptest.NewServer(newQuoteTestRouter(t))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/quote/ws?token_id=eth"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"action": "set_fiat", "amount": 1000,
	}))

	// the quote comes back immediately, without bonuses
	var first struct {
		Quote   service.Quote          `json:"quote"`
		Bonuses service.BonusBreakdown `json:"bonuses"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 1000.0, first.Quote.FiatAmount)
	assert.Equal(t, 0.5, first.Quote.TokenAmount)
	assert.Equal(t, "eth", first.Quote.Token.ID)
	assert.Empty(t, first.Bonuses.Entries)

	// the bonus recompute follows after the debounce window
	var second struct {
		Quote   service.Quote          `json:"quote"`
		Bonuses service.BonusBreakdown `json:"bonuses"`
	}
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 5.0, second.Bonuses.TotalPercentage)
	assert.Equal(t, 50.0, second.Bonuses.TotalFiat)
}
