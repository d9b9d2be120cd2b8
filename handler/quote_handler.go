package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/presale_portal/service"
	"go.uber.org/zap"
)

// bonusDebounce coalesces per-keystroke edits before the bonus breakdown
// is recomputed for a live session.
const bonusDebounce = 250 * time.Millisecond

type QuoteHandler struct {
	prices  *service.PriceService
	stages  *service.StageService
	catalog *service.CatalogService
	users   *repository.UserRepository
	logger  *zap.Logger
}

func NewQuoteHandler(prices *service.PriceService, stages *service.StageService, catalog *service.CatalogService, users *repository.UserRepository, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{prices: prices, stages: stages, catalog: catalog, users: users, logger: logger}
}

type quoteRequest struct {
	TokenID     string  `json:"token_id"`
	FiatAmount  float64 `json:"fiat_amount"`
	TokenAmount float64 `json:"token_amount"`
	LastEdited  string  `json:"last_edited"`
}

type quoteResponse struct {
	Quote   service.Quote          `json:"quote"`
	Bonuses service.BonusBreakdown `json:"bonuses"`
}

// POST /api/quote computes a one-shot quote plus bonus breakdown for a
// candidate purchase. Anonymous callers get no signup-dependent bonuses.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, _ := h.catalog.Find(req.TokenID)
	engine := service.NewQuoteEngine(h.prices, token)

	var quote service.Quote
	if req.LastEdited == string(service.EditedToken) {
		quote = engine.SetTokenAmount(req.TokenAmount)
	} else {
		quote = engine.SetFiatAmount(req.FiatAmount)
	}

	c.JSON(http.StatusOK, quoteResponse{
		Quote:   quote,
		Bonuses: h.bonusBreakdown(c.Request.Context(), callerID(c), quote),
	})
}

// bonusBreakdown takes a plain context and user id rather than the gin
// context so the session goroutines can call it safely.
func (h *QuoteHandler) bonusBreakdown(ctx context.Context, userID string, quote service.Quote) service.BonusBreakdown {
	stage, err := h.stages.ActiveStage(ctx)
	if err != nil {
		return service.BonusBreakdown{}
	}

	input := service.BonusInput{
		Amount:  quote.FiatAmount,
		Token:   quote.Token,
		Bonuses: stage.Bonuses,
		Now:     time.Now(),
	}
	if userID != "" {
		if user, err := h.users.FindByID(ctx, userID); err == nil {
			signup := user.SignupDate()
			input.SignupDate = &signup
			input.Purchased = user.Purchased
		}
	}
	return service.CalculateBonuses(input)
}

type quoteEditMessage struct {
	Action  string  `json:"action"`
	Amount  float64 `json:"amount"`
	TokenID string  `json:"token_id"`
}

// GET /api/quote/ws runs an interactive quote session: edit messages come
// in, consistent quotes go out, and price refreshes re-derive the side the
// user did not touch last.
func (h *QuoteHandler) QuoteSession(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// captured up front: the gin context itself must not cross into the
	// session goroutines
	ctx := c.Request.Context()
	userID := callerID(c)

	token, _ := h.catalog.Find(c.Query("token_id"))
	if token.Chain == "" {
		token = model.TokenList[0]
	}
	engine := service.NewQuoteEngine(h.prices, token)

	var writeMu sync.Mutex
	send := func(quote service.Quote, withBonuses bool) bool {
		resp := quoteResponse{Quote: quote}
		if withBonuses {
			resp.Bonuses = h.bonusBreakdown(ctx, userID, quote)
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(resp) == nil
	}

	debounce := service.NewDebouncer(bonusDebounce)
	defer debounce.Stop()

	sub := h.prices.Subscribe()
	defer h.prices.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg quoteEditMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			var quote service.Quote
			switch msg.Action {
			case "set_fiat":
				quote = engine.SetFiatAmount(msg.Amount)
			case "set_token_amount":
				quote = engine.SetTokenAmount(msg.Amount)
			case "set_token":
				next, _ := h.catalog.Find(msg.TokenID)
				quote = engine.SetToken(next)
			default:
				continue
			}

			// quote goes out immediately, the bonus recompute is
			// debounced across the burst of keystrokes
			send(quote, false)
			debounce.Trigger(func() {
				send(engine.Snapshot(), true)
			})
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case _, ok := <-sub:
			if !ok {
				return
			}
			if !send(engine.OnPriceRefresh(), true) {
				return
			}
		}
	}
}
