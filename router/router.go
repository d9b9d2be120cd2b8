package router

import (
	"github.com/gin-gonic/gin"
	"github.com/presale_portal/handler"
	"github.com/presale_portal/service"
)

func SetupRouter(
	auth *service.AuthService,
	authHandler *handler.AuthHandler,
	stageHandler *handler.StageHandler,
	priceHandler *handler.PriceHandler,
	quoteHandler *handler.QuoteHandler,
	txnHandler *handler.TransactionHandler,
	referralHandler *handler.ReferralHandler,
) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)

		api.GET("/stages/active", stageHandler.GetActiveStage)
		api.GET("/payment-tokens", stageHandler.ListPaymentTokens)

		api.GET("/prices", priceHandler.GetPrices)
		api.GET("/prices/ws", priceHandler.StreamPrices)
	}

	quote := api.Group("/quote", handler.OptionalAuth(auth))
	{
		quote.POST("", quoteHandler.GetQuote)
		quote.GET("/ws", quoteHandler.QuoteSession)
	}

	authed := api.Group("", handler.AuthRequired(auth))
	{
		authed.GET("/users/:id", authHandler.GetUser)
		authed.PATCH("/users/:id", authHandler.UpdateUser)

		authed.POST("/transactions", txnHandler.Create)
		authed.GET("/transactions", txnHandler.List)
		authed.GET("/transactions/recent", txnHandler.Recent)
		authed.GET("/transactions/:id", txnHandler.Get)

		authed.GET("/referrals/stats", referralHandler.GetStats)
	}

	return r
}
