package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/config"
	"github.com/presale_portal/handler"
	"github.com/presale_portal/model"
	"github.com/presale_portal/repository"
	"github.com/presale_portal/router"
	"github.com/presale_portal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	logger, err := zap.NewProduction()
	if cfg.GinMode != gin.ReleaseMode {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	stageRepo := repository.NewStageRepository(db)
	tokenRepo := repository.NewPaymentTokenRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	walletRepo := repository.NewWalletAddressRepository(db)

	catalogSvc := service.NewCatalogService(tokenRepo, logger)
	if err := catalogSvc.Reload(ctx); err != nil {
		logger.Warn("initial catalog load failed, using built-in list", zap.Error(err))
	}

	priceSvc := service.NewPriceService(
		cfg.PriceFeedBaseURL, cfg.PriceVsCurrency, cfg.PriceRefreshEvery,
		catalogSvc.Items(), catalogSvc.CoinIDs(), rdb, logger,
	)
	stageSvc := service.NewStageService(stageRepo, cfg.StageCacheMaxAge, logger)

	addressSvc, err := service.NewAddressService(cfg.WalletMnemonic, walletRepo)
	if err != nil {
		logger.Fatal("init address service", zap.Error(err))
	}

	authSvc := service.NewAuthService(userRepo, referralRepo, rdb, logger,
		cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	txnSvc := service.NewTransactionService(txnRepo, userRepo, referralRepo,
		stageSvc, priceSvc, catalogSvc, addressSvc, rdb, logger, cfg.PendingTxnExpiry)
	referralSvc := service.NewReferralService(referralRepo, stageSvc, cfg.FrontendURL)

	go priceSvc.Run(ctx)
	go txnSvc.RunExpiry(ctx)
	go catalogSvc.Run(ctx, cfg.CatalogReloadEvery, func() {
		priceSvc.SetCatalog(catalogSvc.Items(), catalogSvc.CoinIDs())
	})

	r := router.SetupRouter(
		authSvc,
		handler.NewAuthHandler(authSvc, userRepo),
		handler.NewStageHandler(stageSvc, catalogSvc),
		handler.NewPriceHandler(priceSvc, logger),
		handler.NewQuoteHandler(priceSvc, stageSvc, catalogSvc, userRepo, logger),
		handler.NewTransactionHandler(txnSvc, userRepo),
		handler.NewReferralHandler(referralSvc),
	)

	logger.Info("presale portal listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
