package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GinMode  string

	DatabaseDSN string

	RedisAddr string
	RedisPass string
	RedisDB   int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PriceFeedBaseURL  string
	PriceRefreshEvery time.Duration
	PriceVsCurrency   string

	WalletMnemonic string

	PendingTxnExpiry   time.Duration
	StageCacheMaxAge   time.Duration
	CatalogReloadEvery time.Duration

	FrontendURL string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("portal: no .env file found, relying on system env vars")
	}

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		DatabaseDSN: getEnv("DATABASE_DSN",
			"host=localhost user=postgres password=postgres dbname=presale port=5432 sslmode=disable"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   intEnv("REDIS_DB", 0),

		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-do-not-use"),
		AccessTokenTTL:  durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: durationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		PriceFeedBaseURL:  getEnv("PRICE_FEED_URL", "https://api.coingecko.com/api/v3"),
		PriceRefreshEvery: durationEnv("PRICE_REFRESH_EVERY", 60*time.Second),
		PriceVsCurrency:   getEnv("PRICE_VS_CURRENCY", "usd"),

		WalletMnemonic: getEnv("WALLET_MNEMONIC", ""),

		PendingTxnExpiry:   durationEnv("PENDING_TXN_EXPIRY", 2*time.Hour),
		StageCacheMaxAge:   durationEnv("STAGE_CACHE_MAX_AGE", 30*time.Second),
		CatalogReloadEvery: durationEnv("CATALOG_RELOAD_EVERY", 5*time.Minute),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
