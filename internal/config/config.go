package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl string
	WSUrl  string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Pool discovery
	RaydiumAPIUrl     string
	DexScreenerAPIUrl string
	MinLiquidityUSD   float64
	PoolCacheTTL      time.Duration

	// Subscription lifecycle
	HealthCheckInterval  time.Duration
	MaxInactivity        time.Duration
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxReconnectAttempts int

	// Classifier thresholds. Empirically tuned, not protocol-derived;
	// override per deployment if pool sizes demand it.
	VaultMultiplier     float64
	TokenDustFloor      float64
	SolMaterialityFloor float64
	MinTradeSOL         float64

	// Fetch rate limiting
	FetchRatePerSec float64
	FetchBurst      int

	// Token to monitor at startup (optional if a watchlist is configured)
	TokenMint string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Status API
	APIAddr string
	APIKey  string
	DevMode bool
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WSUrl:  getEnv("SOLANA_WS_URL", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),

		// Pool discovery
		RaydiumAPIUrl:     getEnv("RAYDIUM_API_URL", "https://api-v3.raydium.io"),
		DexScreenerAPIUrl: getEnv("DEXSCREENER_API_URL", "https://api.dexscreener.com"),
		MinLiquidityUSD:   getFloatEnv("MIN_LIQUIDITY_USD", 50),
		PoolCacheTTL:      getDurationEnv("POOL_CACHE_TTL", 5*time.Minute),

		// Subscription lifecycle
		HealthCheckInterval:  getDurationEnv("HEALTH_CHECK_INTERVAL", 30*time.Second),
		MaxInactivity:        getDurationEnv("MAX_INACTIVITY", 120*time.Second),
		ReconnectBase:        getDurationEnv("RECONNECT_BASE", 1*time.Second),
		ReconnectMax:         getDurationEnv("RECONNECT_MAX", 30*time.Second),
		MaxReconnectAttempts: getIntEnv("MAX_RECONNECT_ATTEMPTS", 10),

		// Classifier
		VaultMultiplier:     getFloatEnv("VAULT_MULTIPLIER", 50),
		TokenDustFloor:      getFloatEnv("TOKEN_DUST_FLOOR", 0.01),
		SolMaterialityFloor: getFloatEnv("SOL_MATERIALITY_FLOOR", 0.001),
		MinTradeSOL:         getFloatEnv("MIN_TRADE_SOL", 0.0001),

		// Fetch rate limiting
		FetchRatePerSec: getFloatEnv("FETCH_RATE_PER_SEC", 5),
		FetchBurst:      getIntEnv("FETCH_BURST", 10),

		TokenMint: getEnv("TOKEN_MINT", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Status API
		APIAddr: getEnv("API_ADDR", ""),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
