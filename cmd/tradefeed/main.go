package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/cache"
	"github.com/solwatch/tradefeed/internal/config"
	"github.com/solwatch/tradefeed/internal/detector"
	"github.com/solwatch/tradefeed/internal/events"
	"github.com/solwatch/tradefeed/internal/pools"
	"github.com/solwatch/tradefeed/internal/rpc"
	"github.com/solwatch/tradefeed/internal/server"
	"github.com/solwatch/tradefeed/internal/stream"
	"github.com/solwatch/tradefeed/internal/watchlist"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	wsEndpoint := cfg.WSUrl
	if wsEndpoint == "" {
		wsEndpoint = stream.ToWSEndpoint(cfg.RPCUrl)
	}
	wsClient, err := stream.Connect(ctx, wsEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect log stream")
	}
	defer wsClient.Close()

	locator := pools.NewLocator(pools.LocatorConfig{
		Tiers: []pools.Tier{
			pools.NewRaydiumClient(cfg.RaydiumAPIUrl),
			pools.NewDexScreenerClient(cfg.DexScreenerAPIUrl, cfg.MinLiquidityUSD),
			pools.NewOnChainScanner(rpcClient, logger),
		},
		CacheTTL: cfg.PoolCacheTTL,
		Logger:   logger,
	})

	emitter := events.NewEmitter(logger)

	manager := stream.NewManager(stream.ManagerConfig{
		Stream:               wsClient,
		Emitter:              emitter,
		Logger:               logger,
		HealthCheckInterval:  cfg.HealthCheckInterval,
		MaxInactivity:        cfg.MaxInactivity,
		ReconnectBase:        cfg.ReconnectBase,
		ReconnectMax:         cfg.ReconnectMax,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})

	engine := detector.NewListener(detector.ListenerConfig{
		Resolver: locator,
		Manager:  manager,
		Fetcher: detector.NewFetcher(detector.FetcherConfig{
			Client:     rpcClient,
			RatePerSec: cfg.FetchRatePerSec,
			Burst:      cfg.FetchBurst,
			Logger:     logger,
		}),
		Classifier: detector.NewClassifier(detector.ClassifierConfig{
			VaultMultiplier:     cfg.VaultMultiplier,
			TokenDustFloor:      cfg.TokenDustFloor,
			SolMaterialityFloor: cfg.SolMaterialityFloor,
			MinTradeSOL:         cfg.MinTradeSOL,
			Logger:              logger,
		}),
		Emitter: emitter,
		Logger:  logger,
	})

	// Optional sinks: sink errors are logged and dropped, the pipeline
	// never blocks on them.
	var tradeCache *cache.RedisCache
	var wlStore *watchlist.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rdb.Close()

		tradeCache = cache.NewRedisCacheFromClient(rdb, logger)
		wlStore, err = watchlist.NewStore(rdb)
		if err != nil {
			logger.WithError(err).Fatal("failed to open watchlist store")
		}

		emitter.OnTrade(func(t events.Trade) {
			if err := tradeCache.AddRecentTrade(ctx, &t.TradeEvent); err != nil {
				logger.WithError(err).Warn("redis cache error")
			}
			if err := tradeCache.UpdatePrice(ctx, t.TokenMint, t.Price); err != nil {
				logger.WithError(err).Warn("price update error")
			}
			if err := tradeCache.PublishTrade(ctx, &t.TradeEvent); err != nil {
				logger.WithError(err).Warn("pub/sub error")
			}
		})
	}

	if cfg.ClickHouseAddr != "" {
		store, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer store.Close()

		emitter.OnTrade(func(t events.Trade) {
			if err := store.InsertTrade(ctx, &t.TradeEvent); err != nil {
				logger.WithError(err).Error("clickhouse insert error")
			}
		})
	}

	emitter.Subscribe(events.TypeMaxReconnectAttempts, func(ev events.Event) {
		logger.Error("max reconnect attempts exceeded; engine degraded, operator action required")
	})

	// Pick the token: explicit config first, then the watchlist.
	token := cfg.TokenMint
	if token == "" && wlStore != nil {
		entries, err := wlStore.List(ctx)
		if err != nil {
			logger.WithError(err).Fatal("failed to read watchlist")
		}
		if len(entries) > 0 {
			token = entries[0].Mint
		}
	}
	if token == "" {
		logger.Fatal("no token to monitor: set TOKEN_MINT or populate the watchlist")
	}

	if err := engine.Start(ctx, token); err != nil {
		logger.WithError(err).Fatal("failed to start swap detection")
	}
	defer engine.Stop()

	emitter.OnTrade(func(t events.Trade) {
		logger.WithFields(logrus.Fields{
			"side":   t.Side,
			"sol":    t.SolAmount,
			"tokens": t.TokenAmount,
			"price":  t.Price,
			"sig":    t.Signature,
		}).Info("trade")
	})

	var srv *server.Server
	if cfg.APIAddr != "" {
		handlers := &server.Handlers{
			Engine:    engine,
			Watchlist: wlStore,
			DevMode:   cfg.DevMode,
			Logger:    logger,
		}
		if tradeCache != nil {
			handlers.Cache = tradeCache
		}
		srv, err = server.NewServer(handlers, server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to build status API")
		}
		go func() {
			if err := srv.Start(); err != nil {
				logger.WithError(err).Info("status API stopped")
			}
		}()
	}

	logger.WithField("token", token).Info("tradefeed running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if srv != nil {
		_ = srv.Shutdown(context.Background())
	}
}
