// Example consumer: tails the live trade feed over Redis Pub/Sub.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/cache"
	"github.com/solwatch/tradefeed/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	tradeCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer tradeCache.Close()

	trades, err := tradeCache.SubscribeTrades(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe")
	}

	logger.Info("trade subscriber running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down subscriber")
			return
		case trade, ok := <-trades:
			if !ok {
				logger.Info("trade channel closed")
				return
			}
			logger.WithFields(logrus.Fields{
				"sig":    trade.Signature,
				"token":  trade.TokenMint,
				"side":   trade.Side,
				"sol":    trade.SolAmount,
				"tokens": trade.TokenAmount,
				"price":  trade.Price,
			}).Info("trade")
		}
	}
}
