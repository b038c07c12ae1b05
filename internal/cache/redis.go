package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/constants"
	"github.com/solwatch/tradefeed/internal/models"
)

// RedisCache keeps a capped recent-trades list and last-price keys, and
// fans trades out over Pub/Sub for downstream consumers. Sink errors are the
// caller's to log and drop; the detection pipeline never blocks on Redis.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	Addr   string
	DB     int
	Logger *logrus.Logger
}

func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCache{client: client, logger: cfg.Logger}, nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it.
func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// AddRecentTrade pushes the trade onto the recent list, trimming to the cap.
func (r *RedisCache) AddRecentTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentTrades, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentTrades, 0, constants.MaxRecentTrades-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent trade: %w", err)
	}
	return nil
}

// UpdatePrice stores the latest observed price for the token.
func (r *RedisCache) UpdatePrice(ctx context.Context, token string, price float64) error {
	key := constants.RedisKeyPricePrefix + token
	if err := r.client.Set(ctx, key, price, 0).Err(); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

// GetRecentTrades returns up to limit most recent trades, newest first.
func (r *RedisCache) GetRecentTrades(ctx context.Context, limit int64) ([]*models.TradeEvent, error) {
	if limit <= 0 {
		limit = constants.MaxRecentTrades
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentTrades, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent trades: %w", err)
	}

	trades := make([]*models.TradeEvent, 0, len(vals))
	for _, v := range vals {
		var trade models.TradeEvent
		if err := json.Unmarshal([]byte(v), &trade); err != nil {
			r.logger.WithError(err).Warn("skipping malformed cached trade")
			continue
		}
		trades = append(trades, &trade)
	}
	return trades, nil
}

// GetPrice returns the last stored price for the token.
func (r *RedisCache) GetPrice(ctx context.Context, token string) (float64, error) {
	key := constants.RedisKeyPricePrefix + token
	price, err := r.client.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, fmt.Errorf("no price for token %s", token)
	}
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}
	return price, nil
}

// PublishTrade publishes the trade to the global channel and the
// token-scoped channel.
func (r *RedisCache) PublishTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	channels := []string{
		constants.PubSubChannelTrades,
		constants.PubSubChannelTradesToken + trade.TokenMint,
	}

	pipe := r.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

// SubscribeTrades delivers trades published on the global channel until the
// context is cancelled.
func (r *RedisCache) SubscribeTrades(ctx context.Context) (<-chan *models.TradeEvent, error) {
	pubsub := r.client.Subscribe(ctx, constants.PubSubChannelTrades)

	out := make(chan *models.TradeEvent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var trade models.TradeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &trade); err != nil {
					r.logger.WithError(err).Warn("skipping malformed published trade")
					continue
				}
				select {
				case out <- &trade:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
