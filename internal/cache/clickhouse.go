package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/models"
)

// ClickHouseStore persists every classified trade for historical analysis.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// ClickHouseConfig holds configuration for the ClickHouse store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

// InsertTrade appends one classified trade.
func (c *ClickHouseStore) InsertTrade(ctx context.Context, trade *models.TradeEvent) error {
	query := `
		INSERT INTO trades (
			signature, timestamp, pool_address, token_mint,
			side, sol_amount, token_amount, price, user
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		trade.Signature,
		trade.Timestamp,
		trade.PoolAddress,
		trade.TokenMint,
		string(trade.Side),
		trade.SolAmount,
		trade.TokenAmount,
		trade.Price,
		trade.User,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection.
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
