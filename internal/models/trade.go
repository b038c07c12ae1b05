package models

import "time"

// Side is the direction of a swap from the user's point of view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent is a classified, directional swap against the tracked pool.
// TokenMint is always the tracked mint, never whatever mint happened to
// appear in the raw transaction.
type TradeEvent struct {
	PoolAddress string    `json:"pool_address"`
	TokenMint   string    `json:"token_mint"`
	SolAmount   float64   `json:"sol_amount"`
	TokenAmount float64   `json:"token_amount"`
	Side        Side      `json:"side"`
	User        string    `json:"user"`
	Signature   string    `json:"signature"`
	Timestamp   time.Time `json:"timestamp"`
	Price       float64   `json:"price"`
}
