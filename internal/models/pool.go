package models

// PoolRecord is the canonical trading-pool record for a tracked token,
// resolved once and reused for the lifetime of a subscription.
type PoolRecord struct {
	TokenMint     string `json:"token_mint"`
	PoolAddress   string `json:"pool_address"`
	BaseMint      string `json:"base_mint"`
	QuoteMint     string `json:"quote_mint"`
	BaseDecimals  int    `json:"base_decimals"`
	QuoteDecimals int    `json:"quote_decimals"`
}
