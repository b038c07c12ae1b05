package constants

// Native mint (wrapped SOL)
const WSOLMint = "So11111111111111111111111111111111111111112"

// Lamports per SOL
const LamportsPerSOL = 1_000_000_000

// DEX program addresses accepted during pool discovery
var ProgramAddresses = map[string]string{
	"RaydiumAMM":    "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
	"RaydiumCPMM":   "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C",
	"Orca":          "9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP",
	"OrcaWhirlpool": "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc",
	"PumpSwap":      "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
}

// DexScreener dexIds accepted by the broad discovery tier
var SupportedDexIDs = map[string]bool{
	"raydium":  true,
	"orca":     true,
	"meteora":  true,
	"pumpswap": true,
}

// Raydium AMM v4 pool-state layout
const (
	RaydiumAMMStateSize      = 752
	RaydiumAMMBaseMintOffset = 400
)

// Log lines that mark a potential swap. The filter over-matches on purpose:
// a missed swap is unrecoverable, an extra match costs one discarded fetch.
var SwapLogMarkers = []string{
	"Program log: Instruction: Swap",
	"Program log: Instruction: SwapBaseIn",
	"Program log: Instruction: SwapBaseOut",
	"Program log: Instruction: SwapV2",
	"Program log: ray_log",
	"Program log: Instruction: Buy",
	"Program log: Instruction: Sell",
}

// Limits
const (
	ProcessedSignatureCapacity = 1000
	MaxRecentTrades            = 100
)

// Redis keys
const (
	RedisKeyRecentTrades = "trades:recent"
	RedisKeyPricePrefix  = "price:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelTrades      = "trades:all"
	PubSubChannelTradesToken = "trades:token:"
)
