package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solwatch/tradefeed/internal/constants"
	"github.com/solwatch/tradefeed/internal/models"
)

// DexScreenerClient is the broad discovery tier: a multi-DEX aggregator
// that indexes pairs across every major Solana venue. Its listings include
// abandoned and dust pools, so candidates must clear liquidity and activity
// floors before they are trusted.
type DexScreenerClient struct {
	BaseURL         string
	HTTP            *http.Client
	MinLiquidityUSD float64
}

func NewDexScreenerClient(baseURL string, minLiquidityUSD float64) *DexScreenerClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	if minLiquidityUSD <= 0 {
		minLiquidityUSD = 50
	}
	return &DexScreenerClient{
		BaseURL:         baseURL,
		MinLiquidityUSD: minLiquidityUSD,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type screenerToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type screenerTxns struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type screenerPair struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   screenerToken `json:"baseToken"`
	QuoteToken  screenerToken `json:"quoteToken"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H24 screenerTxns `json:"h24"`
	} `json:"txns"`
}

type screenerResponse struct {
	Pairs []screenerPair `json:"pairs"`
}

func (c *DexScreenerClient) Name() string { return "dexscreener" }

// Resolve fetches every indexed pair for the mint and keeps the
// highest-liquidity candidate that satisfies all acceptance criteria:
// supported DEX, SOL-paired, minimum liquidity, nonzero 24h volume and
// transaction count.
func (c *DexScreenerClient) Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error) {
	u := c.BaseURL + "/latest/dex/tokens/" + tokenMint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{API: "dexscreener", StatusCode: res.StatusCode, Body: body}
	}

	var out screenerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener response: %w", err)
	}

	var best *screenerPair
	for i := range out.Pairs {
		pair := &out.Pairs[i]
		if !c.acceptable(pair) {
			continue
		}
		if best == nil || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}
	if best == nil {
		return nil, ErrNoPool
	}

	// DexScreener does not expose mint decimals; classification consumes
	// ui amounts, so these stay informational defaults.
	return &models.PoolRecord{
		TokenMint:     tokenMint,
		PoolAddress:   best.PairAddress,
		BaseMint:      best.BaseToken.Address,
		QuoteMint:     best.QuoteToken.Address,
		BaseDecimals:  9,
		QuoteDecimals: 9,
	}, nil
}

func (c *DexScreenerClient) acceptable(pair *screenerPair) bool {
	if pair.ChainID != "solana" {
		return false
	}
	if !constants.SupportedDexIDs[strings.ToLower(pair.DexID)] {
		return false
	}
	if pair.BaseToken.Address != constants.WSOLMint && pair.QuoteToken.Address != constants.WSOLMint {
		return false
	}
	if pair.Liquidity.USD < c.MinLiquidityUSD {
		return false
	}
	if pair.Volume.H24 <= 0 {
		return false
	}
	if pair.Txns.H24.Buys+pair.Txns.H24.Sells <= 0 {
		return false
	}
	return true
}
