package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/solwatch/tradefeed/internal/constants"
	"github.com/solwatch/tradefeed/internal/models"
)

// RaydiumClient is the fast discovery tier: Raydium's own pools API, keyed
// by mint and already sorted by liquidity.
type RaydiumClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewRaydiumClient(baseURL string) *RaydiumClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api-v3.raydium.io"
	}
	return &RaydiumClient{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// HTTPError is a non-2xx response from a pool-metadata API.
type HTTPError struct {
	API        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("%s http %d", e.API, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.API, e.StatusCode, b)
}

type raydiumMint struct {
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type raydiumPool struct {
	ID        string      `json:"id"`
	ProgramID string      `json:"programId"`
	MintA     raydiumMint `json:"mintA"`
	MintB     raydiumMint `json:"mintB"`
	TVL       float64     `json:"tvl"`
}

type raydiumResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Data []raydiumPool `json:"data"`
	} `json:"data"`
}

func (c *RaydiumClient) Name() string { return "raydium-api" }

// Resolve queries pools holding the mint, filtered to WSOL-paired markets.
// Results arrive liquidity-sorted, so the first SOL pair wins.
func (c *RaydiumClient) Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error) {
	q := url.Values{}
	q.Set("mint1", tokenMint)
	q.Set("poolType", "all")
	q.Set("poolSortField", "liquidity")
	q.Set("sortType", "desc")
	q.Set("pageSize", "10")
	q.Set("page", "1")

	u := c.BaseURL + "/pools/info/mint?" + q.Encode()
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
		return nil, &HTTPError{API: "raydium", StatusCode: res.StatusCode, Body: body}
	}

	var out raydiumResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode raydium response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("raydium API reported failure")
	}

	for _, pool := range out.Data.Data {
		if pool.MintA.Address != constants.WSOLMint && pool.MintB.Address != constants.WSOLMint {
			continue
		}
		return &models.PoolRecord{
			TokenMint:     tokenMint,
			PoolAddress:   pool.ID,
			BaseMint:      pool.MintA.Address,
			QuoteMint:     pool.MintB.Address,
			BaseDecimals:  pool.MintA.Decimals,
			QuoteDecimals: pool.MintB.Decimals,
		}, nil
	}

	return nil, ErrNoPool
}
