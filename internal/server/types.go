package server

// ErrorResponse is the standardized error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}

// HealthResponse is the health check response.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// StatusResponse reports the engine's lifecycle state.
type StatusResponse struct {
	Active          bool     `json:"active"`
	MonitoredTokens []string `json:"monitored_tokens"`
	ConnectionState string   `json:"connection_state"`
	LastLogAge      string   `json:"last_log_age"`
}

// PriceResponse is the latest observed price for a token mint.
type PriceResponse struct {
	Token string  `json:"token"`
	Price float64 `json:"price"`
}

// WatchRequest adds a token mint to the watchlist.
type WatchRequest struct {
	Mint  string `json:"mint"`
	Label string `json:"label,omitempty"`
}
