package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/detector"
	"github.com/solwatch/tradefeed/internal/storage"
	"github.com/solwatch/tradefeed/internal/watchlist"
)

// Handlers contains the dependencies for the status API endpoints. Cache and
// Watchlist are optional; their endpoints answer 503 when unconfigured.
type Handlers struct {
	Engine    *detector.Listener
	Cache     storage.TradeCache
	Watchlist *watchlist.Store
	DevMode   bool
	Logger    *logrus.Logger
}

func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 10*time.Second)
}

// Health is a plain liveness probe.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Status reports the engine lifecycle: active flag, monitored tokens,
// connection state and how long the log stream has been silent.
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Active:          h.Engine.IsActive(),
		MonitoredTokens: h.Engine.GetMonitoredTokens(),
		ConnectionState: h.Engine.ConnectionState().String(),
		LastLogAge:      h.Engine.LastLogAge(),
	})
}

// RecentTrades returns the most recent classified trades from the cache.
// Accepts a limit query parameter (default 100, capped at 200).
func (h *Handlers) RecentTrades(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusServiceUnavailable, "trade cache not configured", nil)
	}

	limit := int64(100)
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 {
			return h.err(c, http.StatusBadRequest, "invalid limit", nil)
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	trades, err := h.Cache.GetRecentTrades(ctx, limit)
	if err != nil {
		h.Logger.WithError(err).Error("failed to read recent trades")
		return h.err(c, http.StatusInternalServerError, "failed to read recent trades", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": trades})
}

// Price returns the last observed price for a token mint.
func (h *Handlers) Price(c echo.Context) error {
	if h.Cache == nil {
		return h.err(c, http.StatusServiceUnavailable, "trade cache not configured", nil)
	}

	token := c.Param("token")
	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	price, err := h.Cache.GetPrice(ctx, token)
	if err != nil {
		return h.err(c, http.StatusNotFound, "no price for token", err.Error())
	}
	return c.JSON(http.StatusOK, PriceResponse{Token: token, Price: price})
}

// WatchlistList returns every queued token mint.
func (h *Handlers) WatchlistList(c echo.Context) error {
	if h.Watchlist == nil {
		return h.err(c, http.StatusServiceUnavailable, "watchlist not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	entries, err := h.Watchlist.List(ctx)
	if err != nil {
		h.Logger.WithError(err).Error("failed to list watchlist")
		return h.err(c, http.StatusInternalServerError, "failed to list watchlist", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": entries})
}

// WatchlistAdd queues a token mint for monitoring.
func (h *Handlers) WatchlistAdd(c echo.Context) error {
	if h.Watchlist == nil {
		return h.err(c, http.StatusServiceUnavailable, "watchlist not configured", nil)
	}

	var req WatchRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	entry, err := h.Watchlist.Add(ctx, req.Mint, req.Label)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.JSON(http.StatusCreated, entry)
}

// WatchlistGet returns one watchlist entry.
func (h *Handlers) WatchlistGet(c echo.Context) error {
	if h.Watchlist == nil {
		return h.err(c, http.StatusServiceUnavailable, "watchlist not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	entry, err := h.Watchlist.Get(ctx, c.Param("mint"))
	if errors.Is(err, watchlist.ErrNotFound) {
		return h.err(c, http.StatusNotFound, "token not on watchlist", nil)
	}
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.JSON(http.StatusOK, entry)
}

// WatchlistRemove drops a token mint from the watchlist.
func (h *Handlers) WatchlistRemove(c echo.Context) error {
	if h.Watchlist == nil {
		return h.err(c, http.StatusServiceUnavailable, "watchlist not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	if err := h.Watchlist.Remove(ctx, c.Param("mint")); err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.NoContent(http.StatusNoContent)
}
