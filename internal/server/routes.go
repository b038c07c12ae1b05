package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures routes, middleware, and error handlers.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	// Coarse per-client rate limit across the whole API.
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(10),
		Burst:     20,
		ExpiresIn: 2 * time.Minute,
	})))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/status", h.Status)
	v1.GET("/trades/recent", h.RecentTrades)
	v1.GET("/prices/:token", h.Price)

	wl := v1.Group("/watchlist")
	wl.GET("", h.WatchlistList)
	wl.POST("", h.WatchlistAdd)
	wl.GET("/:mint", h.WatchlistGet)
	wl.DELETE("/:mint", h.WatchlistRemove)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
