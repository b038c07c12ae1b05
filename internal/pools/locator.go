// Package pools resolves a token mint to its canonical SOL trading pool.
//
// Resolution is tiered: a fast aggregator API first, a broader multi-DEX
// aggregator second, an on-chain program-account scan last. The first tier
// to produce a pool wins; tier failures are logged and fallen through, never
// propagated. Successful resolutions are cached with a TTL.
package pools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/models"
)

// ErrNoPool is returned by a tier that completed without finding a pool.
var ErrNoPool = errors.New("no matching pool")

// NotFoundError is returned once every tier has been exhausted.
type NotFoundError struct {
	TokenMint string
	Tiers     []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no SOL pool found for %s (tried %s)", e.TokenMint, strings.Join(e.Tiers, ", "))
}

// Tier is one pool discovery source.
type Tier interface {
	Name() string
	Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error)
}

type cacheEntry struct {
	record    models.PoolRecord
	expiresAt time.Time
}

// Locator runs the discovery tiers in order and caches hits.
type Locator struct {
	tiers  []Tier
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// LocatorConfig holds configuration for the locator.
type LocatorConfig struct {
	Tiers    []Tier
	CacheTTL time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time // defaults to time.Now
}

func NewLocator(cfg LocatorConfig) *Locator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Locator{
		tiers:  cfg.Tiers,
		ttl:    cfg.CacheTTL,
		logger: cfg.Logger,
		now:    cfg.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the canonical pool record for the token mint. A cache hit
// short-circuits all network tiers. It returns *NotFoundError only after
// every tier has been attempted.
func (l *Locator) Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error) {
	l.mu.Lock()
	if entry, ok := l.cache[tokenMint]; ok && l.now().Before(entry.expiresAt) {
		record := entry.record
		l.mu.Unlock()
		l.logger.WithField("token", tokenMint).Debug("pool cache hit")
		return &record, nil
	}
	l.mu.Unlock()

	attempted := make([]string, 0, len(l.tiers))
	for _, tier := range l.tiers {
		attempted = append(attempted, tier.Name())

		record, err := tier.Resolve(ctx, tokenMint)
		if err != nil {
			level := l.logger.WithFields(logrus.Fields{
				"tier":  tier.Name(),
				"token": tokenMint,
			})
			if errors.Is(err, ErrNoPool) {
				level.Debug("tier found no pool")
			} else {
				level.WithError(err).Warn("pool discovery tier failed")
			}
			continue
		}

		l.mu.Lock()
		l.cache[tokenMint] = cacheEntry{record: *record, expiresAt: l.now().Add(l.ttl)}
		l.mu.Unlock()

		l.logger.WithFields(logrus.Fields{
			"tier":  tier.Name(),
			"token": tokenMint,
			"pool":  record.PoolAddress,
		}).Info("resolved pool")
		return record, nil
	}

	return nil, &NotFoundError{TokenMint: tokenMint, Tiers: attempted}
}

// Invalidate drops the cached record for a mint, if any.
func (l *Locator) Invalidate(tokenMint string) {
	l.mu.Lock()
	delete(l.cache, tokenMint)
	l.mu.Unlock()
}
