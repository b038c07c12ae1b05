package pools

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/tradefeed/internal/models"
)

const (
	testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testPool = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
)

type stubTier struct {
	name   string
	record *models.PoolRecord
	err    error

	mu    sync.Mutex
	calls int
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubTier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestLocatorFirstTierWins(t *testing.T) {
	fast := &stubTier{name: "fast", record: &models.PoolRecord{TokenMint: testMint, PoolAddress: testPool}}
	slow := &stubTier{name: "slow", record: &models.PoolRecord{TokenMint: testMint, PoolAddress: "other"}}

	l := NewLocator(LocatorConfig{Tiers: []Tier{fast, slow}, Logger: quietLogger()})

	record, err := l.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, testPool, record.PoolAddress)
	assert.Equal(t, 1, fast.callCount())
	assert.Equal(t, 0, slow.callCount())
}

func TestLocatorFallsThroughFailures(t *testing.T) {
	// The first tier errors hard, the second finds nothing, the third hits.
	broken := &stubTier{name: "broken", err: errors.New("http 500")}
	empty := &stubTier{name: "empty", err: ErrNoPool}
	hit := &stubTier{name: "hit", record: &models.PoolRecord{TokenMint: testMint, PoolAddress: testPool}}

	l := NewLocator(LocatorConfig{Tiers: []Tier{broken, empty, hit}, Logger: quietLogger()})

	record, err := l.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, testPool, record.PoolAddress)
	assert.Equal(t, 1, broken.callCount())
	assert.Equal(t, 1, empty.callCount())
}

func TestLocatorNotFound(t *testing.T) {
	a := &stubTier{name: "raydium-api", err: ErrNoPool}
	b := &stubTier{name: "dexscreener", err: ErrNoPool}
	c := &stubTier{name: "onchain-scan", err: ErrNoPool}

	l := NewLocator(LocatorConfig{Tiers: []Tier{a, b, c}, Logger: quietLogger()})

	record, err := l.Resolve(context.Background(), testMint)
	assert.Nil(t, record)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, testMint, notFound.TokenMint)
	assert.Equal(t, []string{"raydium-api", "dexscreener", "onchain-scan"}, notFound.Tiers)
	assert.Contains(t, err.Error(), "raydium-api, dexscreener, onchain-scan")
}

func TestLocatorCache(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	tier := &stubTier{name: "fast", record: &models.PoolRecord{TokenMint: testMint, PoolAddress: testPool}}
	l := NewLocator(LocatorConfig{
		Tiers:    []Tier{tier},
		CacheTTL: 5 * time.Minute,
		Logger:   quietLogger(),
		Now:      func() time.Time { return clock() },
	})

	_, err := l.Resolve(context.Background(), testMint)
	require.NoError(t, err)

	// Second resolve is served from cache: no tier call.
	record, err := l.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, testPool, record.PoolAddress)
	assert.Equal(t, 1, tier.callCount())

	// Past the TTL the tier is consulted again.
	now = now.Add(6 * time.Minute)
	_, err = l.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 2, tier.callCount())
}

func TestLocatorInvalidate(t *testing.T) {
	tier := &stubTier{name: "fast", record: &models.PoolRecord{TokenMint: testMint, PoolAddress: testPool}}
	l := NewLocator(LocatorConfig{Tiers: []Tier{tier}, Logger: quietLogger()})

	_, err := l.Resolve(context.Background(), testMint)
	require.NoError(t, err)

	l.Invalidate(testMint)

	_, err = l.Resolve(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, 2, tier.callCount())
}

func TestLocatorFailuresNotCached(t *testing.T) {
	tier := &stubTier{name: "fast", err: ErrNoPool}
	l := NewLocator(LocatorConfig{Tiers: []Tier{tier}, Logger: quietLogger()})

	_, err := l.Resolve(context.Background(), testMint)
	require.Error(t, err)

	_, err = l.Resolve(context.Background(), testMint)
	require.Error(t, err)
	assert.Equal(t, 2, tier.callCount())
}
