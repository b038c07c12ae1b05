// Package detector turns raw pool log deliveries into a clean, directional
// trade event stream: pre-filter, dedup, fetch, classify, emit.
package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/events"
	"github.com/solwatch/tradefeed/internal/models"
	"github.com/solwatch/tradefeed/internal/pools"
	"github.com/solwatch/tradefeed/internal/stream"
)

// PoolResolver resolves a token mint to its canonical pool record.
type PoolResolver interface {
	Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error)
}

// ListenerConfig holds the listener's dependencies. Everything is injected
// so tests can substitute mocks for the network-facing collaborators.
type ListenerConfig struct {
	Resolver   PoolResolver
	Manager    *stream.Manager
	Fetcher    *Fetcher
	Classifier *Classifier
	Emitter    *events.Emitter
	Filter     *LogFilter
	Signatures *SignatureSet
	Logger     *logrus.Logger
}

// Listener is the engine's public control surface. One pool is actively
// subscribed per listener instance; starting a new token tears down the
// previous subscription first. Run multiple listeners for multi-token
// coverage.
type Listener struct {
	resolver   PoolResolver
	manager    *stream.Manager
	fetcher    *Fetcher
	classifier *Classifier
	emitter    *events.Emitter
	filter     *LogFilter
	signatures *SignatureSet
	logger     *logrus.Logger

	mu        sync.Mutex
	monitored map[string]models.PoolRecord
	active    bool
	runCtx    context.Context
	runCancel context.CancelFunc
}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Filter == nil {
		cfg.Filter = NewLogFilter()
	}
	if cfg.Signatures == nil {
		cfg.Signatures = NewSignatureSet(0)
	}
	return &Listener{
		resolver:   cfg.Resolver,
		manager:    cfg.Manager,
		fetcher:    cfg.Fetcher,
		classifier: cfg.Classifier,
		emitter:    cfg.Emitter,
		filter:     cfg.Filter,
		signatures: cfg.Signatures,
		logger:     cfg.Logger,
		monitored:  make(map[string]models.PoolRecord),
	}
}

// Events exposes the emitter so callers can register typed handlers.
func (l *Listener) Events() *events.Emitter {
	return l.emitter
}

// Start resolves the token's pool and subscribes to its log stream. It is
// idempotent for an already-monitored token. Pool resolution failure is the
// one error surfaced synchronously; everything after is handled by the
// reconnect lifecycle.
func (l *Listener) Start(ctx context.Context, tokenMint string) error {
	if tokenMint == "" {
		return fmt.Errorf("token mint is required")
	}

	l.mu.Lock()
	if _, ok := l.monitored[tokenMint]; ok && l.active {
		l.mu.Unlock()
		l.logger.WithField("token", tokenMint).Debug("already monitoring token")
		return nil
	}
	l.mu.Unlock()

	pool, err := l.resolver.Resolve(ctx, tokenMint)
	if err != nil {
		return fmt.Errorf("pool resolution: %w", err)
	}

	return l.StartPool(ctx, *pool)
}

// StartPool subscribes to a prebuilt pool record, bypassing resolution.
func (l *Listener) StartPool(ctx context.Context, pool models.PoolRecord) error {
	if pool.PoolAddress == "" || pool.TokenMint == "" {
		return fmt.Errorf("pool record needs pool address and token mint")
	}

	l.mu.Lock()
	// One active pool per listener: switching tokens replaces the old map
	// entry so GetMonitoredTokens reflects what is actually subscribed.
	for mint := range l.monitored {
		if mint != pool.TokenMint {
			delete(l.monitored, mint)
		}
	}
	l.monitored[pool.TokenMint] = pool
	l.active = true

	if l.runCancel == nil {
		l.runCtx, l.runCancel = context.WithCancel(ctx)
	}
	runCtx := l.runCtx
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"token": pool.TokenMint,
		"pool":  pool.PoolAddress,
	}).Info("starting swap detection")

	l.manager.Start(runCtx, pool, func(ev stream.LogEvent) {
		l.onLog(runCtx, pool, ev)
	})
	return nil
}

// StopToken stops monitoring the given token. A no-op for tokens that are
// not monitored.
func (l *Listener) StopToken(tokenMint string) {
	l.mu.Lock()
	_, ok := l.monitored[tokenMint]
	if ok {
		delete(l.monitored, tokenMint)
	}
	stop := ok && len(l.monitored) == 0
	l.mu.Unlock()

	if stop {
		l.Stop()
	}
}

// Stop cancels all timers, unsubscribes best-effort, and clears tracking
// state. In-flight fetches resolve against the cancelled context and their
// results are discarded; no state is mutated after Stop returns.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.active = false
	l.monitored = make(map[string]models.PoolRecord)
	if l.runCancel != nil {
		l.runCancel()
		l.runCancel = nil
	}
	l.mu.Unlock()

	l.manager.Stop()
	l.logger.Info("swap detection stopped")
}

// IsActive reports whether a subscription lifecycle is running.
func (l *Listener) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// IsMonitoringToken reports whether the token is currently monitored.
func (l *Listener) IsMonitoringToken(tokenMint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.monitored[tokenMint]
	return ok
}

// GetMonitoredTokens lists the monitored token mints.
func (l *Listener) GetMonitoredTokens() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	tokens := make([]string, 0, len(l.monitored))
	for mint := range l.monitored {
		tokens = append(tokens, mint)
	}
	return tokens
}

// ConnectionState reports the underlying subscription state.
func (l *Listener) ConnectionState() stream.State {
	return l.manager.State()
}

// LastLogAge reports how long the log stream has been silent.
func (l *Listener) LastLogAge() string {
	return l.manager.LastLogAge().String()
}

// onLog is the per-delivery entry point. Cheap checks run inline on the
// stream goroutine; surviving candidates get their own pipeline goroutine,
// because the fetch is a network call and deliveries may outpace it.
func (l *Listener) onLog(ctx context.Context, pool models.PoolRecord, ev stream.LogEvent) {
	if ev.Err != nil {
		// The transaction itself failed on-chain; nothing to classify.
		return
	}
	if !l.filter.Match(ev.Logs) {
		return
	}
	if !l.signatures.Admit(ev.Signature) {
		l.logger.WithField("signature", short(ev.Signature)).Debug("duplicate signature")
		return
	}

	go l.pipeline(ctx, pool, ev.Signature)
}

func (l *Listener) pipeline(ctx context.Context, pool models.PoolRecord, signature string) {
	tx, err := l.fetcher.Fetch(ctx, signature)
	if err != nil || tx == nil {
		return
	}
	if ctx.Err() != nil {
		// Stopped while the fetch was in flight; discard the result.
		return
	}

	trade, reason := l.classifier.Classify(tx, pool, signature)
	if trade == nil {
		l.logger.WithFields(logrus.Fields{
			"signature": short(signature),
			"reason":    reason,
		}).Debug("transaction rejected")
		l.emitter.Emit(events.Heartbeat{Signature: signature, Reason: string(reason)})
		return
	}

	l.logger.WithFields(logrus.Fields{
		"signature": short(signature),
		"side":      trade.Side,
		"sol":       trade.SolAmount,
		"tokens":    trade.TokenAmount,
		"price":     trade.Price,
	}).Info("trade detected")
	l.emitter.Emit(events.Trade{TradeEvent: *trade})
}

var _ PoolResolver = (*pools.Locator)(nil)
