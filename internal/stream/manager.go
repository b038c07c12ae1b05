package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/events"
	"github.com/solwatch/tradefeed/internal/models"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateSubscribing
	StateSubscribed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ManagerConfig holds configuration for the connection manager.
type ManagerConfig struct {
	Stream  Client
	Emitter *events.Emitter
	Logger  *logrus.Logger

	HealthCheckInterval  time.Duration
	MaxInactivity        time.Duration
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxReconnectAttempts int

	Now func() time.Time // injectable for tests, defaults to time.Now
}

// Manager owns at most one live log subscription. It reconnects with bounded
// exponential backoff on failures, and forces a reconnect when the stream
// goes silent past the inactivity window. Exceeding the attempt budget is
// terminal: a max-reconnect-attempts event is emitted and the manager stops
// retrying; it never panics or returns the failure to a caller, because
// nothing long-lived is calling.
type Manager struct {
	stream  Client
	emitter *events.Emitter
	logger  *logrus.Logger

	healthInterval time.Duration
	maxInactivity  time.Duration
	reconnectBase  time.Duration
	reconnectMax   time.Duration
	maxAttempts    int
	now            func() time.Time

	mu      sync.Mutex
	state   State
	pool    *models.PoolRecord
	sub     Subscription
	lastLog time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.MaxInactivity <= 0 {
		cfg.MaxInactivity = 120 * time.Second
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	return &Manager{
		stream:         cfg.Stream,
		emitter:        cfg.Emitter,
		logger:         cfg.Logger,
		healthInterval: cfg.HealthCheckInterval,
		maxInactivity:  cfg.MaxInactivity,
		reconnectBase:  cfg.ReconnectBase,
		reconnectMax:   cfg.ReconnectMax,
		maxAttempts:    cfg.MaxReconnectAttempts,
		now:            cfg.Now,
	}
}

// Start subscribes to the pool's log stream in the background. It is
// idempotent for the same pool; starting a different pool tears the previous
// subscription down first. Subscription failures are handled by the
// reconnect loop, not returned.
func (m *Manager) Start(ctx context.Context, pool models.PoolRecord, handler Handler) {
	m.mu.Lock()
	if m.pool != nil && m.pool.PoolAddress == pool.PoolAddress && m.state != StateFailed {
		m.mu.Unlock()
		m.logger.WithField("pool", pool.PoolAddress).Debug("already subscribed")
		return
	}
	if m.pool != nil {
		m.stopLocked()
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.pool = &pool
	m.state = StateSubscribing
	m.lastLog = m.now()

	m.wg.Add(2)
	m.mu.Unlock()

	go m.run(runCtx, pool, handler)
	go m.healthLoop(runCtx)
}

// Stop tears down the subscription and all timers. Safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
	m.pool = nil
	m.state = StateDisconnected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pool returns a copy of the monitored pool record, if any.
func (m *Manager) Pool() *models.PoolRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return nil
	}
	pool := *m.pool
	return &pool
}

// LastLogAge reports how long the stream has been silent.
func (m *Manager) LastLogAge() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastLog)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, pool models.PoolRecord, handler Handler) {
	defer m.wg.Done()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(StateSubscribing)
		sub, err := m.stream.SubscribeMentions(ctx, pool.PoolAddress)
		if err != nil {
			m.logger.WithError(err).WithField("pool", pool.PoolAddress).Warn("subscription failed")
			m.emitter.Emit(events.Error{Op: "subscribe", Err: err})
			if !m.retryOrFail(ctx, pool, &attempts) {
				return
			}
			continue
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			sub.Unsubscribe()
			return
		}
		m.sub = sub
		m.state = StateSubscribed
		m.lastLog = m.now()
		m.mu.Unlock()

		attempts = 0
		m.logger.WithField("pool", pool.PoolAddress).Info("subscribed to pool logs")
		m.emitter.Emit(events.Connected{Pool: pool})

		err = m.recvLoop(ctx, sub, handler)
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return
		}

		reason := "stream closed"
		if err != nil {
			reason = err.Error()
		}
		m.logger.WithField("pool", pool.PoolAddress).WithField("reason", reason).Warn("subscription dropped")
		m.emitter.Emit(events.Disconnected{Pool: pool, Reason: reason})
		if !m.retryOrFail(ctx, pool, &attempts) {
			return
		}
	}
}

// retryOrFail counts one failed attempt and sleeps the backoff. It returns
// false when the attempt budget is spent or the context is done.
func (m *Manager) retryOrFail(ctx context.Context, pool models.PoolRecord, attempts *int) bool {
	*attempts++
	if *attempts > m.maxAttempts {
		m.logger.WithFields(logrus.Fields{
			"pool":     pool.PoolAddress,
			"attempts": m.maxAttempts,
		}).Error("max reconnect attempts exceeded, giving up")
		m.setState(StateFailed)
		m.emitter.Emit(events.MaxReconnectAttempts{Pool: pool, Attempts: m.maxAttempts})
		return false
	}

	m.setState(StateReconnecting)
	delay := m.backoff(*attempts - 1)
	m.logger.WithFields(logrus.Fields{
		"pool":    pool.PoolAddress,
		"attempt": *attempts,
		"delay":   delay,
	}).Info("reconnecting")

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// backoff returns min(base * 2^attempt, max).
func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.reconnectBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= m.reconnectMax {
			return m.reconnectMax
		}
	}
	if delay > m.reconnectMax {
		return m.reconnectMax
	}
	return delay
}

func (m *Manager) recvLoop(ctx context.Context, sub Subscription, handler Handler) error {
	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.lastLog = m.now()
		m.mu.Unlock()

		handler(*ev)
	}
}

func (m *Manager) healthLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth()
		}
	}
}

// CheckHealth compares time-since-last-log against the inactivity window
// and forces a reconnect on breach: one connection_stale event, then the
// subscription is torn down so the run loop resubscribes with the monitored
// pool preserved. Returns whether a reconnect was forced.
func (m *Manager) CheckHealth() bool {
	m.mu.Lock()
	if m.state != StateSubscribed || m.pool == nil {
		m.mu.Unlock()
		return false
	}
	silent := m.now().Sub(m.lastLog)
	if silent <= m.maxInactivity {
		m.mu.Unlock()
		return false
	}
	pool := *m.pool
	sub := m.sub
	// Reset so a single breach forces a single reconnect.
	m.lastLog = m.now()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"pool":   pool.PoolAddress,
		"silent": silent,
	}).Warn("connection stale, forcing reconnect")
	m.emitter.Emit(events.ConnectionStale{Pool: pool, SilentFor: silent})

	if sub != nil {
		sub.Unsubscribe()
	}
	return true
}
