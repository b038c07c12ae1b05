package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/tradefeed/internal/events"
	"github.com/solwatch/tradefeed/internal/models"
)

type testSub struct {
	done chan struct{}
	once sync.Once
}

func (s *testSub) Recv(ctx context.Context) (*LogEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("unsubscribed")
	}
}

func (s *testSub) Unsubscribe() {
	s.once.Do(func() { close(s.done) })
}

type testClient struct {
	mu      sync.Mutex
	failAll bool
	subs    []*testSub
}

func (c *testClient) SubscribeMentions(ctx context.Context, address string) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return nil, errors.New("connection refused")
	}
	sub := &testSub{done: make(chan struct{})}
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *testClient) subscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testPool() models.PoolRecord {
	return models.PoolRecord{
		TokenMint:   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		PoolAddress: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2",
	}
}

func TestManagerSubscribes(t *testing.T) {
	client := &testClient{}
	logger := quietLogger()
	emitter := events.NewEmitter(logger)

	connected := make(chan events.Connected, 4)
	emitter.Subscribe(events.TypeConnected, func(ev events.Event) {
		if c, ok := ev.(events.Connected); ok {
			connected <- c
		}
	})

	m := NewManager(ManagerConfig{
		Stream:              client,
		Emitter:             emitter,
		Logger:              logger,
		HealthCheckInterval: time.Hour,
	})
	defer m.Stop()

	m.Start(context.Background(), testPool(), func(LogEvent) {})

	select {
	case c := <-connected:
		assert.Equal(t, testPool().PoolAddress, c.Pool.PoolAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("never connected")
	}
	assert.Equal(t, StateSubscribed, m.State())
	assert.Equal(t, 1, client.subscribeCount())

	// Starting the same pool again is a no-op.
	m.Start(context.Background(), testPool(), func(LogEvent) {})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, client.subscribeCount())
}

func TestManagerStaleForcesReconnect(t *testing.T) {
	client := &testClient{}
	logger := quietLogger()
	emitter := events.NewEmitter(logger)
	clock := &fakeClock{t: time.Now()}

	var staleMu sync.Mutex
	var stale []events.ConnectionStale
	emitter.Subscribe(events.TypeConnectionStale, func(ev events.Event) {
		if s, ok := ev.(events.ConnectionStale); ok {
			staleMu.Lock()
			stale = append(stale, s)
			staleMu.Unlock()
		}
	})

	m := NewManager(ManagerConfig{
		Stream:              client,
		Emitter:             emitter,
		Logger:              logger,
		HealthCheckInterval: time.Hour,
		MaxInactivity:       120 * time.Second,
		ReconnectBase:       time.Millisecond,
		Now:                 clock.now,
	})
	defer m.Stop()

	m.Start(context.Background(), testPool(), func(LogEvent) {})
	require.Eventually(t, func() bool {
		return m.State() == StateSubscribed
	}, 2*time.Second, 5*time.Millisecond)

	// Just inside the window: healthy.
	clock.advance(119 * time.Second)
	assert.False(t, m.CheckHealth())

	// Past the window: exactly one stale event and a forced resubscribe.
	clock.advance(2 * time.Second)
	assert.True(t, m.CheckHealth())

	require.Eventually(t, func() bool {
		return client.subscribeCount() == 2 && m.State() == StateSubscribed
	}, 2*time.Second, 5*time.Millisecond)

	staleMu.Lock()
	require.Len(t, stale, 1)
	assert.GreaterOrEqual(t, stale[0].SilentFor, 121*time.Second)
	staleMu.Unlock()

	// The breach was consumed; the stream is healthy again.
	assert.False(t, m.CheckHealth())

	// The monitored pool survived the forced reconnect.
	require.NotNil(t, m.Pool())
	assert.Equal(t, testPool().PoolAddress, m.Pool().PoolAddress)
}

func TestManagerMaxReconnectAttempts(t *testing.T) {
	client := &testClient{failAll: true}
	logger := quietLogger()
	emitter := events.NewEmitter(logger)

	terminal := make(chan events.MaxReconnectAttempts, 1)
	emitter.Subscribe(events.TypeMaxReconnectAttempts, func(ev events.Event) {
		if e, ok := ev.(events.MaxReconnectAttempts); ok {
			terminal <- e
		}
	})

	m := NewManager(ManagerConfig{
		Stream:               client,
		Emitter:              emitter,
		Logger:               logger,
		HealthCheckInterval:  time.Hour,
		ReconnectBase:        time.Millisecond,
		ReconnectMax:         2 * time.Millisecond,
		MaxReconnectAttempts: 3,
	})
	defer m.Stop()

	m.Start(context.Background(), testPool(), func(LogEvent) {})

	select {
	case e := <-terminal:
		assert.Equal(t, 3, e.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal event never emitted")
	}
	assert.Equal(t, StateFailed, m.State())
}

func TestManagerReconnectsOnDrop(t *testing.T) {
	client := &testClient{}
	logger := quietLogger()
	emitter := events.NewEmitter(logger)

	disconnected := make(chan events.Disconnected, 4)
	emitter.Subscribe(events.TypeDisconnected, func(ev events.Event) {
		if d, ok := ev.(events.Disconnected); ok {
			disconnected <- d
		}
	})

	m := NewManager(ManagerConfig{
		Stream:              client,
		Emitter:             emitter,
		Logger:              logger,
		HealthCheckInterval: time.Hour,
		ReconnectBase:       time.Millisecond,
	})
	defer m.Stop()

	m.Start(context.Background(), testPool(), func(LogEvent) {})
	require.Eventually(t, func() bool {
		return m.State() == StateSubscribed
	}, 2*time.Second, 5*time.Millisecond)

	// Kill the live subscription out from under the manager.
	client.mu.Lock()
	client.subs[0].Unsubscribe()
	client.mu.Unlock()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("drop never surfaced")
	}

	require.Eventually(t, func() bool {
		return client.subscribeCount() == 2 && m.State() == StateSubscribed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerStop(t *testing.T) {
	client := &testClient{}
	logger := quietLogger()
	m := NewManager(ManagerConfig{
		Stream:              client,
		Emitter:             events.NewEmitter(logger),
		Logger:              logger,
		HealthCheckInterval: time.Hour,
	})

	m.Start(context.Background(), testPool(), func(LogEvent) {})
	require.Eventually(t, func() bool {
		return m.State() == StateSubscribed
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	assert.Equal(t, StateDisconnected, m.State())
	assert.Nil(t, m.Pool())

	// Safe to call again.
	m.Stop()
}

func TestManagerBackoff(t *testing.T) {
	m := NewManager(ManagerConfig{
		Stream:        &testClient{},
		Emitter:       events.NewEmitter(quietLogger()),
		ReconnectBase: time.Second,
		ReconnectMax:  30 * time.Second,
	})

	assert.Equal(t, time.Second, m.backoff(0))
	assert.Equal(t, 2*time.Second, m.backoff(1))
	assert.Equal(t, 16*time.Second, m.backoff(4))
	assert.Equal(t, 30*time.Second, m.backoff(5))
	assert.Equal(t, 30*time.Second, m.backoff(20))
}

func TestToWSEndpoint(t *testing.T) {
	assert.Equal(t, "wss://api.mainnet-beta.solana.com", ToWSEndpoint("https://api.mainnet-beta.solana.com"))
	assert.Equal(t, "ws://localhost:8899", ToWSEndpoint("http://localhost:8899"))
	assert.Equal(t, "wss://rpc.example.com", ToWSEndpoint("wss://rpc.example.com"))
}
