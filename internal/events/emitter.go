package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives one event. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(Event)

// Emitter fans events out to handlers registered per variant. Subscribers
// should treat repeated deliveries of the same signature as idempotent: the
// upstream dedup set is size-bounded and evicts.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	logger   *logrus.Logger
}

func NewEmitter(logger *logrus.Logger) *Emitter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Emitter{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event variant.
func (e *Emitter) Subscribe(t Type, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[t] = append(e.handlers[t], h)
}

// OnTrade registers a handler for classified trades.
func (e *Emitter) OnTrade(fn func(Trade)) {
	e.Subscribe(TypeTrade, func(ev Event) {
		if t, ok := ev.(Trade); ok {
			fn(t)
		}
	})
}

// Emit delivers the event to every handler registered for its variant.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.EventType()]
	e.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.WithFields(logrus.Fields{
						"event": ev.EventType(),
						"panic": r,
					}).Error("event handler panicked")
				}
			}()
			h(ev)
		}()
	}
}
