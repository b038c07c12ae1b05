package events

import (
	"time"

	"github.com/solwatch/tradefeed/internal/models"
)

// Type tags each event variant.
type Type string

const (
	TypeConnected            Type = "connected"
	TypeDisconnected         Type = "disconnected"
	TypeTrade                Type = "trade"
	TypeError                Type = "error"
	TypeConnectionStale      Type = "connection_stale"
	TypeHeartbeat            Type = "heartbeat"
	TypeMaxReconnectAttempts Type = "max-reconnect-attempts"
)

// Event is one variant of the engine's event union.
type Event interface {
	EventType() Type
}

// Connected is emitted once a log subscription is established.
type Connected struct {
	Pool models.PoolRecord `json:"pool"`
}

// Disconnected is emitted when a subscription drops, before any reconnect.
type Disconnected struct {
	Pool   models.PoolRecord `json:"pool"`
	Reason string            `json:"reason"`
}

// Trade wraps a classified swap.
type Trade struct {
	models.TradeEvent
}

// Error carries a non-fatal engine error.
type Error struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

// ConnectionStale is emitted when no logs arrived within the inactivity
// window; a forced reconnect follows.
type ConnectionStale struct {
	Pool      models.PoolRecord `json:"pool"`
	SilentFor time.Duration     `json:"silent_for"`
}

// Heartbeat is emitted for transactions that were processed but rejected,
// so liveness monitors can tell "active but irrelevant" from "dead".
type Heartbeat struct {
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

// MaxReconnectAttempts is terminal: the manager stopped retrying.
type MaxReconnectAttempts struct {
	Pool     models.PoolRecord `json:"pool"`
	Attempts int               `json:"attempts"`
}

func (Connected) EventType() Type            { return TypeConnected }
func (Disconnected) EventType() Type         { return TypeDisconnected }
func (Trade) EventType() Type                { return TypeTrade }
func (Error) EventType() Type                { return TypeError }
func (ConnectionStale) EventType() Type      { return TypeConnectionStale }
func (Heartbeat) EventType() Type            { return TypeHeartbeat }
func (MaxReconnectAttempts) EventType() Type { return TypeMaxReconnectAttempts }
