// Package stream owns the log-stream subscription lifecycle for a monitored
// pool: connect, health-check, exponential-backoff reconnect, forced
// reconnect on staleness.
package stream

import "context"

// LogEvent is one delivery from a log subscription.
type LogEvent struct {
	Signature string
	Err       interface{} // non-nil when the transaction itself failed
	Logs      []string
}

// Subscription is a live log subscription.
type Subscription interface {
	// Recv blocks until the next log delivery or an error. An error means
	// the subscription is dead and must be re-established.
	Recv(ctx context.Context) (*LogEvent, error)
	Unsubscribe()
}

// Client opens log subscriptions filtered server-side by a mentioned
// address, so the engine never sees the whole program firehose.
type Client interface {
	SubscribeMentions(ctx context.Context, address string) (Subscription, error)
}

// Handler receives every log delivery from the active subscription.
type Handler func(LogEvent)
