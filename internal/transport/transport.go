package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Subscribe and Publish while the underlying
// connection is down. Publishes are not queued; the caller decides whether
// to retry.
var ErrNotConnected = errors.New("transport not connected")

// HandlerFunc receives the raw payload of one delivery on a subscribed topic.
type HandlerFunc func(body []byte)

// UnsubscribeFunc tears down a single subscription. Safe to call more than
// once.
type UnsubscribeFunc func()

// Transport is a publish/subscribe messaging channel. Implementations own
// reconnection; on every connectivity transition they invoke the registered
// connection-change listeners exactly once, so dependents can re-subscribe.
//
// Delivery is at-least-once per subscription with no ordering guarantee
// across topics.
type Transport interface {
	// Connect establishes the connection. On success the transport keeps
	// itself connected, redialing with backoff after drops until Disconnect.
	Connect(ctx context.Context) error

	// Subscribe registers a handler for one topic. Before the connection is
	// established it fails gracefully: the returned unsubscribe is a no-op
	// and the error is ErrNotConnected.
	Subscribe(topic string, handler HandlerFunc) (UnsubscribeFunc, error)

	// Publish sends a JSON-encoded payload to a destination. While
	// disconnected it returns ErrNotConnected without queueing.
	Publish(destination string, payload any) error

	// Disconnect closes the connection and stops reconnecting.
	Disconnect() error

	IsConnected() bool

	// OnConnectionChange registers a listener invoked with true after every
	// successful (re)connect and false after every drop.
	OnConnectionChange(listener func(connected bool))
}
