package core

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/transport"
)

// subscription records the declared intent for one topic. The intent
// survives connection loss; cancel is the live transport-side teardown when
// attached, nil while detached.
type subscription struct {
	topic      string
	handler    transport.HandlerFunc
	persistent bool
	cancel     transport.UnsubscribeFunc
}

// SubscriptionRegistry tracks active topic subscriptions on top of a
// transport. Persistent subscriptions (personal queues) survive conversation
// switches and are replayed on reconnect; non-persistent ones are torn down
// by UnsubscribeNonPersistent when the active conversation changes.
//
// The registry is owned by the session loop and is not safe for concurrent
// use.
type SubscriptionRegistry struct {
	transport transport.Transport
	log       *zerolog.Logger
	subs      map[string]*subscription
}

// NewSubscriptionRegistry builds a registry bound to a transport.
func NewSubscriptionRegistry(t transport.Transport, logger *zerolog.Logger) *SubscriptionRegistry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SubscriptionRegistry{
		transport: t,
		log:       logger,
		subs:      make(map[string]*subscription),
	}
}

// Subscribe registers a handler for a topic. Subscribing to an already
// subscribed topic replaces the handler rather than stacking a duplicate
// subscription; stacking is what causes double message delivery. While the
// transport is down the intent is recorded and attached on the next
// ResubscribeAll.
func (r *SubscriptionRegistry) Subscribe(topic string, handler transport.HandlerFunc, persistent bool) error {
	if existing, ok := r.subs[topic]; ok && existing.cancel != nil {
		existing.cancel()
	}

	sub := &subscription{topic: topic, handler: handler, persistent: persistent}
	r.subs[topic] = sub
	return r.attach(sub)
}

// Unsubscribe removes a topic subscription. Unknown topics are a no-op.
func (r *SubscriptionRegistry) Unsubscribe(topic string) {
	sub, ok := r.subs[topic]
	if !ok {
		return
	}
	if sub.cancel != nil {
		sub.cancel()
	}
	delete(r.subs, topic)
}

// UnsubscribeNonPersistent tears down every subscription tied to the
// previously active conversation, leaving personal queues in place.
func (r *SubscriptionRegistry) UnsubscribeNonPersistent() {
	for topic, sub := range r.subs {
		if sub.persistent {
			continue
		}
		if sub.cancel != nil {
			sub.cancel()
		}
		delete(r.subs, topic)
	}
}

// ResubscribeAll reinstates persistent subscriptions after a connectivity
// transition. Non-persistent entries are dropped: the session re-establishes
// them for whatever conversation is active.
func (r *SubscriptionRegistry) ResubscribeAll() {
	for topic, sub := range r.subs {
		if !sub.persistent {
			delete(r.subs, topic)
			continue
		}
		// The previous attachment may still be live: the connect-time
		// replay races the initial Subscribe calls. Cancel before
		// re-attaching so a topic never holds two transport subscriptions;
		// on a dead connection the cancel is a no-op.
		if sub.cancel != nil {
			sub.cancel()
			sub.cancel = nil
		}
		if err := r.attach(sub); err != nil {
			r.log.Warn().Err(err).Str("topic", topic).Msg("resubscribe failed")
		}
	}
}

// Subscribed reports whether a topic currently has a registered intent.
func (r *SubscriptionRegistry) Subscribed(topic string) bool {
	_, ok := r.subs[topic]
	return ok
}

func (r *SubscriptionRegistry) attach(sub *subscription) error {
	cancel, err := r.transport.Subscribe(sub.topic, sub.handler)
	if err != nil {
		sub.cancel = nil
		if errors.Is(err, transport.ErrNotConnected) {
			// Intent is kept; it attaches on the next reconnect replay.
			r.log.Debug().Str("topic", sub.topic).Msg("subscribe deferred until connect")
			return nil
		}
		return err
	}
	sub.cancel = cancel
	return nil
}
