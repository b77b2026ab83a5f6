package core

import (
	"context"
	"testing"
)

func TestSubscribeReplacesInsteadOfStacking(t *testing.T) {
	tp := newFakeTransport()
	tp.Connect(context.Background())
	reg := NewSubscriptionRegistry(tp, nil)

	first, second := 0, 0
	reg.Subscribe("/topic/conversation/10", func([]byte) { first++ }, false)
	reg.Subscribe("/topic/conversation/10", func([]byte) { second++ }, false)

	if n := tp.deliver("/topic/conversation/10", []byte(`{}`)); n != 1 {
		t.Fatalf("expected exactly one active handler, got %d", n)
	}
	if first != 0 || second != 1 {
		t.Fatalf("last-writer-wins violated: first=%d second=%d", first, second)
	}
}

func TestUnsubscribeUnknownTopicIsNoop(t *testing.T) {
	tp := newFakeTransport()
	tp.Connect(context.Background())
	reg := NewSubscriptionRegistry(tp, nil)

	reg.Unsubscribe("/topic/ghost") // must not panic or error
}

func TestUnsubscribeNonPersistentKeepsQueues(t *testing.T) {
	tp := newFakeTransport()
	tp.Connect(context.Background())
	reg := NewSubscriptionRegistry(tp, nil)

	reg.Subscribe("/user/queue/messages", func([]byte) {}, true)
	reg.Subscribe("/topic/conversation/10", func([]byte) {}, false)
	reg.Subscribe("/topic/conversation/10/typing", func([]byte) {}, false)

	reg.UnsubscribeNonPersistent()

	if !reg.Subscribed("/user/queue/messages") {
		t.Fatal("persistent subscription was torn down")
	}
	if reg.Subscribed("/topic/conversation/10") || reg.Subscribed("/topic/conversation/10/typing") {
		t.Fatal("non-persistent subscriptions survived")
	}
	if tp.activeCount("/topic/conversation/10") != 0 {
		t.Fatal("transport-side subscription still active")
	}
}

func TestResubscribeAllReplaysPersistentOnly(t *testing.T) {
	tp := newFakeTransport()
	tp.Connect(context.Background())
	reg := NewSubscriptionRegistry(tp, nil)

	delivered := 0
	reg.Subscribe("/user/queue/messages", func([]byte) { delivered++ }, true)
	reg.Subscribe("/topic/conversation/10", func([]byte) {}, false)

	tp.dropConnection()
	tp.reconnect()
	reg.ResubscribeAll()

	if n := tp.deliver("/user/queue/messages", []byte(`{}`)); n != 1 {
		t.Fatalf("persistent queue not replayed: %d handlers", n)
	}
	if delivered != 1 {
		t.Fatalf("handler not invoked after replay: %d", delivered)
	}
	if reg.Subscribed("/topic/conversation/10") {
		t.Fatal("non-persistent subscription must be dropped on reconnect")
	}
}

func TestResubscribeAllOnLiveConnectionDoesNotStack(t *testing.T) {
	tp := newFakeTransport()
	tp.Connect(context.Background())
	reg := NewSubscriptionRegistry(tp, nil)

	delivered := 0
	reg.Subscribe("/user/queue/messages", func([]byte) { delivered++ }, true)

	// A connectivity notification can replay while the original attachment
	// is still alive; the replay must replace it, not add a second one.
	reg.ResubscribeAll()

	if n := tp.activeCount("/user/queue/messages"); n != 1 {
		t.Fatalf("expected one live attachment, got %d", n)
	}
	if n := tp.deliver("/user/queue/messages", []byte(`{}`)); n != 1 {
		t.Fatalf("expected one handler invocation per event, got %d", n)
	}
	if delivered != 1 {
		t.Fatalf("handler ran %d times for one delivery", delivered)
	}
}

func TestSubscribeBeforeConnectIsDeferred(t *testing.T) {
	tp := newFakeTransport()
	reg := NewSubscriptionRegistry(tp, nil)

	delivered := 0
	if err := reg.Subscribe("/user/queue/messages", func([]byte) { delivered++ }, true); err != nil {
		t.Fatalf("pre-connect subscribe must not error: %v", err)
	}
	if tp.activeCount("/user/queue/messages") != 0 {
		t.Fatal("no transport subscription expected before connect")
	}

	tp.Connect(context.Background())
	reg.ResubscribeAll()

	tp.deliver("/user/queue/messages", []byte(`{}`))
	if delivered != 1 {
		t.Fatalf("deferred subscription not attached: %d", delivered)
	}
}
