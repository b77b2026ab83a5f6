package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/arklim/chatsync/internal/proto"
	"github.com/arklim/chatsync/internal/transport"
)

// fakeTransport is an in-memory pub/sub channel for loop tests. Handlers
// stack per topic on purpose so registry tests can detect duplicate
// subscriptions.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	subs      []*fakeSub
	published []fakePublish
	listeners []func(bool)
}

type fakeSub struct {
	topic   string
	handler transport.HandlerFunc
	active  bool
}

type fakePublish struct {
	destination string
	payload     any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.notify(true)
	return nil
}

func (f *fakeTransport) Subscribe(topic string, handler transport.HandlerFunc) (transport.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return func() {}, transport.ErrNotConnected
	}
	sub := &fakeSub{topic: topic, handler: handler, active: true}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.active = false
	}, nil
}

func (f *fakeTransport) Publish(destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.published = append(f.published, fakePublish{destination: destination, payload: payload})
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.subs = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) OnConnectionChange(listener func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, listener)
}

func (f *fakeTransport) notify(connected bool) {
	f.mu.Lock()
	listeners := make([]func(bool), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()
	for _, l := range listeners {
		l(connected)
	}
}

// dropConnection simulates losing the link: live subscriptions die with it.
func (f *fakeTransport) dropConnection() {
	f.mu.Lock()
	f.connected = false
	for _, sub := range f.subs {
		sub.active = false
	}
	f.subs = nil
	f.mu.Unlock()
	f.notify(false)
}

func (f *fakeTransport) reconnect() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.notify(true)
}

// deliver feeds one raw payload to every active handler of the topic.
func (f *fakeTransport) deliver(topic string, body []byte) int {
	f.mu.Lock()
	handlers := make([]transport.HandlerFunc, 0, 1)
	for _, sub := range f.subs {
		if sub.active && sub.topic == topic {
			handlers = append(handlers, sub.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(body)
	}
	return len(handlers)
}

func (f *fakeTransport) deliverJSON(t *testing.T, topic string, payload any) int {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return f.deliver(topic, body)
}

func (f *fakeTransport) activeCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if sub.active && sub.topic == topic {
			n++
		}
	}
	return n
}

func (f *fakeTransport) sentTo(destination string) []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakePublish
	for _, p := range f.published {
		if p.destination == destination {
			out = append(out, p)
		}
	}
	return out
}

// fakeAPI is an in-memory REST collaborator.
type fakeAPI struct {
	mu            sync.Mutex
	conversations []proto.Conversation
	messages      map[int64][]proto.Message
	listCalls     int
	historyGate   chan struct{} // when set, GetMessages blocks until closed
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[int64][]proto.Message)}
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]proto.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]proto.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, conversationID int64) ([]proto.Message, error) {
	f.mu.Lock()
	gate := f.historyGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]proto.Message, len(f.messages[conversationID]))
	copy(out, f.messages[conversationID])
	return out, nil
}

func (f *fakeAPI) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// startSession runs a session against the fakes and waits until the
// persistent queues are attached.
func startSession(t *testing.T, user User, tp *fakeTransport, api *fakeAPI) (*Session, context.CancelFunc) {
	t.Helper()

	s := NewSession(user, tp, api, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := s.Run(ctx); err != nil {
			t.Errorf("session run: %v", err)
		}
	}()

	waitFor(t, func() bool {
		return tp.activeCount(proto.PersonalMessagesQueue) == 1 &&
			tp.activeCount(proto.PersonalReceiptsQueue) == 1
	}, "personal queues subscribed")

	t.Cleanup(cancel)
	return s, cancel
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return Event{}
}

func wireTime(t time.Time) proto.Timestamp {
	return proto.Timestamp{Time: t}
}
