// Package brokertest runs a minimal in-process STOMP-over-WebSocket broker
// for transport tests. It speaks just enough of the protocol for a client to
// connect, subscribe, publish and disconnect; it is not a real broker.
package brokertest

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is one parsed STOMP frame.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

type subscription struct {
	client *client
	id     string
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeFrame(f Frame) error {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for k, v := range f.Headers {
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	buf.WriteString("content-length:" + strconv.Itoa(len(f.Body)) + "\n\n")
	buf.Write(f.Body)
	buf.WriteByte(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

// Broker is the test broker. All exported methods are safe for concurrent
// use with the serving goroutines.
type Broker struct {
	srv *httptest.Server

	mu        sync.Mutex
	clients   []*client
	subs      map[string][]subscription
	sends     []Frame
	authSeen  []string
	messageID int
}

var upgrader = websocket.Upgrader{
	Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// New starts a broker on an ephemeral port.
func New() *Broker {
	b := &Broker{subs: make(map[string][]subscription)}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handleWS))
	return b
}

// URL returns the ws:// endpoint clients should dial.
func (b *Broker) URL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

// Close shuts the broker down.
func (b *Broker) Close() {
	b.CloseClients()
	b.srv.Close()
}

// CloseClients drops every live connection without stopping the listener,
// simulating a broker restart.
func (b *Broker) CloseClients() {
	b.mu.Lock()
	clients := b.clients
	b.clients = nil
	b.subs = make(map[string][]subscription)
	b.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
}

// Sends returns a copy of every SEND frame received so far.
func (b *Broker) Sends() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.sends))
	copy(out, b.sends)
	return out
}

// SendsTo filters Sends by destination.
func (b *Broker) SendsTo(destination string) []Frame {
	var out []Frame
	for _, f := range b.Sends() {
		if f.Headers["destination"] == destination {
			out = append(out, f)
		}
	}
	return out
}

// AuthHeaders returns the Authorization values seen on CONNECT frames.
func (b *Broker) AuthHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.authSeen))
	copy(out, b.authSeen)
	return out
}

// SubscriberCount reports how many live subscriptions a destination has.
func (b *Broker) SubscriberCount(destination string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[destination])
}

// Publish delivers a MESSAGE frame to every subscriber of destination and
// reports how many clients it reached.
func (b *Broker) Publish(destination string, body []byte) int {
	b.mu.Lock()
	targets := append([]subscription(nil), b.subs[destination]...)
	b.messageID++
	id := strconv.Itoa(b.messageID)
	b.mu.Unlock()

	for _, sub := range targets {
		sub.client.writeFrame(Frame{
			Command: "MESSAGE",
			Headers: map[string]string{
				"destination":  destination,
				"message-id":   id,
				"subscription": sub.id,
				"content-type": "application/json",
			},
			Body: body,
		})
	}
	return len(targets)
}

func (b *Broker) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	b.mu.Lock()
	b.clients = append(b.clients, c)
	b.mu.Unlock()

	defer b.dropClient(c)

	var stream bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		stream.Write(data)
		for {
			frame, ok := nextFrame(&stream)
			if !ok {
				break
			}
			if frame == nil {
				continue // heartbeat newline
			}
			if done := b.handleFrame(c, *frame); done {
				return
			}
		}
	}
}

func (b *Broker) dropClient(c *client) {
	b.mu.Lock()
	for i, known := range b.clients {
		if known == c {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			break
		}
	}
	for dest, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.client != c {
				kept = append(kept, s)
			}
		}
		b.subs[dest] = kept
	}
	b.mu.Unlock()
	c.conn.Close()
}

func (b *Broker) handleFrame(c *client, f Frame) bool {
	switch f.Command {
	case "CONNECT", "STOMP":
		b.mu.Lock()
		b.authSeen = append(b.authSeen, f.Headers["Authorization"])
		b.mu.Unlock()
		c.writeFrame(Frame{Command: "CONNECTED", Headers: map[string]string{
			"version":    "1.2",
			"heart-beat": "0,0",
		}})

	case "SUBSCRIBE":
		b.mu.Lock()
		dest := f.Headers["destination"]
		b.subs[dest] = append(b.subs[dest], subscription{client: c, id: f.Headers["id"]})
		b.mu.Unlock()

	case "UNSUBSCRIBE":
		b.mu.Lock()
		id := f.Headers["id"]
		for dest, subs := range b.subs {
			kept := subs[:0]
			for _, s := range subs {
				if !(s.client == c && s.id == id) {
					kept = append(kept, s)
				}
			}
			b.subs[dest] = kept
		}
		b.mu.Unlock()

	case "SEND":
		b.mu.Lock()
		b.sends = append(b.sends, f)
		b.mu.Unlock()

	case "DISCONNECT":
		if receipt := f.Headers["receipt"]; receipt != "" {
			c.writeFrame(Frame{Command: "RECEIPT", Headers: map[string]string{"receipt-id": receipt}})
		}
		return true
	}

	if receipt := f.Headers["receipt"]; receipt != "" && f.Command != "DISCONNECT" {
		c.writeFrame(Frame{Command: "RECEIPT", Headers: map[string]string{"receipt-id": receipt}})
	}
	return false
}

// nextFrame pops one complete frame off the stream buffer. A lone newline is
// a heartbeat and yields (nil, true); an incomplete frame yields (nil, false).
func nextFrame(stream *bytes.Buffer) (*Frame, bool) {
	data := stream.Bytes()
	if len(data) == 0 {
		return nil, false
	}
	if data[0] == '\n' || data[0] == '\r' {
		stream.Next(1)
		return nil, true
	}
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return nil, false
	}
	raw := make([]byte, end)
	copy(raw, data[:end])
	stream.Next(end + 1)
	return parseFrame(raw), true
}

func parseFrame(raw []byte) *Frame {
	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		head = raw
	}
	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0], Headers: make(map[string]string)}
	for _, line := range lines[1:] {
		if k, v, ok := strings.Cut(line, ":"); ok {
			if _, dup := f.Headers[k]; !dup {
				f.Headers[k] = v
			}
		}
	}
	f.Body = body
	return f
}
