// Package stomp implements the transport contract over a STOMP broker
// reachable through a WebSocket endpoint, which is how the chat backend
// exposes its messaging channel.
package stomp

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	gostomp "github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/auth"
	"github.com/arklim/chatsync/internal/transport"
)

const defaultHeartbeat = 25 * time.Second

// Options configures the STOMP transport.
type Options struct {
	// URL is the ws:// or wss:// endpoint of the broker.
	URL string
	// Token, when set, is presented as a bearer Authorization header on both
	// the WebSocket handshake and the STOMP CONNECT frame.
	Token string

	ReconnectMinWait time.Duration
	ReconnectMaxWait time.Duration
}

// Client is a reconnecting STOMP-over-WebSocket transport.
type Client struct {
	opts Options
	log  *zerolog.Logger

	mu         sync.Mutex
	ws         *websocket.Conn
	conn       *gostomp.Conn
	connected  bool
	closed     bool
	generation int
	listeners  []func(bool)
	cancelLife context.CancelFunc
	lifeCtx    context.Context
}

var _ transport.Transport = (*Client)(nil)

// New constructs a disconnected client.
func New(opts Options, logger *zerolog.Logger) *Client {
	if opts.ReconnectMinWait <= 0 {
		opts.ReconnectMinWait = time.Second
	}
	if opts.ReconnectMaxWait < opts.ReconnectMinWait {
		opts.ReconnectMaxWait = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{opts: opts, log: logger}
}

// Connect dials the broker. After the first successful connect the client
// redials on its own after drops until Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.lifeCtx == nil {
		c.lifeCtx, c.cancelLife = context.WithCancel(context.Background())
	}
	c.closed = false
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	headers := http.Header{}
	if c.opts.Token != "" {
		headers.Set("Authorization", auth.BearerHeader(c.opts.Token))
	}

	ws, _, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{
		HTTPHeader:   headers,
		Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	})
	if err != nil {
		return err
	}

	connOpts := []func(*gostomp.Conn) error{
		gostomp.ConnOpt.HeartBeat(defaultHeartbeat, defaultHeartbeat),
	}
	if c.opts.Token != "" {
		connOpts = append(connOpts, gostomp.ConnOpt.Header("Authorization", auth.BearerHeader(c.opts.Token)))
	}

	c.mu.Lock()
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	netConn := websocket.NetConn(lifeCtx, ws, websocket.MessageText)
	conn, err := gostomp.Connect(netConn, connOpts...)
	if err != nil {
		ws.Close(websocket.StatusProtocolError, "stomp connect failed")
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.conn = conn
	c.connected = true
	c.generation++
	c.mu.Unlock()

	c.log.Info().Str("url", c.opts.URL).Msg("stomp connected")
	c.notify(true)
	return nil
}

// Subscribe registers a handler for a topic on the live connection. Handler
// panics are contained per delivery so one bad payload cannot tear down the
// subscription.
func (c *Client) Subscribe(topic string, handler transport.HandlerFunc) (transport.UnsubscribeFunc, error) {
	c.mu.Lock()
	conn := c.conn
	gen := c.generation
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return func() {}, transport.ErrNotConnected
	}

	sub, err := conn.Subscribe(topic, gostomp.AckAuto)
	if err != nil {
		return func() {}, err
	}

	// The channel closes both on deliberate unsubscribe and on connection
	// loss; torn-down marks the former so the pump only redials on the
	// latter.
	tornDown := &atomic.Bool{}
	go c.pump(topic, sub, handler, gen, tornDown)

	var once sync.Once
	return func() {
		once.Do(func() {
			tornDown.Store(true)
			if sub.Active() {
				if err := sub.Unsubscribe(); err != nil {
					c.log.Debug().Err(err).Str("topic", topic).Msg("unsubscribe")
				}
			}
		})
	}, nil
}

func (c *Client) pump(topic string, sub *gostomp.Subscription, handler transport.HandlerFunc, gen int, tornDown *atomic.Bool) {
	for msg := range sub.C {
		if msg == nil {
			break
		}
		if msg.Err != nil {
			c.log.Warn().Err(msg.Err).Str("topic", topic).Msg("subscription error")
			break
		}
		c.dispatch(topic, handler, msg.Body)
	}
	if tornDown.Load() {
		return
	}
	c.maybeReconnect(gen)
}

func (c *Client) dispatch(topic string, handler transport.HandlerFunc, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("topic", topic).Msg("handler panic dropped")
		}
	}()
	handler(body)
}

// Publish JSON-encodes payload and sends it to destination. While the
// connection is down this is a logged no-op returning ErrNotConnected.
func (c *Client) Publish(destination string, payload any) error {
	body, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	gen := c.generation
	c.mu.Unlock()

	if !connected || conn == nil {
		c.log.Warn().Str("destination", destination).Msg("publish dropped: not connected")
		return transport.ErrNotConnected
	}

	if err := conn.Send(destination, "application/json", body); err != nil {
		c.log.Warn().Err(err).Str("destination", destination).Msg("publish failed")
		c.maybeReconnect(gen)
		return err
	}
	return nil
}

// Disconnect shuts the connection down and stops the redial loop.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	ws := c.ws
	wasConnected := c.connected
	c.connected = false
	c.conn = nil
	c.ws = nil
	cancel := c.cancelLife
	c.cancelLife = nil
	c.lifeCtx = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Disconnect()
	}
	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
	}
	if cancel != nil {
		cancel()
	}
	if wasConnected {
		c.notify(false)
	}
	return nil
}

// IsConnected reports current connectivity.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OnConnectionChange registers a connectivity listener.
func (c *Client) OnConnectionChange(listener func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// maybeReconnect starts one redial loop when the connection from the given
// generation died underneath us. Later generations and deliberate disconnects
// are left alone.
func (c *Client) maybeReconnect(gen int) {
	c.mu.Lock()
	if c.closed || !c.connected || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	ws := c.ws
	c.conn = nil
	c.ws = nil
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Disconnect()
	}
	if ws != nil {
		_ = ws.Close(websocket.StatusGoingAway, "reconnecting")
	}

	c.log.Warn().Msg("stomp connection lost")
	c.notify(false)

	go c.reconnectLoop(lifeCtx)
}

func (c *Client) reconnectLoop(ctx context.Context) {
	if ctx == nil {
		return
	}
	wait := c.opts.ReconnectMinWait
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		if err := c.dial(ctx); err == nil {
			return
		} else {
			c.log.Warn().Err(err).Dur("next_wait", wait).Msg("reconnect attempt failed")
		}

		wait *= 2
		if wait > c.opts.ReconnectMaxWait {
			wait = c.opts.ReconnectMaxWait
		}
	}
}

func (c *Client) notify(connected bool) {
	c.mu.Lock()
	listeners := make([]func(bool), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(connected)
	}
}
