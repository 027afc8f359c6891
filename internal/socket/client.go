package socket

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"dineqr/internal/domain"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

var (
	ErrNotConnected     = errors.New("socket is not connected")
	ErrAlreadyConnected = errors.New("socket is already connected")
	ErrClosed           = errors.New("socket is closed")
)

const (
	defaultReconnectDelay = 2 * time.Second
	defaultHandshake      = 10 * time.Second
)

type Options struct {
	// URL is the http(s) origin of the relay; the websocket and polling
	// endpoints are derived from it.
	URL            string
	Header         http.Header
	Cookies        []*http.Cookie
	ClientID       string
	ReconnectDelay time.Duration
	DisablePolling bool
	HTTPClient     *http.Client
	Dialer         *websocket.Dialer
}

type join struct {
	event string
	scope domain.Scope
}

// Client is a long-lived, reconnecting event channel. Handlers registered with
// On run sequentially on the client's read goroutine.
type Client struct {
	*Dispatcher

	opts   Options
	header http.Header

	mu        sync.Mutex
	transport transport
	joins     []join
	running   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	connected chan struct{}
}

func New(opts Options) *Client {
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshake,
		}
	}

	header := http.Header{}
	copyHeader(header, opts.Header)
	header.Set(ClientHeader, opts.ClientID)
	if len(opts.Cookies) > 0 {
		parts := make([]string, 0, len(opts.Cookies))
		for _, c := range opts.Cookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		header.Set("Cookie", strings.Join(parts, "; "))
	}

	return &Client{
		Dispatcher: NewDispatcher(),
		opts:       opts,
		header:     header,
		connected:  make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.opts.ClientID }

// Connect starts the background connection loop and returns immediately.
// The loop, and any live transport, ends when ctx is cancelled or the client
// is closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.running {
		return ErrAlreadyConnected
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
	return nil
}

// WaitConnected blocks until a transport is live or ctx ends.
func (c *Client) WaitConnected(ctx context.Context) error {
	c.mu.Lock()
	ch := c.connected
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil
}

// Transport names the live transport ("websocket" or "polling"), or "" when
// disconnected.
func (c *Client) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return ""
	}
	return c.transport.Name()
}

// Emit sends a fire-and-forget event. Nothing is buffered while disconnected.
func (c *Client) Emit(event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()

	if t == nil {
		return ErrNotConnected
	}
	return t.Send(context.Background(), env)
}

// Join emits a channel join and remembers it so the scope is joined again
// after the transport reconnects. A join issued while disconnected is sent
// as soon as a transport comes up.
func (c *Client) Join(event string, scope domain.Scope) error {
	c.mu.Lock()
	known := false
	for _, j := range c.joins {
		if j.event == event && j.scope == scope {
			known = true
			break
		}
	}
	if !known {
		c.joins = append(c.joins, join{event: event, scope: scope})
	}
	c.mu.Unlock()

	if err := c.Emit(event, scope); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// Leave forgets a remembered join. The server keeps the membership until the
// transport drops.
func (c *Client) Leave(event string, scope domain.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, j := range c.joins {
		if j.event == event && j.scope == scope {
			c.joins = append(c.joins[:i], c.joins[i+1:]...)
			return
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	t := c.transport
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		t.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	for {
		t, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("socket: connect to %s failed: %v", c.opts.URL, err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		if !c.attach(t) {
			t.Close()
			return
		}
		log.Printf("socket: connected to %s over %s", c.opts.URL, t.Name())
		c.rejoin(ctx, t)

		// Recv on a websocket only returns once the connection is closed.
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				t.Close()
			case <-stop:
			}
		}()

		err = c.readLoop(ctx, t)
		close(stop)
		c.detach()
		t.Close()

		if ctx.Err() != nil {
			return
		}
		log.Printf("socket: connection lost: %v; reconnecting in %s", err, c.opts.ReconnectDelay)
		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (transport, error) {
	ws, wsErr := dialWebsocket(ctx, c.opts.Dialer, c.opts.URL, c.header)
	if wsErr == nil {
		return ws, nil
	}
	if c.opts.DisablePolling {
		return nil, wsErr
	}

	poll, err := openPoll(ctx, c.opts.HTTPClient, c.opts.URL, c.header)
	if err != nil {
		return nil, errors.Join(wsErr, err)
	}
	return poll, nil
}

func (c *Client) attach(t transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.transport = t
	close(c.connected)
	return true
}

func (c *Client) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = nil
	c.connected = make(chan struct{})
}

func (c *Client) rejoin(ctx context.Context, t transport) {
	c.mu.Lock()
	joins := append([]join(nil), c.joins...)
	c.mu.Unlock()

	for _, j := range joins {
		env, err := NewEnvelope(j.event, j.scope)
		if err != nil {
			continue
		}
		if err := t.Send(ctx, env); err != nil {
			log.Printf("socket: rejoin %s for hotel %s failed: %v", j.event, j.scope.HotelKey, err)
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, t transport) error {
	for {
		env, err := t.Recv(ctx)
		if err != nil {
			return err
		}
		if env.Event == "" {
			continue
		}
		c.Dispatch(env)
	}
}

func (c *Client) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.opts.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
