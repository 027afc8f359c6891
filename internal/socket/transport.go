package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fasthttp/websocket"
)

var errTransportClosed = errors.New("transport closed")

type transport interface {
	Name() string
	Send(ctx context.Context, env Envelope) error
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}

// Endpoint paths served by the relay.
const (
	PathWebsocket = "/socket"
	PathPollOpen  = "/socket/poll/open"
	PathPoll      = "/socket/poll"
	PathPollEmit  = "/socket/poll/emit"
)

func websocketURL(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported socket scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + PathWebsocket
	return u.String(), nil
}

func httpOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported socket scheme %q", u.Scheme)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

type wsTransport struct {
	conn *websocket.Conn
	// gorilla-style conns allow one concurrent writer only.
	writeMu chan struct{}
}

func dialWebsocket(ctx context.Context, dialer *websocket.Dialer, origin string, header http.Header) (*wsTransport, error) {
	target, err := websocketURL(origin)
	if err != nil {
		return nil, err
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}
	t := &wsTransport{conn: conn, writeMu: make(chan struct{}, 1)}
	return t, nil
}

func (t *wsTransport) Name() string { return "websocket" }

func (t *wsTransport) Send(ctx context.Context, env Envelope) error {
	select {
	case t.writeMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.writeMu }()
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) Recv(ctx context.Context) (Envelope, error) {
	var env Envelope
	if err := t.conn.ReadJSON(&env); err != nil {
		if ctx.Err() != nil {
			return Envelope{}, ctx.Err()
		}
		return Envelope{}, err
	}
	return env, nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
