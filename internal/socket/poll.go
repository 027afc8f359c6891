package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// pollTransport is the long-polling fallback used when the websocket
// handshake cannot be completed.
type pollTransport struct {
	origin string
	sid    string
	client *http.Client
	header http.Header

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Envelope
}

func openPoll(ctx context.Context, client *http.Client, origin string, header http.Header) (*pollTransport, error) {
	base, err := httpOrigin(origin)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+PathPollOpen, nil)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, header)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll open: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll open: unexpected status %d", resp.StatusCode)
	}

	var opened struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil || opened.SID == "" {
		return nil, fmt.Errorf("poll open: invalid session response")
	}

	tctx, cancel := context.WithCancel(context.Background())
	return &pollTransport{
		origin: base,
		sid:    opened.SID,
		client: client,
		header: header,
		ctx:    tctx,
		cancel: cancel,
	}, nil
}

func (t *pollTransport) Name() string { return "polling" }

func (t *pollTransport) endpoint(path string) string {
	return t.origin + path + "?sid=" + url.QueryEscape(t.sid)
}

func (t *pollTransport) Send(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(PathPollEmit), bytes.NewReader(body))
	if err != nil {
		return err
	}
	copyHeader(req.Header, t.header)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("poll emit: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollTransport) Recv(ctx context.Context) (Envelope, error) {
	for {
		t.mu.Lock()
		if len(t.pending) > 0 {
			env := t.pending[0]
			t.pending = t.pending[1:]
			t.mu.Unlock()
			return env, nil
		}
		t.mu.Unlock()

		batch, err := t.poll(ctx)
		if err != nil {
			return Envelope{}, err
		}

		t.mu.Lock()
		t.pending = append(t.pending, batch...)
		t.mu.Unlock()
	}
}

func (t *pollTransport) poll(ctx context.Context) ([]Envelope, error) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.ctx.Done():
			cancel()
		case <-rctx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, t.endpoint(PathPoll), nil)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, t.header)

	resp, err := t.client.Do(req)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, errTransportClosed
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var batch []Envelope
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("poll: decode batch: %w", err)
	}
	return batch, nil
}

func (t *pollTransport) Close() error {
	t.cancel()
	return nil
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
