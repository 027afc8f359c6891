package httpapi

import (
	"errors"
	"sync"
	"time"

	"dineqr/internal/metrics"
	"dineqr/internal/socket"

	"github.com/fasthttp/websocket"
	"github.com/jonboulle/clockwork"
)

var (
	ErrPeerClosed    = errors.New("peer closed")
	ErrPollQueueFull = errors.New("poll queue full")
)

const (
	pollQueueSize = 256
	writeTimeout  = 10 * time.Second
)

type wsPeer struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSPeer(id string, conn *websocket.Conn) *wsPeer {
	return &wsPeer{id: id, conn: conn}
}

func (p *wsPeer) ID() string        { return p.id }
func (p *wsPeer) Transport() string { return "websocket" }

func (p *wsPeer) Send(env socket.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(env)
}

func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// PollPeer queues envelopes until the client's next long-poll request
// collects them.
type PollPeer struct {
	id       string
	clock    clockwork.Clock
	queue    chan socket.Envelope
	done     chan struct{}
	once     sync.Once
	onClose  func(id string)
	lastSeen time.Time
	mu       sync.Mutex
}

func (p *PollPeer) ID() string        { return p.id }
func (p *PollPeer) Transport() string { return "polling" }

func (p *PollPeer) Send(env socket.Envelope) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}
	select {
	case p.queue <- env:
		return nil
	default:
		return ErrPollQueueFull
	}
}

func (p *PollPeer) Close() error {
	p.once.Do(func() {
		close(p.done)
		if p.onClose != nil {
			p.onClose(p.id)
		}
	})
	return nil
}

func (p *PollPeer) touch() {
	p.mu.Lock()
	p.lastSeen = p.clock.Now()
	p.mu.Unlock()
}

func (p *PollPeer) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// wait blocks until at least one envelope is queued or the timeout passes,
// then drains whatever is queued.
func (p *PollPeer) wait(timeout <-chan time.Time, cancel <-chan struct{}) ([]socket.Envelope, error) {
	var batch []socket.Envelope
	select {
	case env := <-p.queue:
		batch = append(batch, env)
	case <-p.done:
		return nil, ErrPeerClosed
	case <-timeout:
		return nil, nil
	case <-cancel:
		return nil, nil
	}
	for {
		select {
		case env := <-p.queue:
			batch = append(batch, env)
		default:
			return batch, nil
		}
	}
}

// PollRegistry tracks long-poll sessions by sid.
type PollRegistry struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	sessions map[string]*PollPeer
}

func NewPollRegistry(clock clockwork.Clock) *PollRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PollRegistry{clock: clock, sessions: make(map[string]*PollPeer)}
}

func (r *PollRegistry) Open(sid string) *PollPeer {
	p := &PollPeer{
		id:      sid,
		clock:   r.clock,
		queue:   make(chan socket.Envelope, pollQueueSize),
		done:    make(chan struct{}),
		onClose: r.remove,
	}
	p.touch()

	r.mu.Lock()
	r.sessions[sid] = p
	r.mu.Unlock()
	metrics.PeerConnected(p.Transport())
	return p
}

func (r *PollRegistry) Get(sid string) (*PollPeer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.sessions[sid]
	return p, ok
}

func (r *PollRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *PollRegistry) remove(sid string) {
	r.mu.Lock()
	p, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if ok {
		metrics.PeerDisconnected(p.Transport())
	}
}

// Idle returns the sessions that have not polled within the given window.
func (r *PollRegistry) Idle(window time.Duration) []*PollPeer {
	cutoff := r.clock.Now().Add(-window)

	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []*PollPeer
	for _, p := range r.sessions {
		if p.idleSince().Before(cutoff) {
			idle = append(idle, p)
		}
	}
	return idle
}
