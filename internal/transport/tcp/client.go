package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"minhton/internal/domain"
	"minhton/internal/logger"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// PoolOption configures a Pool at construction.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger used for dial/eviction diagnostics.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) { p.lgr = l }
}

type pooledConn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	lastUsed time.Time
}

// Pool maintains one persistent, bidirectional connection per peer
// address, dialing lazily and evicting idle connections on a timer --
// grounded on the teacher's internal/client.Manager, generalized from a
// unary gRPC ClientConn per address to a raw net.Conn whose inbound
// direction is also read continuously and dispatched to handler, so any
// envelope a peer writes back down that connection is delivered too.
type Pool struct {
	handler     Handler
	dialTimeout time.Duration
	idleTTL     time.Duration
	lgr         logger.Logger

	mu     sync.RWMutex
	conns  map[string]*pooledConn
	stopCh chan struct{}
}

// NewPool creates a pool that reads every connection's inbound stream
// with handler. dialTimeout bounds new connection attempts; if idleTTL is
// positive, connections idle for at least that long are closed by a
// background eviction loop.
func NewPool(handler Handler, dialTimeout, idleTTL time.Duration, opts ...PoolOption) *Pool {
	p := &Pool{
		handler:     handler,
		dialTimeout: dialTimeout,
		idleTTL:     idleTTL,
		lgr:         &logger.NopLogger{},
		conns:       make(map[string]*pooledConn),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if idleTTL > 0 {
		go p.evictLoop()
	}
	return p
}

// Close tears down every pooled connection and stops the eviction loop.
func (p *Pool) Close() error {
	close(p.stopCh)
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, pc := range p.conns {
		_ = pc.conn.Close()
		delete(p.conns, addr)
	}
	return nil
}

// Send serializes env and writes it framed to the peer at to, dialing a
// new connection if none is pooled yet.
func (p *Pool) Send(ctx context.Context, to domain.NetworkInfo, env message.Envelope) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: send target has no network address", minhtonerr.ErrTransportFatal)
	}
	pc, err := p.getConn(ctx, to.String())
	if err != nil {
		return err
	}
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = pc.conn.SetWriteDeadline(dl)
	}
	if err := writeEnvelope(pc.conn, env); err != nil {
		p.drop(to.String())
		return fmt.Errorf("%w: write to %s failed: %v", minhtonerr.ErrTransportFatal, to.String(), err)
	}
	return nil
}

func (p *Pool) getConn(ctx context.Context, addr string) (*pooledConn, error) {
	p.mu.RLock()
	if pc, ok := p.conns[addr]; ok {
		pc.lastUsed = time.Now()
		p.mu.RUnlock()
		return pc, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[addr]; ok {
		pc.lastUsed = time.Now()
		return pc, nil
	}

	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", minhtonerr.ErrTransportFatal, addr, err)
	}
	pc := &pooledConn{conn: conn, lastUsed: time.Now()}
	p.conns[addr] = pc
	go func() {
		defer conn.Close()
		runReadLoop(context.Background(), conn, p.handler, p.lgr)
		p.drop(addr)
	}()
	return pc, nil
}

func (p *Pool) drop(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[addr]; ok {
		_ = pc.conn.Close()
		delete(p.conns, addr)
	}
}

func (p *Pool) evictLoop() {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	now := time.Now()
	var stale []string
	p.mu.Lock()
	for addr, pc := range p.conns {
		if now.Sub(pc.lastUsed) >= p.idleTTL {
			stale = append(stale, addr)
		}
	}
	for _, addr := range stale {
		_ = p.conns[addr].conn.Close()
		delete(p.conns, addr)
	}
	p.mu.Unlock()
}
