package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client issues RPCs to peers over the framed transport, pooling one
// TCP connection per remote endpoint (§9's "resolve peer handles to
// live connections through a connection pool keyed by endpoint", kept
// from the teacher's cluster.Node.peers map[string]*http.Client, here
// generalized to a raw-socket pool instead of an HTTP client pool).
type Client struct {
	mu      sync.Mutex
	conns   map[string]*pooledConn
	nextCID uint64

	dialTimeout time.Duration
}

type pooledConn struct {
	mu      sync.Mutex // serializes writes and guards pending/closed
	conn    net.Conn
	pending map[uint64]chan frameOrErr
	closed  bool
}

type frameOrErr struct {
	env Envelope
	err error
}

// NewClient creates a Client. dialTimeout bounds how long dialing a
// new connection may take; it is independent of each call's deadline.
func NewClient(dialTimeout time.Duration) *Client {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &Client{
		conns:       make(map[string]*pooledConn),
		dialTimeout: dialTimeout,
	}
}

// Call sends kind/body to endpoint and waits for the matching reply,
// honoring ctx's deadline. A caller-supplied deadline shorter than the
// dial timeout still bounds the whole call, including dialing.
func (c *Client) Call(ctx context.Context, endpoint string, kind Kind, body any) (json.RawMessage, error) {
	pc, err := c.connFor(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal body: %w", err)
	}

	cid := atomic.AddUint64(&c.nextCID, 1)
	replyCh := make(chan frameOrErr, 1)

	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		c.evict(endpoint, pc)
		return nil, ErrUnreachable
	}
	pc.pending[cid] = replyCh
	env := Envelope{CorrelationID: cid, Kind: kind, Body: bodyBytes}
	writeErr := writeFrame(pc.conn, env)
	pc.mu.Unlock()

	if writeErr != nil {
		c.evict(endpoint, pc)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, writeErr)
	}

	select {
	case r := <-replyCh:
		if r.err != nil {
			c.evict(endpoint, pc)
			return nil, r.err
		}
		if r.env.Kind == KindError {
			var eb ErrorBody
			if err := json.Unmarshal(r.env.Body, &eb); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFrameCorrupt, err)
			}
			return nil, &RemoteError{Code: eb.Code, Message: eb.Message}
		}
		return r.env.Body, nil
	case <-ctx.Done():
		c.forget(pc, cid)
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

func (c *Client) forget(pc *pooledConn, cid uint64) {
	pc.mu.Lock()
	delete(pc.pending, cid)
	pc.mu.Unlock()
}

func (c *Client) connFor(ctx context.Context, endpoint string) (*pooledConn, error) {
	c.mu.Lock()
	if pc, ok := c.conns[endpoint]; ok && !pc.isClosed() {
		c.mu.Unlock()
		return pc, nil
	}
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	pc := &pooledConn{conn: conn, pending: make(map[uint64]chan frameOrErr)}

	c.mu.Lock()
	if existing, ok := c.conns[endpoint]; ok && !existing.isClosed() {
		// A concurrent call pooled a connection first; use that one.
		c.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	c.conns[endpoint] = pc
	c.mu.Unlock()

	go c.readLoop(endpoint, pc)
	return pc, nil
}

func (pc *pooledConn) isClosed() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}

// readLoop is the single reader for a pooled connection: it decodes
// frames as they arrive and hands each to the goroutine waiting on its
// correlation id. Replies can arrive in any order relative to other
// in-flight calls on the same connection.
func (c *Client) readLoop(endpoint string, pc *pooledConn) {
	for {
		env, err := readFrame(pc.conn)
		if err != nil {
			c.drainWithError(pc, fmt.Errorf("%w: %v", ErrUnreachable, err))
			c.evict(endpoint, pc)
			return
		}
		pc.mu.Lock()
		ch, ok := pc.pending[env.CorrelationID]
		if ok {
			delete(pc.pending, env.CorrelationID)
		}
		pc.mu.Unlock()
		if ok {
			ch <- frameOrErr{env: env}
		}
		// Unmatched replies (timed-out calls) are silently dropped.
	}
}

func (c *Client) drainWithError(pc *pooledConn, err error) {
	pc.mu.Lock()
	pending := pc.pending
	pc.pending = nil
	pc.closed = true
	pc.mu.Unlock()
	for _, ch := range pending {
		ch <- frameOrErr{err: err}
	}
}

func (c *Client) evict(endpoint string, pc *pooledConn) {
	c.mu.Lock()
	if c.conns[endpoint] == pc {
		delete(c.conns, endpoint)
	}
	c.mu.Unlock()
	pc.conn.Close()
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for endpoint, pc := range c.conns {
		if err := pc.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, endpoint)
	}
	return firstErr
}

// IsUnreachable reports whether err denotes a dead peer, as opposed to
// a remote error or a deadline expiry.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
