// Package wstransport is the one real cluster bus.Transport this module
// ships: a mesh of gorilla/websocket connections exchanging JSON-framed
// bus.Envelope messages. It is modeled on the teacher's sync.Peer — a
// Conn interface abstracting gorilla/websocket for testability, and a
// read/write loop exchanging JSON messages — generalized from a
// symmetric one-shot reconciliation session into a long-lived broadcast
// mesh (every envelope Published is written to every connected peer).
package wstransport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/logging"
)

// Conn abstracts the websocket connection for testability, exactly the
// role the teacher's sync.Conn interface plays: the real implementation
// wraps *websocket.Conn; tests use an in-memory pipe.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Transport is a websocket-backed bus.Transport. It holds zero or more
// peer connections (accepted inbound, or dialed outbound) and broadcasts
// every Publish to all of them.
type Transport struct {
	mu    sync.RWMutex
	peers map[*peerConn]struct{}

	handlersMu sync.RWMutex
	handlers   []func(bus.Envelope)

	log *zap.SugaredLogger

	dialer      *websocket.Dialer
	reconnectAt time.Duration
}

type peerConn struct {
	conn   Conn
	writeC chan bus.Envelope
	closed chan struct{}
}

// New creates an empty transport. Call AddConn for each peer connection
// (inbound, from an http.Handler upgrade, or outbound, from Dial).
func New(log *zap.SugaredLogger) *Transport {
	if log == nil {
		log = logging.Named("wstransport")
	}
	return &Transport{
		peers:       make(map[*peerConn]struct{}),
		log:         log,
		dialer:      websocket.DefaultDialer,
		reconnectAt: 2 * time.Second,
	}
}

// Publish writes env to every connected peer. A slow or dead peer never
// blocks delivery to the others: each peer has its own buffered write
// channel, and when that channel is full the new envelope is dropped
// for that peer rather than stalling Publish (coherence events are idempotent deletes — a dropped
// one just means that peer re-consults its loader on next read, which
// is already spec-conformant per §4.3.4).
func (t *Transport) Publish(_ context.Context, env bus.Envelope) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for pc := range t.peers {
		select {
		case pc.writeC <- env:
		default:
			t.log.Warnw("dropping coherence envelope to slow peer", logging.FieldTopic, env.Type)
		}
	}
	return nil
}

// Subscribe registers handler for envelopes received from any peer.
func (t *Transport) Subscribe(handler func(bus.Envelope)) (unsubscribe func()) {
	t.handlersMu.Lock()
	t.handlers = append(t.handlers, handler)
	idx := len(t.handlers) - 1
	t.handlersMu.Unlock()

	return func() {
		t.handlersMu.Lock()
		defer t.handlersMu.Unlock()
		if idx < len(t.handlers) {
			t.handlers[idx] = nil
		}
	}
}

func (t *Transport) deliver(env bus.Envelope) {
	t.handlersMu.RLock()
	handlers := make([]func(bus.Envelope), len(t.handlers))
	copy(handlers, t.handlers)
	t.handlersMu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(env)
		}
	}
}

// AddConn registers conn as a peer and starts its read/write pumps. It
// returns once the pumps have been started; pump failures remove the
// peer from the broadcast set and close conn.
func (t *Transport) AddConn(conn Conn) {
	pc := &peerConn{conn: conn, writeC: make(chan bus.Envelope, 256), closed: make(chan struct{})}

	t.mu.Lock()
	t.peers[pc] = struct{}{}
	t.mu.Unlock()

	go t.readPump(pc)
	go t.writePump(pc)
}

func (t *Transport) removeConn(pc *peerConn) {
	t.mu.Lock()
	delete(t.peers, pc)
	t.mu.Unlock()

	select {
	case <-pc.closed:
	default:
		close(pc.closed)
	}
	_ = pc.conn.Close()
}

func (t *Transport) readPump(pc *peerConn) {
	defer t.removeConn(pc)
	for {
		var env bus.Envelope
		if err := pc.conn.ReadJSON(&env); err != nil {
			t.log.Debugw("peer read loop ending", logging.FieldError, err)
			return
		}
		t.deliver(env)
	}
}

func (t *Transport) writePump(pc *peerConn) {
	for {
		select {
		case env := <-pc.writeC:
			if err := pc.conn.WriteJSON(env); err != nil {
				t.removeConn(pc)
				return
			}
		case <-pc.closed:
			return
		}
	}
}

// Upgrade adapts an incoming HTTP request to a websocket connection and
// registers it as a peer. Use as the handler behind the cluster's
// coherence listen address.
func (t *Transport) Upgrade(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	t.AddConn(conn)
	return nil
}

// Dial connects outbound to a peer's coherence listen address and
// registers the connection. On disconnect it retries with a fixed
// backoff until ctx is cancelled, mirroring the teacher's graceful
// worker-pool shutdown discipline (honor ctx.Done, never leak a retry
// goroutine past cancellation).
func (t *Transport) Dial(ctx context.Context, url string) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, _, err := t.dialer.DialContext(ctx, url, nil)
			if err != nil {
				t.log.Warnw("dial failed, retrying", "url", url, logging.FieldError, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(t.reconnectAt):
					continue
				}
			}

			t.AddConn(conn)
			// Block until this connection is dropped, then loop to redial.
			<-t.waitForDrop(conn)

			select {
			case <-ctx.Done():
				return
			case <-time.After(t.reconnectAt):
			}
		}
	}()
}

func (t *Transport) waitForDrop(conn *websocket.Conn) <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for pc := range t.peers {
		if pc.conn == Conn(conn) {
			return pc.closed
		}
	}
	done := make(chan struct{})
	close(done)
	return done
}
