// Package localtransport provides an in-process bus.Transport that fans
// a published envelope out to every other subscriber sharing the same
// Hub. It is used for single-process deployments (where "the cluster"
// is one process) and in tests that simulate multiple peers without a
// network, the same role the teacher's global observer registry
// (ats/storage/observer.go: RegisterObserver/notifyObservers) plays for
// in-process fan-out of attestation-created notifications.
package localtransport

import (
	"context"
	"sync"

	"github.com/fedimesh/qkvc/bus"
)

// Hub is the shared rendezvous point for a set of in-process peers. Each
// peer gets its own *Peer (a bus.Transport) via Hub.NewPeer; publishing
// on one peer's Transport delivers to every other peer's subscribers.
type Hub struct {
	mu    sync.RWMutex
	peers []*Peer
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Peer is one hub-connected bus.Transport.
type Peer struct {
	hub        *Hub
	mu         sync.RWMutex
	handlers   []func(bus.Envelope)
}

// NewPeer attaches a new peer to the hub.
func (h *Hub) NewPeer() *Peer {
	p := &Peer{hub: h}
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	return p
}

// Publish delivers env to every other peer on the hub, synchronously,
// in registration order — single-process delivery has no ordering
// ambiguity to model.
func (p *Peer) Publish(_ context.Context, env bus.Envelope) error {
	p.hub.mu.RLock()
	peers := append([]*Peer(nil), p.hub.peers...)
	p.hub.mu.RUnlock()

	for _, peer := range peers {
		if peer == p {
			continue
		}
		peer.deliver(env)
	}
	return nil
}

func (p *Peer) deliver(env bus.Envelope) {
	p.mu.RLock()
	handlers := make([]func(bus.Envelope), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(env)
		}
	}
}

// Subscribe registers handler for envelopes published by other peers on
// the hub.
func (p *Peer) Subscribe(handler func(bus.Envelope)) (unsubscribe func()) {
	p.mu.Lock()
	p.handlers = append(p.handlers, handler)
	idx := len(p.handlers) - 1
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if idx < len(p.handlers) {
			p.handlers[idx] = nil
		}
	}
}

// Standalone returns a Transport usable by a single process with no
// peers at all — Publish is a no-op, Subscribe never fires. Useful as
// the default transport when cluster coherence isn't needed.
func Standalone() bus.Transport {
	return NewHub().NewPeer()
}
