package bus

import "context"

// Envelope is the wire framing for a cluster message (spec §6.1):
// "{type, body, senderId}".
type Envelope struct {
	Type     string `json:"type"`
	Body     []byte `json:"body"`
	SenderID string `json:"senderId"`
}

// Transport is the cluster-wide pub/sub collaborator the Event Bus
// multiplexes local emits onto. Implementations: bus/wstransport (a real
// gorilla/websocket mesh) and bus/localtransport (in-process fan-out,
// for tests and single-process deployments). The spec treats the
// transport as an external collaborator (§1); this module ships two
// concrete ones so it is runnable standalone.
type Transport interface {
	// Publish sends an envelope to every other connected peer.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe registers a callback invoked for every envelope received
	// from a peer (never for ones this process published itself — that
	// filtering is the transport's responsibility, per spec §6.1: "the
	// transport echo is discarded"). Returns an unsubscribe function.
	Subscribe(handler func(Envelope)) (unsubscribe func())
}
