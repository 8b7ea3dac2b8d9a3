// Package bus implements component A of the cache core: an in-process
// event dispatcher multiplexed onto a cluster-wide pub/sub transport
// (spec §4.1). Handlers are plain bound function values captured at
// registration time — no reflection or decorator-based metadata, per
// the "dynamic dispatch" note in spec §9.
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedimesh/qkvc/logging"
)

// Handler processes one delivered message. isLocal tells the handler
// whether this emit originated in this process (true) or arrived from a
// peer over the transport (false).
type Handler func(ctx context.Context, payload json.RawMessage, isLocal bool) error

// HandlerOptions filters which emits a handler receives (spec §4.1).
type HandlerOptions struct {
	IgnoreLocal  bool // skip emits where isLocal == true
	IgnoreRemote bool // skip emits where isLocal == false
}

type subscription struct {
	id      uint64
	topic   string
	handler Handler
	opts    HandlerOptions
}

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription struct {
	id    uint64
	topic string
}

// Bus is the in-process event dispatcher. One Bus exists per process;
// it owns a Transport for cluster-wide delivery.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*subscription
	nextSubID uint64

	transport    Transport
	unsubscribe  func()
	senderID     string
	log          *zap.SugaredLogger
}

// New creates a Bus wired to transport. senderID uniquely identifies
// this process across the cluster (spec §6.1); it is generated once per
// Bus via google/uuid, matching the teacher's ID-generation idiom
// (auth.Store uses uuid.New().String() for every generated identifier).
func New(transport Transport, log *zap.SugaredLogger) *Bus {
	if log == nil {
		log = logging.Named("bus")
	}
	b := &Bus{
		subs:      make(map[string][]*subscription),
		transport: transport,
		senderID:  uuid.NewString(),
		log:       log,
	}
	b.unsubscribe = transport.Subscribe(b.handleRemote)
	return b
}

// SenderID returns this process's identity on the cluster transport.
func (b *Bus) SenderID() string { return b.senderID }

// On registers handler for topic, returning a Subscription for Off.
func (b *Bus) On(topic string, handler Handler, opts HandlerOptions) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := &subscription{id: b.nextSubID, topic: topic, handler: handler, opts: opts}
	b.subs[topic] = append(b.subs[topic], sub)
	return Subscription{id: sub.id, topic: topic}
}

// Off unregisters a handler. Safe to call if the subscription is
// already absent (spec §4.1: "safe if absent").
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Close detaches from the transport. It does not close the transport
// itself (other Bus instances in the same process may share it via
// bus/localtransport).
func (b *Bus) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// Emit delivers payload to every matching local handler, awaiting each
// one serially in registration order (spec §4.1: "synchronous for local
// emit (handlers awaited serially)"), then — if isLocal — publishes the
// message over the cluster transport so peers receive it with
// isLocal=false.
//
// Handler errors are logged and do not abort delivery to the remaining
// handlers; Emit itself never fails because of a handler error (spec
// §7: "errors from inside the coherence event handlers are logged and
// do not disrupt the bus"). The one exception is §7's converse rule for
// onChanged-triggered errors, which is the caller's (quantum.Cache's)
// responsibility, not the bus's.
func (b *Bus) Emit(ctx context.Context, topic string, payload interface{}, isLocal bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.dispatch(ctx, topic, body, isLocal)

	if isLocal {
		return b.transport.Publish(ctx, Envelope{Type: topic, Body: body, SenderID: b.senderID})
	}
	return nil
}

// handleRemote is the transport's delivery callback: an envelope that
// arrived from a peer. The transport has already discarded envelopes
// whose SenderID is this process's own (spec §6.1's "transport echo is
// discarded"); this is a defensive second check.
func (b *Bus) handleRemote(env Envelope) {
	if env.SenderID == b.senderID {
		return
	}
	b.dispatch(context.Background(), env.Type, env.Body, false)
}

func (b *Bus) dispatch(ctx context.Context, topic string, payload json.RawMessage, isLocal bool) {
	b.mu.RLock()
	// Copy the slice under the lock so a handler calling On/Off doesn't
	// race the iteration below.
	subs := append([]*subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if isLocal && sub.opts.IgnoreLocal {
			continue
		}
		if !isLocal && sub.opts.IgnoreRemote {
			continue
		}
		if err := sub.handler(ctx, payload, isLocal); err != nil {
			b.log.Errorw("event handler failed",
				logging.FieldTopic, topic,
				logging.FieldIsLocal, isLocal,
				logging.FieldError, err,
			)
		}
	}
}
