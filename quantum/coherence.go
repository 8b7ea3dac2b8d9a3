package quantum

import (
	"context"
	"encoding/json"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/logging"
)

// emitUpdated publishes quantumCacheUpdated for this cache's name and
// keys, then invokes OnChanged for the local change. Local handlers are
// skipped by IgnoreLocal on the subscription (spec §4.3.4): the emitting
// process already applied the change to its own memory via Set/Delete,
// so it does not re-process its own message; OnChanged is called here
// directly instead.
func (c *Cache[V]) emitUpdated(ctx context.Context, keys []string) error {
	err := c.bus.Emit(ctx, bus.TopicQuantumCacheUpdated, bus.QuantumCacheUpdated{Name: c.name, Keys: keys}, true)
	if c.onChanged != nil {
		c.onChanged(ctx, keys)
	}
	return err
}

// handleRemoteUpdated deletes the named keys from memory and invokes
// OnChanged, for any quantumCacheUpdated envelope addressed to this
// cache's name. Deletion, not refresh: the loader is consulted lazily on
// the next read, per spec §4.3.4's rationale.
func (c *Cache[V]) handleRemoteUpdated(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.QuantumCacheUpdated
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.Name != c.name {
		return nil
	}

	c.mu.Lock()
	active := c.state == stateActive
	c.mu.Unlock()
	if !active {
		return nil
	}

	for _, k := range msg.Keys {
		c.store.Delete(k)
	}
	if c.onChanged != nil {
		c.onChanged(ctx, msg.Keys)
	}
	c.log.Debugw("applied remote cache invalidation", logging.FieldCacheKeys, msg.Keys, logging.FieldCount, len(msg.Keys))
	return nil
}

// handleRemoteReset clears memory and invokes OnReset for any
// quantumCacheReset envelope addressed to this cache's name.
func (c *Cache[V]) handleRemoteReset(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.QuantumCacheReset
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.Name != c.name {
		return nil
	}

	c.mu.Lock()
	active := c.state == stateActive
	c.mu.Unlock()
	if !active {
		return nil
	}

	c.store.Clear()
	if c.onReset != nil {
		c.onReset(ctx)
	}
	return nil
}
