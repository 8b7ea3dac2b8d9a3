// Package registry implements component D, the cache registry: the
// process-wide directory of every quantum.Cache and memorycache.Cache
// instance, constructed once at boot and disposed at shutdown (spec
// §4.4, §9 "Global state").
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/logging"
	"github.com/fedimesh/qkvc/memorycache"
	"github.com/fedimesh/qkvc/qerrors"
	"github.com/fedimesh/qkvc/quantum"
)

// Instance is anything the registry tracks: both quantum.Cache[V] and
// memorycache.Cache[V] satisfy this structurally, for any V, since Go
// methods can't carry their own type parameters.
type Instance interface {
	Name() string
	Clear() error
	Dispose(ctx context.Context) error
}

// Registry tracks every cache instance created through it. createQuantum
// and createMemory are package-level generic functions (not methods,
// since Go forbids generic methods) that take a *Registry as their first
// argument.
type Registry struct {
	mu        sync.Mutex
	bus       *bus.Bus
	instances map[string]Instance
	log       *zap.SugaredLogger
}

// New constructs an empty registry wired to the shared event bus every
// quantum.Cache it creates will use for coherence.
func New(b *bus.Bus, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = logging.Named("registry")
	}
	return &Registry{
		bus:       b,
		instances: make(map[string]Instance),
		log:       log,
	}
}

func (r *Registry) register(name string, inst Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[name]; exists {
		return qerrors.Wrapf(qerrors.ErrDuplicateCacheName, "name %q", name)
	}
	r.instances[name] = inst
	return nil
}

// CreateQuantum validates uniqueness of opts.Name and constructs a
// quantum.Cache wired to the registry's shared bus (spec §4.4).
func CreateQuantum[V any](r *Registry, opts quantum.Options[V]) (*quantum.Cache[V], error) {
	c := quantum.New[V](r.bus, opts)
	if err := r.register(opts.Name, c); err != nil {
		_ = c.Dispose(context.Background())
		return nil, err
	}
	return c, nil
}

// CreateMemory validates uniqueness of name and constructs a
// memorycache.Cache (spec §4.4).
func CreateMemory[V any](r *Registry, name string, lifetime time.Duration) (*memorycache.Cache[V], error) {
	c := memorycache.New[V](name, lifetime)
	if err := r.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Names returns every registered cache's name, for introspection (the
// `registry stats` CLI subcommand).
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	return names
}

// Clear clears the local memory of every registered cache. No events are
// emitted (spec §4.4).
func (r *Registry) Clear() error {
	r.mu.Lock()
	instances := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		if err := inst.Clear(); err != nil {
			r.log.Errorw("clear failed", logging.FieldCacheName, inst.Name(), logging.FieldError, err)
			errs = append(errs, err)
		}
	}
	return qerrors.Aggregate(errs...)
}

// Dispose disposes every registered cache, intended for process
// shutdown. Safe to call once; the registry is left empty afterward.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mu.Lock()
	instances := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.instances = make(map[string]Instance)
	r.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		if err := inst.Dispose(ctx); err != nil {
			r.log.Errorw("dispose failed", logging.FieldCacheName, inst.Name(), logging.FieldError, err)
			errs = append(errs, err)
		}
	}
	return qerrors.Aggregate(errs...)
}
