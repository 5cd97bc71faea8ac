// Package dispatch maps channel identifiers to the adapter responsible for
// them. The mapping is closed: adding a channel means adding one adapter
// implementation and one registry entry.
package dispatch

import (
	"github.com/elite42/reservation-notifier/internal/adapter"
	"github.com/elite42/reservation-notifier/internal/domain"
)

// Registry resolves a channel to its adapter. Unrecognized channels resolve to
// the fallback adapter, which returns a permanent structured failure instead
// of panicking the drain cycle.
type Registry struct {
	adapters map[domain.Channel]adapter.Adapter
	fallback adapter.Adapter
}

// Option registers one channel adapter.
type Option func(*Registry)

func WithAdapter(channel domain.Channel, a adapter.Adapter) Option {
	return func(r *Registry) {
		if a != nil {
			r.adapters[channel] = a
		}
	}
}

// WithFallback overrides the unknown-channel fallback, primarily for testing.
func WithFallback(a adapter.Adapter) Option {
	return func(r *Registry) {
		if a != nil {
			r.fallback = a
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		adapters: make(map[domain.Channel]adapter.Adapter, len(domain.Channels())),
		fallback: adapter.NewUnknownAdapter(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the adapter for a channel, or the fallback when none is
// registered. It never returns nil.
func (r *Registry) Resolve(channel domain.Channel) adapter.Adapter {
	if r == nil {
		return adapter.NewUnknownAdapter()
	}
	if a, ok := r.adapters[channel]; ok {
		return a
	}
	return r.fallback
}

// Registered reports whether a channel has an explicit adapter entry.
func (r *Registry) Registered(channel domain.Channel) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[channel]
	return ok
}
