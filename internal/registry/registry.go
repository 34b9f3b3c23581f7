// Package registry maps broker kinds onto their adapter instances.
package registry

import (
	"errors"
	"fmt"

	"broker-gateway/pkg/broker"
)

// ErrUnsupportedBroker marks a caller error: the identifier is not one of the
// known broker kinds. Deliberately not a *broker.Error; the API layer maps it
// to a client-error response.
var ErrUnsupportedBroker = errors.New("unsupported broker")

// Registry holds one adapter per broker kind. The set is fixed at
// construction; there is no runtime registration.
type Registry struct {
	adapters map[broker.Kind]broker.Adapter
}

// New builds a registry from the given adapters, rejecting duplicates and
// adapters that misreport their kind.
func New(adapters ...broker.Adapter) (*Registry, error) {
	m := make(map[broker.Kind]broker.Adapter, len(adapters))
	for _, a := range adapters {
		kind := a.Kind()
		if _, ok := broker.ParseKind(string(kind)); !ok {
			return nil, fmt.Errorf("adapter reports unknown kind %q", kind)
		}
		if _, dup := m[kind]; dup {
			return nil, fmt.Errorf("duplicate adapter for kind %q", kind)
		}
		m[kind] = a
	}
	return &Registry{adapters: m}, nil
}

// Resolve returns the adapter for a raw broker identifier.
func (r *Registry) Resolve(identifier string) (broker.Adapter, error) {
	kind, ok := broker.ParseKind(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBroker, identifier)
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q not configured", ErrUnsupportedBroker, identifier)
	}
	return adapter, nil
}

// Kinds lists the kinds with a configured adapter.
func (r *Registry) Kinds() []broker.Kind {
	kinds := make([]broker.Kind, 0, len(r.adapters))
	for _, k := range broker.Kinds() {
		if _, ok := r.adapters[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
