package adapters

import (
	"fmt"
)

// Registry maps a supported service kind to its Adapter. Built once at
// startup (see gateway.New, which wires the six concrete implementations
// in) and read-only thereafter — this package stays free of any concrete
// adapter import so individual adapters can depend on the shared Adapter
// type without creating an import cycle.
type Registry struct {
	byKind map[string]Adapter
}

// NewRegistry wraps a fixed service-kind-to-adapter mapping.
func NewRegistry(byKind map[string]Adapter) *Registry {
	return &Registry{byKind: byKind}
}

// ErrUnknownService is returned by Lookup when no adapter is registered
// for the given service kind.
var ErrUnknownService = fmt.Errorf("adapters: unknown service kind")

// Lookup returns the adapter registered for kind, or ErrUnknownService.
func (r *Registry) Lookup(kind string) (Adapter, error) {
	a, ok := r.byKind[kind]
	if !ok {
		return nil, ErrUnknownService
	}
	return a, nil
}
