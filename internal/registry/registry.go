// Package registry maps an engine configuration name to its launch
// descriptor and builds the enginepool.Factory that launches and
// handshakes a driver for that name, keeping internal/enginepool ignorant
// of where binaries live.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/parkbanksia/tourney/internal/config"
	"github.com/parkbanksia/tourney/internal/enginedriver"
	"github.com/parkbanksia/tourney/internal/enginepool"
	"go.uber.org/zap"
)

// Entry is one engine's resolved launch descriptor.
type Entry struct {
	Name     string
	Path     string
	Args     []string
	Protocol string
	Elo      int
}

// Registry resolves engine names to launch descriptors.
type Registry struct {
	entries map[string]Entry
	log     *zap.Logger
}

// New builds a Registry from the configured engine list.
func New(entries []config.EngineEntry, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("engine registry requires at least one entry")
	}
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("engine entry missing name")
		}
		if _, exists := m[name]; exists {
			return nil, fmt.Errorf("duplicate engine name %q", name)
		}
		protocol := strings.TrimSpace(e.Protocol)
		if protocol == "" {
			protocol = "uci"
		}
		m[name] = Entry{Name: name, Path: e.Path, Args: append([]string(nil), e.Args...), Protocol: protocol, Elo: e.Elo}
	}
	return &Registry{entries: m, log: log}, nil
}

// Lookup returns the launch descriptor for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns every registered engine name, in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// Factory builds an enginepool.Factory bound to this registry.
func (r *Registry) Factory() enginepool.Factory {
	return func(ctx context.Context, name string) (*enginedriver.Driver, error) {
		entry, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown engine %q", name)
		}
		if entry.Protocol != "uci" {
			return nil, fmt.Errorf("engine %q: unsupported protocol %q", name, entry.Protocol)
		}
		d := enginedriver.New(entry.Name, entry.Path, entry.Args, r.log.Named(entry.Name))
		if err := d.Launch(ctx); err != nil {
			return nil, fmt.Errorf("launch engine %q: %w", name, err)
		}
		return d, nil
	}
}
