package tools

import (
	"context"
	"fmt"
	"sync"
)

// Registry aggregates tool providers registered at startup. It resolves a
// call to the first provider that advertises the tool name.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Definitions collects tool definitions from every provider. A provider
// that fails is skipped so one broken source does not hide the others.
func (r *Registry) Definitions(ctx context.Context) ([]Definition, error) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	var defs []Definition
	seen := make(map[string]struct{})
	for _, p := range providers {
		pdefs, err := p.Definitions(ctx)
		if err != nil {
			continue
		}
		for _, def := range pdefs {
			if _, dup := seen[def.Name]; dup {
				continue
			}
			seen[def.Name] = struct{}{}
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	for _, p := range providers {
		defs, err := p.Definitions(ctx)
		if err != nil {
			continue
		}
		for _, def := range defs {
			if def.Name == name {
				return p.Execute(ctx, name, args)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}
