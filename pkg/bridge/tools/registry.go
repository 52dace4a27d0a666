package tools

import (
	"fmt"
	"strings"
)

// Registry is the read-only set of tools one bridge instance serves. Built
// once at startup; never mutated afterward.
type Registry struct {
	byName map[string]Tool
	order  []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if tool.Kind == KindLocal && tool.Func == nil {
			return nil, fmt.Errorf("local tool %q has no handler", name)
		}
		if tool.Kind != KindLocal && tool.Kind != KindWebhook {
			return nil, fmt.Errorf("tool %q has unknown kind %q", name, tool.Kind)
		}
		r.byName[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Visible returns the tools advertised to the model, in registration order.
func (r *Registry) Visible() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		if tool := r.byName[name]; !tool.Hidden {
			out = append(out, tool)
		}
	}
	return out
}
