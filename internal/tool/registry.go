package tool

import (
	"context"
	"fmt"
	"log/slog"

	"factotum/internal/domain"
)

// Registry is the closed tool catalog: built once at assistant construction,
// read-only afterwards. No locking is needed because registration finishes
// before any dispatch starts and sessions never mutate the registry.
type Registry struct {
	tools  map[string]*Descriptor
	order  []string
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Descriptor),
		logger: logger,
	}
}

// Register adds a descriptor to the catalog. A duplicate name is a
// configuration error and always fails the same way.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name() == "" {
		return fmt.Errorf("tool with empty name")
	}
	if _, exists := r.tools[d.Name()]; exists {
		return fmt.Errorf("duplicate tool name: %s", d.Name())
	}
	r.tools[d.Name()] = d
	r.order = append(r.order, d.Name())
	r.logger.Debug("registered tool", "name", d.Name())
	return nil
}

func (r *Registry) Get(name string) *Descriptor {
	return r.tools[name]
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions returns the oracle-facing catalog in registration order.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch locates the named tool and invokes it. Exactly one outcome per
// call: UnknownTool, InvalidArguments, ToolError, or success. An unknown name
// means the oracle called outside the advertised catalog, so it is logged as
// an error rather than a warning.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	d := r.Get(name)
	if d == nil {
		r.logger.Error("dispatch of unknown tool", "name", name, "available", r.Names())
		return Fail(domain.KindUnknownTool,
			fmt.Sprintf("unknown tool %q (available: %v)", name, r.Names()), nil)
	}
	res := d.Invoke(ctx, args)
	if res.OK() {
		r.logger.Debug("tool completed", "name", name, "result_len", len(res.Value))
	} else {
		r.logger.Debug("tool failed", "name", name, "kind", res.Err.Kind, "message", res.Err.Message)
	}
	return res
}
