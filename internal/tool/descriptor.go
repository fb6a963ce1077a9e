package tool

import (
	"context"
	"fmt"

	"factotum/internal/domain"

	"github.com/mitchellh/mapstructure"
)

// Validator is implemented by argument types that carry cross-field rules
// the schema cannot express.
type Validator interface {
	Validate() error
}

// Descriptor is one schema-validated, independently invocable operation.
// It binds a name, a parameter schema, and a wrapped implementation; the
// wrapper is the single chokepoint converting implementation failures into a
// tagged Result.
type Descriptor struct {
	name        string
	description string
	schema      Schema
	invoke      func(ctx context.Context, args map[string]any) Result
}

func (d *Descriptor) Name() string        { return d.name }
func (d *Descriptor) Description() string { return d.description }

// Definition returns the transport-neutral advertisement for the oracle catalog.
func (d *Descriptor) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        d.name,
		Description: d.description,
		Parameters:  d.schema.Definition(),
	}
}

// Invoke validates and runs the wrapped implementation. It never panics and
// never returns an error: every outcome is a Result.
func (d *Descriptor) Invoke(ctx context.Context, args map[string]any) Result {
	return d.invoke(ctx, args)
}

// New builds a Descriptor from a typed implementation. The raw payload is
// schema-validated, then decoded into Args; a validation failure returns
// InvalidArguments without invoking fn. Anything fn raises, including a
// panic, becomes a ToolError.
func New[Args any](name, description string, schema Schema, fn func(ctx context.Context, args Args) (string, error)) *Descriptor {
	return &Descriptor{
		name:        name,
		description: description,
		schema:      schema,
		invoke: func(ctx context.Context, raw map[string]any) (res Result) {
			defer func() {
				if r := recover(); r != nil {
					res = Fail(domain.KindToolError, fmt.Sprintf("%s panicked: %v", name, r), nil)
				}
			}()

			if raw == nil {
				raw = map[string]any{}
			}
			if err := schema.Validate(raw); err != nil {
				return Fail(domain.KindInvalidArguments, err.Error(), err)
			}

			args, err := decodeArgs[Args](raw)
			if err != nil {
				return Fail(domain.KindInvalidArguments, fmt.Sprintf("decode arguments: %s", err), err)
			}
			if v, ok := any(args).(Validator); ok {
				if err := v.Validate(); err != nil {
					return Fail(domain.KindInvalidArguments, err.Error(), err)
				}
			}

			out, err := fn(ctx, args)
			if err != nil {
				return Fail(domain.KindToolError, err.Error(), err)
			}
			return Ok(out)
		},
	}
}

// decodeArgs maps a raw payload onto the typed argument struct. Weak typing
// tolerates oracles that send numbers as strings; json tags keep field names
// aligned with the schema.
func decodeArgs[Args any](raw map[string]any) (Args, error) {
	var args Args
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return args, err
	}
	if err := dec.Decode(raw); err != nil {
		return args, err
	}
	return args, nil
}
