package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/tjfontaine/courtside/internal/domain"
)

const schemaBaseURL = "https://courtside.local/capabilities/"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for invocation logs.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDebug logs arguments and results of every invocation at debug level.
func WithDebug(debug bool) Option {
	return func(r *Registry) {
		r.debug = debug
	}
}

type entry struct {
	cap       Capability
	validator *jsonschema.Schema
}

// Registry is an immutable set of capabilities. It is safe for concurrent use.
type Registry struct {
	order   []string
	entries map[string]entry
	logger  *slog.Logger
	debug   bool
}

// NewRegistry builds a registry from caps, in registration order.
// Duplicate names are rejected.
func NewRegistry(caps []Capability, opts ...Option) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]entry, len(caps)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	compiler := jsonschema.NewCompiler()
	for _, c := range caps {
		if c.call == nil {
			return nil, fmt.Errorf("capability %q was not built with New", c.name)
		}
		if _, dup := r.entries[c.name]; dup {
			return nil, fmt.Errorf("duplicate capability %q", c.name)
		}

		validator, err := compileRequired(compiler, c)
		if err != nil {
			return nil, err
		}
		r.entries[c.name] = entry{cap: c, validator: validator}
		r.order = append(r.order, c.name)
	}
	return r, nil
}

// compileRequired builds a schema that checks only that the argument object
// carries every required parameter. Types are coerced later during decoding.
func compileRequired(compiler *jsonschema.Compiler, c Capability) (*jsonschema.Schema, error) {
	required := make([]any, len(c.required))
	for i, name := range c.required {
		required[i] = name
	}
	doc := map[string]any{
		"type":     "object",
		"required": required,
	}

	url := schemaBaseURL + c.name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("capability %s: failed to add schema: %w", c.name, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("capability %s: failed to compile schema: %w", c.name, err)
	}
	return sch, nil
}

// Names returns capability names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Describe returns one descriptor per capability, in registration order.
// Each call returns fresh copies.
func (r *Registry) Describe() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		c := r.entries[name].cap
		out = append(out, domain.ToolDescriptor{
			Name:        c.name,
			Description: c.description,
			Parameters:  slices.Clone(c.params),
			Schema:      cloneSchema(c.schema),
		})
	}
	return out
}

// Tools returns the descriptors in the function-tool format sent to the model.
func (r *Registry) Tools() []domain.Tool {
	descs := r.Describe()
	tools := make([]domain.Tool, len(descs))
	for i, d := range descs {
		tools[i] = d.Tool()
	}
	return tools
}

// Invoke runs the named capability with JSON arguments and returns its
// serialized result. String results are returned as is.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", domain.NewError(domain.ErrorKindUnknownCapability,
			fmt.Sprintf("unknown capability %q", name))
	}

	raw, err := e.parseArgs(args)
	if err != nil {
		return "", err
	}

	logger := r.logger.With("capability", name)
	if r.debug {
		logger.Debug("invoking capability", "arguments", string(args))
	}

	result, err := e.cap.call(ctx, raw)
	if err != nil {
		logger.Warn("capability failed", "error", err)
		var derr *domain.Error
		if errors.As(err, &derr) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrorKindCapabilityFailed,
			fmt.Sprintf("capability %s failed", name), err)
	}

	content, err := serialize(result)
	if err != nil {
		return "", domain.WrapError(domain.ErrorKindCapabilityFailed,
			fmt.Sprintf("capability %s returned an unserializable result", name), err)
	}
	if r.debug {
		logger.Debug("capability result", "result", content)
	}
	return content, nil
}

func (e entry) parseArgs(args json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(trimmed))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorKindInvalidArguments,
			fmt.Sprintf("arguments for %s are not valid JSON", e.cap.name), err)
	}
	obj, ok := inst.(map[string]any)
	if !ok {
		return nil, domain.NewError(domain.ErrorKindInvalidArguments,
			fmt.Sprintf("arguments for %s must be a JSON object", e.cap.name))
	}

	if err := e.validator.Validate(inst); err != nil {
		var missing []string
		for _, name := range e.cap.required {
			if _, ok := obj[name]; !ok {
				missing = append(missing, name)
			}
		}
		return nil, domain.WrapError(domain.ErrorKindInvalidArguments,
			fmt.Sprintf("missing required parameters for %s: %s", e.cap.name, strings.Join(missing, ", ")), err)
	}

	// UnmarshalJSON yields json.Number; convert to plain values for decoding.
	var plain map[string]any
	if err := json.Unmarshal(trimmed, &plain); err != nil {
		return nil, domain.WrapError(domain.ErrorKindInvalidArguments,
			fmt.Sprintf("arguments for %s are not valid JSON", e.cap.name), err)
	}
	return plain, nil
}

func serialize(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.RawMessage:
		return string(t), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func cloneSchema(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneSchema(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
