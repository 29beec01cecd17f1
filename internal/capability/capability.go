// Package capability maps capability names to handlers and their parameter
// schemas, and invokes them on behalf of the model.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/tjfontaine/courtside/internal/domain"
)

// Capability is a named, schema-described function the model may call.
type Capability struct {
	name        string
	description string
	schema      map[string]any
	params      []domain.ParameterSpec
	required    []string
	call        func(ctx context.Context, args map[string]any) (any, error)
}

// Name returns the capability name.
func (c Capability) Name() string { return c.name }

// New builds a Capability whose parameters are reflected from T. Fields
// without omitempty in their json tag are required; descriptions come from
// the jsonschema_description tag.
func New[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (Capability, error) {
	if name == "" {
		return Capability{}, fmt.Errorf("capability name is required")
	}
	if fn == nil {
		return Capability{}, fmt.Errorf("capability %s: handler is nil", name)
	}

	var zero T
	if t := reflect.TypeOf(zero); t == nil || t.Kind() != reflect.Struct {
		return Capability{}, fmt.Errorf("capability %s: arguments must be a struct, got %T", name, zero)
	}

	schema, params, required, err := reflectSchema(zero)
	if err != nil {
		return Capability{}, fmt.Errorf("capability %s: %w", name, err)
	}

	return Capability{
		name:        name,
		description: description,
		schema:      schema,
		params:      params,
		required:    required,
		call: func(ctx context.Context, raw map[string]any) (any, error) {
			var args T
			if err := decodeArgs(raw, &args); err != nil {
				return nil, domain.WrapError(domain.ErrorKindInvalidArguments,
					fmt.Sprintf("invalid arguments for %s", name), err)
			}
			return fn(ctx, args)
		},
	}, nil
}

// MustNew is like New but panics on error. Intended for static definitions.
func MustNew[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) Capability {
	c, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return c
}

func reflectSchema(v any) (map[string]any, []domain.ParameterSpec, []string, error) {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""

	var params []domain.ParameterSpec
	isRequired := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		isRequired[name] = true
	}
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			params = append(params, domain.ParameterSpec{
				Name:        pair.Key,
				Type:        pair.Value.Type,
				Description: pair.Value.Description,
				Required:    isRequired[pair.Key],
			})
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema, params, append([]string(nil), s.Required...), nil
}

// decodeArgs decodes loosely typed model output into the argument struct.
// Models frequently send numbers as strings, so weak typing is enabled.
func decodeArgs(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
