package agent

import (
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/danphilibin/relay/pkg/api"
)

// Capability is one workflow exposed as an agent tool
type Capability struct {
	Name        string           `json:"name"`
	Workflow    api.Slug         `json:"workflow"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Parameters  *openapi3.Schema `json:"parameters"`
}

var (
	ErrUnhandledFieldType = errors.New("unhandled input field type")
	ErrInvalidArguments   = errors.New("invalid tool arguments")
)

// BuildCatalog derives a capability for every workflow. Any field type the
// catalog cannot express fails the whole build
func BuildCatalog(workflows []*api.WorkflowInfo) ([]*Capability, error) {
	res := make([]*Capability, 0, len(workflows))
	for _, wf := range workflows {
		c, err := NewCapability(wf)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

// NewCapability derives the capability of a single workflow
func NewCapability(wf *api.WorkflowInfo) (*Capability, error) {
	params, err := ParameterSchema(wf.Input)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.Slug, err)
	}
	desc := wf.Description
	if desc == "" {
		desc = fmt.Sprintf("Run the %q workflow", wf.Title)
	}
	return &Capability{
		Name:        wf.Slug.ToolName(),
		Workflow:    wf.Slug,
		Title:       wf.Title,
		Description: desc,
		Parameters:  params,
	}, nil
}

// ParameterSchema converts an input schema into an object schema with one
// required property per field
func ParameterSchema(input api.InputSchema) (*openapi3.Schema, error) {
	res := openapi3.NewObjectSchema()
	for _, f := range input {
		prop, err := fieldSchema(f.FieldDef)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		res.WithProperty(f.Key, prop)
		res.Required = append(res.Required, f.Key)
	}
	return res, nil
}

// Validate checks tool arguments against the capability parameters
func (c *Capability) Validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	if err := c.Parameters.VisitJSON(args); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidArguments, c.Name, err)
	}
	return nil
}

// HasParameters reports whether the capability takes any arguments
func (c *Capability) HasParameters() bool {
	return len(c.Parameters.Properties) > 0
}

func fieldSchema(f api.FieldDef) (*openapi3.Schema, error) {
	var res *openapi3.Schema
	switch f.Type {
	case api.FieldText:
		res = openapi3.NewStringSchema()
	case api.FieldNumber:
		res = openapi3.NewFloat64Schema()
	case api.FieldCheckbox:
		res = openapi3.NewBoolSchema()
	case api.FieldSelect:
		values := make([]any, len(f.Options))
		for i, opt := range f.Options {
			values[i] = opt.Value
		}
		res = openapi3.NewStringSchema().WithEnum(values...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnhandledFieldType, f.Type)
	}
	res.Description = fieldDescription(f)
	return res, nil
}

func fieldDescription(f api.FieldDef) string {
	if f.Description != "" {
		return f.Description
	}
	return f.Label
}
