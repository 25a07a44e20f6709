package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/danphilibin/relay/pkg/util"
)

type (
	// FieldType names the kind of value an input field collects
	FieldType string

	// Intent is the visual weight of an input button
	Intent string

	// FieldDef describes a single input field
	FieldDef struct {
		Type        FieldType      `json:"type"`
		Label       string         `json:"label"`
		Description string         `json:"description,omitempty"`
		Placeholder string         `json:"placeholder,omitempty"`
		Options     []SelectOption `json:"options,omitempty"`
	}

	// SelectOption is one choice of a select field
	SelectOption struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}

	// InputField pairs a field key with its definition
	InputField struct {
		Key string
		FieldDef
	}

	// InputSchema is an ordered set of input fields. It encodes as a JSON
	// object whose key order matches declaration order
	InputSchema []InputField

	// InputButton is a submit button shown with an input request
	InputButton struct {
		Label  string `json:"label"`
		Intent Intent `json:"intent"`
	}
)

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"

	IntentPrimary   Intent = "primary"
	IntentSecondary Intent = "secondary"
	IntentDanger    Intent = "danger"

	// DefaultInputKey is the field key used when an input request is made
	// with a bare prompt
	DefaultInputKey = "input"

	// DefaultButtonLabel is the label of the button added to input requests
	// that declare none
	DefaultButtonLabel = "Continue"
)

var (
	ErrFieldKeyEmpty      = errors.New("field key empty")
	ErrFieldKeyDuplicate  = errors.New("duplicate field key")
	ErrFieldTypeInvalid   = errors.New("invalid field type")
	ErrFieldLabelEmpty    = errors.New("field label empty")
	ErrSelectNoOptions    = errors.New("select field requires options")
	ErrButtonLabelEmpty   = errors.New("button label empty")
	ErrButtonIntent       = errors.New("invalid button intent")
	ErrInputSchemaInvalid = errors.New("input schema must be a JSON object")
)

var (
	validFieldTypes = util.SetOf(
		FieldText, FieldNumber, FieldCheckbox, FieldSelect,
	)

	validIntents = util.SetOf(IntentPrimary, IntentSecondary, IntentDanger)
)

// FieldTypes returns every supported field type
func FieldTypes() []FieldType {
	return []FieldType{FieldText, FieldNumber, FieldCheckbox, FieldSelect}
}

// PromptSchema returns the single text field schema used when an input is
// requested with a prompt and no explicit schema
func PromptSchema(prompt string) InputSchema {
	return InputSchema{{
		Key:      DefaultInputKey,
		FieldDef: FieldDef{Type: FieldText, Label: prompt},
	}}
}

// DefaultButtons returns the button set used when none are provided
func DefaultButtons() []InputButton {
	return []InputButton{{Label: DefaultButtonLabel, Intent: IntentPrimary}}
}

// NormalizeButtons fills in missing intents and the default button
func NormalizeButtons(buttons []InputButton) []InputButton {
	if len(buttons) == 0 {
		return DefaultButtons()
	}
	res := make([]InputButton, len(buttons))
	for i, b := range buttons {
		if b.Intent == "" {
			b.Intent = IntentPrimary
		}
		res[i] = b
	}
	return res
}

// Get returns the field with the given key
func (s InputSchema) Get(key string) (FieldDef, bool) {
	for _, f := range s {
		if f.Key == key {
			return f.FieldDef, true
		}
	}
	return FieldDef{}, false
}

// Keys returns the field keys in declaration order
func (s InputSchema) Keys() []string {
	res := make([]string, len(s))
	for i, f := range s {
		res[i] = f.Key
	}
	return res
}

// Validate checks every field definition and the uniqueness of keys
func (s InputSchema) Validate() error {
	seen := util.Set[string]{}
	for _, f := range s {
		if f.Key == "" {
			return ErrFieldKeyEmpty
		}
		if seen.Contains(f.Key) {
			return fmt.Errorf("%w: %s", ErrFieldKeyDuplicate, f.Key)
		}
		seen.Add(f.Key)
		if err := f.FieldDef.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", f.Key, err)
		}
	}
	return nil
}

// Validate checks that the field has a known type and a label
func (d FieldDef) Validate() error {
	if !validFieldTypes.Contains(d.Type) {
		return fmt.Errorf("%w: %q", ErrFieldTypeInvalid, d.Type)
	}
	if d.Label == "" {
		return ErrFieldLabelEmpty
	}
	if d.Type == FieldSelect && len(d.Options) == 0 {
		return ErrSelectNoOptions
	}
	return nil
}

// Validate checks the button label and intent
func (b InputButton) Validate() error {
	if b.Label == "" {
		return ErrButtonLabelEmpty
	}
	if !validIntents.Contains(b.Intent) {
		return fmt.Errorf("%w: %q", ErrButtonIntent, b.Intent)
	}
	return nil
}

// MarshalJSON encodes the schema as an object, preserving field order
func (s InputSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		def, err := json.Marshal(f.FieldDef)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(def)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of field definitions in document order
func (s *InputSchema) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		*s = nil
		return nil
	}
	if !res.IsObject() {
		return ErrInputSchemaInvalid
	}
	var fields InputSchema
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		var def FieldDef
		if err = json.Unmarshal([]byte(value.Raw), &def); err != nil {
			return false
		}
		fields = append(fields, InputField{Key: key.String(), FieldDef: def})
		return true
	})
	if err != nil {
		return err
	}
	*s = fields
	return nil
}
