package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ResponseKind tells whether a response payload answers an input request or
// a confirmation request
type ResponseKind int

const (
	ResponseInput ResponseKind = iota
	ResponseConfirm
)

// ApprovedKey is the payload field that marks a confirmation response
const ApprovedKey = "approved"

var ErrInvalidResponse = errors.New("invalid response payload")

// ClassifyResponse sniffs a response payload: a boolean "approved" field
// marks a confirmation, anything else is an input value
func ClassifyResponse(data json.RawMessage) ResponseKind {
	if len(data) == 0 {
		return ResponseInput
	}
	res := gjson.GetBytes(data, ApprovedKey)
	if res.Type == gjson.True || res.Type == gjson.False {
		return ResponseConfirm
	}
	return ResponseInput
}

// DecodeInputValue decodes an input response into a field map. A JSON
// scalar is wrapped under the default input key
func DecodeInputValue(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidResponse)
		}
		return map[string]any{DefaultInputKey: res.Value()}, nil
	}
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return value, nil
}

// DecodeApproved extracts the approval decision from a confirm response
func DecodeApproved(data json.RawMessage) (bool, error) {
	res := gjson.GetBytes(data, ApprovedKey)
	switch res.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean",
			ErrInvalidResponse, ApprovedKey)
	}
}
