package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danphilibin/relay/pkg/util"
)

type (
	// MessageType is the discriminant of the stream message union
	MessageType string

	// Message is one entry in a run's append-only log. Which fields are set
	// depends on Type
	Message struct {
		Type     MessageType    `json:"type"`
		ID       MessageID      `json:"id"`
		Text     string         `json:"text,omitempty"`
		Block    *OutputBlock   `json:"block,omitempty"`
		Prompt   string         `json:"prompt,omitempty"`
		Schema   InputSchema    `json:"schema,omitempty"`
		Buttons  []InputButton  `json:"buttons,omitempty"`
		Value    map[string]any `json:"value,omitempty"`
		Complete *bool          `json:"complete,omitempty"`
		Message  string         `json:"message,omitempty"`
		Approved *bool          `json:"approved,omitempty"`
		Error    string         `json:"error,omitempty"`
	}

	// ValidationError reports a message that does not conform to the schema
	// of its type
	ValidationError struct {
		Type   MessageType
		ID     MessageID
		Reason string
	}
)

const (
	MessageOutput           MessageType = "output"
	MessageLog              MessageType = "log"
	MessageInputRequest     MessageType = "input_request"
	MessageInputReceived    MessageType = "input_received"
	MessageLoading          MessageType = "loading"
	MessageConfirmRequest   MessageType = "confirm_request"
	MessageConfirmReceived  MessageType = "confirm_received"
	MessageWorkflowComplete MessageType = "workflow_complete"
)

// WorkflowCompleteID is the message id of the terminal marker
const WorkflowCompleteID MessageID = "workflow-complete"

var ErrInvalidMessage = errors.New("invalid message")

var validMessageTypes = util.SetOf(
	MessageOutput, MessageLog, MessageInputRequest, MessageInputReceived,
	MessageLoading, MessageConfirmRequest, MessageConfirmReceived,
	MessageWorkflowComplete,
)

// NewOutputMessage creates an output message carrying a rich block
func NewOutputMessage(id MessageID, block *OutputBlock) *Message {
	return &Message{Type: MessageOutput, ID: id, Block: block}
}

// NewLogMessage creates a plain text log message
func NewLogMessage(id MessageID, text string) *Message {
	return &Message{Type: MessageLog, ID: id, Text: text}
}

// NewInputRequest creates an input request. A nil schema becomes a single
// text field labelled with the prompt, and missing buttons become the
// default Continue button
func NewInputRequest(
	id MessageID, prompt string, schema InputSchema, buttons []InputButton,
) *Message {
	if len(schema) == 0 {
		schema = PromptSchema(prompt)
	}
	return &Message{
		Type:    MessageInputRequest,
		ID:      id,
		Prompt:  prompt,
		Schema:  schema,
		Buttons: NormalizeButtons(buttons),
	}
}

// NewInputReceived creates the message recording a submitted input
func NewInputReceived(id MessageID, value map[string]any) *Message {
	if value == nil {
		value = map[string]any{}
	}
	return &Message{Type: MessageInputReceived, ID: id, Value: value}
}

// NewLoadingMessage creates a loading indicator message
func NewLoadingMessage(id MessageID, text string, complete bool) *Message {
	return &Message{
		Type:     MessageLoading,
		ID:       id,
		Text:     text,
		Complete: &complete,
	}
}

// NewConfirmRequest creates a confirmation request
func NewConfirmRequest(id MessageID, message string) *Message {
	return &Message{Type: MessageConfirmRequest, ID: id, Message: message}
}

// NewConfirmReceived creates the message recording a confirmation decision
func NewConfirmReceived(id MessageID, approved bool) *Message {
	return &Message{
		Type:     MessageConfirmReceived,
		ID:       id,
		Approved: &approved,
	}
}

// NewWorkflowComplete creates the terminal marker of a successful run
func NewWorkflowComplete() *Message {
	return &Message{Type: MessageWorkflowComplete, ID: WorkflowCompleteID}
}

// NewWorkflowFailed creates the terminal marker of a failed run
func NewWorkflowFailed(reason string) *Message {
	return &Message{
		Type:  MessageWorkflowComplete,
		ID:    WorkflowCompleteID,
		Error: reason,
	}
}

// ParseMessage decodes and validates a single message
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Type == MessageInputReceived && m.Value == nil {
		m.Value = map[string]any{}
	}
	return &m, nil
}

// Validate checks that the message has a known type and the fields that
// type requires
func (m *Message) Validate() error {
	if !validMessageTypes.Contains(m.Type) {
		return m.invalid("unknown message type")
	}
	if m.ID == "" {
		return m.invalid("id is required")
	}

	switch m.Type {
	case MessageOutput:
		if m.Block == nil {
			return m.invalid("block is required")
		}
		if err := m.Block.Validate(); err != nil {
			return m.invalid(err.Error())
		}
	case MessageInputRequest:
		if m.Prompt == "" {
			return m.invalid("prompt is required")
		}
		if len(m.Schema) == 0 {
			return m.invalid("schema is required")
		}
		if err := m.Schema.Validate(); err != nil {
			return m.invalid(err.Error())
		}
		for _, b := range m.Buttons {
			if err := b.Validate(); err != nil {
				return m.invalid(err.Error())
			}
		}
	case MessageLoading:
		if m.Complete == nil {
			return m.invalid("complete is required")
		}
	case MessageConfirmRequest:
		if m.Message == "" {
			return m.invalid("message is required")
		}
	case MessageConfirmReceived:
		if m.Approved == nil {
			return m.invalid("approved is required")
		}
	}
	return nil
}

// IsRequest reports whether the message asks for a human response
func (m *Message) IsRequest() bool {
	return m.Type == MessageInputRequest || m.Type == MessageConfirmRequest
}

// IsReceived reports whether the message records a human response
func (m *Message) IsReceived() bool {
	return m.Type == MessageInputReceived || m.Type == MessageConfirmReceived
}

// Answers reports whether m is the received counterpart of request req
func (m *Message) Answers(req *Message) bool {
	if m.ID != req.ID {
		return false
	}
	switch req.Type {
	case MessageInputRequest:
		return m.Type == MessageInputReceived
	case MessageConfirmRequest:
		return m.Type == MessageConfirmReceived
	default:
		return false
	}
}

// IsLoadingComplete reports whether a loading message marks completion
func (m *Message) IsLoadingComplete() bool {
	return m.Type == MessageLoading && m.Complete != nil && *m.Complete
}

// IsApproved reports the decision of a confirm_received message
func (m *Message) IsApproved() bool {
	return m.Approved != nil && *m.Approved
}

// Key identifies a message for duplicate detection. Replayed steps produce
// messages with identical keys
func (m *Message) Key() string {
	if m.IsLoadingComplete() {
		return string(m.Type) + ":" + string(m.ID) + ":complete"
	}
	return string(m.Type) + ":" + string(m.ID)
}

func (m *Message) invalid(reason string) error {
	return &ValidationError{Type: m.Type, ID: m.ID, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s (%s)", ErrInvalidMessage, e.Reason, e.Type)
	}
	return fmt.Sprintf("%s: %s (%s %s)",
		ErrInvalidMessage, e.Reason, e.Type, e.ID)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMessage
}
