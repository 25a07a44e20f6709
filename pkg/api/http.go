package api

import "encoding/json"

type (
	// WorkflowInfo describes a registered workflow
	WorkflowInfo struct {
		Slug        Slug        `json:"slug"`
		Title       string      `json:"title"`
		Description string      `json:"description,omitempty"`
		Input       InputSchema `json:"input,omitempty"`
	}

	// WorkflowsListResponse contains every registered workflow
	WorkflowsListResponse struct {
		Workflows []*WorkflowInfo `json:"workflows"`
		Count     int             `json:"count"`
	}

	// StartWorkflowRequest starts a run without waiting on it
	StartWorkflowRequest struct {
		Name string         `json:"name"`
		Data map[string]any `json:"data,omitempty"`
	}

	// WorkflowStartedResponse is returned when a run is created
	WorkflowStartedResponse struct {
		ID   RunID `json:"id"`
		Name Slug  `json:"name"`
	}

	// RunRequest starts a run and waits for its first pause
	RunRequest struct {
		Workflow string         `json:"workflow"`
		Data     map[string]any `json:"data,omitempty"`
	}

	// RespondRequest answers the interaction a run is waiting on. Data
	// holding a boolean "approved" is read as an approval, except when the
	// pending interaction is an input request: then the whole of Data is
	// the input value, "approved" included
	RespondRequest struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	// EventRequest is the UI form of a response, posted to the event
	// endpoint of a run. It carries either a value map or an approval
	EventRequest struct {
		Value    map[string]any `json:"value,omitempty"`
		Approved *bool          `json:"approved,omitempty"`
	}

	// EventAcceptedResponse acknowledges an event posted by the UI
	EventAcceptedResponse struct {
		RunID RunID     `json:"run_id"`
		Event MessageID `json:"event"`
	}

	// RunMessagesResponse is the full persisted log of a run
	RunMessagesResponse struct {
		RunID    RunID     `json:"run_id"`
		Messages []Message `json:"messages"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Status  string `json:"status"`
		Version string `json:"version,omitempty"`
	}

	// ErrorResponse is the body of every failed API call
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)

// HealthStatusOK is reported by a running service
const HealthStatusOK = "ok"

// Payload converts the UI event form into a respond payload
func (r *EventRequest) Payload() (json.RawMessage, error) {
	if r.Approved != nil {
		return json.Marshal(map[string]bool{ApprovedKey: *r.Approved})
	}
	if r.Value == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(r.Value)
}
