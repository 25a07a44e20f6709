package api

type (
	// RunStatus summarizes where a run stands from a caller's point of view
	RunStatus string

	// CallResponseResult is the synchronous view of a run: the messages
	// produced since the caller last acted, and the interaction (if any) the
	// run is now waiting on
	CallResponseResult struct {
		RunID        RunID     `json:"run_id"`
		WorkflowSlug Slug      `json:"workflow_slug"`
		RunURL       *string   `json:"run_url"`
		Status       RunStatus `json:"status"`
		Messages     []Message `json:"messages"`
		Interaction  *Message  `json:"interaction"`
	}
)

const (
	StatusAwaitingInput   RunStatus = "awaiting_input"
	StatusAwaitingConfirm RunStatus = "awaiting_confirm"
	StatusComplete        RunStatus = "complete"

	// StatusRunning is reported when the stream ended or the wait budget
	// elapsed before the run paused or completed
	StatusRunning RunStatus = "running"
)

// StatusFor derives the run status from the interaction a consumer stopped
// on and whether it saw the terminal marker
func StatusFor(interaction *Message, terminal bool) RunStatus {
	switch {
	case interaction != nil && interaction.Type == MessageConfirmRequest:
		return StatusAwaitingConfirm
	case interaction != nil:
		return StatusAwaitingInput
	case terminal:
		return StatusComplete
	default:
		return StatusRunning
	}
}

// Failure returns the error recorded on the terminal marker, if any
func (r *CallResponseResult) Failure() (string, bool) {
	for i := range r.Messages {
		m := &r.Messages[i]
		if m.Type == MessageWorkflowComplete && m.Error != "" {
			return m.Error, true
		}
	}
	return "", false
}
