package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danphilibin/relay/pkg/api"
)

// RespondToolName is the tool agents call to answer a paused run
const RespondToolName = "relay_respond"

// StatusToolName is the tool agents call to check on a running run
const StatusToolName = "relay_status"

// FormatForAgent renders a call-response result as text: one line per
// message, then a footer describing the pause, completion or failure
func FormatForAgent(res *api.CallResponseResult) string {
	var lines []string
	sawComplete := false

	for i := range res.Messages {
		msg := &res.Messages[i]
		if msg.Type == api.MessageWorkflowComplete {
			sawComplete = true
		}
		if isCurrentInteraction(msg, res.Interaction) {
			continue
		}
		lines = append(lines, formatMessage(msg))
	}

	switch {
	case res.Status == api.StatusComplete:
		if !sawComplete {
			lines = append(lines, "[Workflow complete]")
		}
	case res.Interaction != nil:
		lines = append(lines, pauseFooter(res)...)
	case res.Status == api.StatusRunning:
		lines = append(lines,
			"",
			"[Workflow running]",
			"Run ID: "+string(res.RunID),
			"",
			fmt.Sprintf("Use %s to check on this workflow.", StatusToolName),
		)
	}
	return strings.Join(lines, "\n")
}

func pauseFooter(res *api.CallResponseResult) []string {
	in := res.Interaction
	lines := []string{
		"",
		fmt.Sprintf("[Workflow paused - %s]", res.Status),
		"Run ID: " + string(res.RunID),
		"Event: " + string(in.ID),
	}

	if in.Type == api.MessageInputRequest {
		lines = append(lines, "Prompt: "+in.Prompt, "Fields:")
		for _, f := range in.Schema {
			lines = append(lines, formatField(f))
		}
		if len(in.Buttons) > 0 {
			labels := make([]string, len(in.Buttons))
			for i, b := range in.Buttons {
				labels[i] = b.Label
			}
			lines = append(lines, "Buttons: "+strings.Join(labels, ", "))
		}
	} else {
		lines = append(lines, "Confirm: "+in.Message)
	}

	return append(lines,
		"",
		fmt.Sprintf("Use %s to continue this workflow.", RespondToolName),
	)
}

func isCurrentInteraction(msg, interaction *api.Message) bool {
	return interaction != nil && msg.IsRequest() && msg.ID == interaction.ID
}

func formatField(f api.InputField) string {
	desc := fieldDescription(f.FieldDef)
	line := fmt.Sprintf("- %s (%s): %s", f.Key, f.Type, desc)
	if f.Type != api.FieldSelect {
		return line
	}
	values := make([]string, len(f.Options))
	for i, opt := range f.Options {
		values[i] = opt.Value
	}
	return fmt.Sprintf("%s [options: %s]", line, strings.Join(values, ", "))
}

func formatMessage(msg *api.Message) string {
	switch msg.Type {
	case api.MessageOutput:
		return formatBlock(msg.Block)
	case api.MessageLog:
		return msg.Text
	case api.MessageInputRequest:
		return "[Input requested] " + msg.Prompt
	case api.MessageInputReceived:
		value, _ := json.Marshal(msg.Value)
		return "[Input received] " + string(value)
	case api.MessageLoading:
		if msg.IsLoadingComplete() {
			return "[Loading complete] " + msg.Text
		}
		return "[Loading] " + msg.Text
	case api.MessageConfirmRequest:
		return "[Confirmation requested] " + msg.Message
	case api.MessageConfirmReceived:
		if msg.IsApproved() {
			return "[Confirmation received] approved"
		}
		return "[Confirmation received] rejected"
	case api.MessageWorkflowComplete:
		if msg.Error != "" {
			return "[Workflow failed] " + msg.Error
		}
		return "[Workflow complete]"
	default:
		return "[Message]"
	}
}

func formatBlock(b *api.OutputBlock) string {
	if b == nil {
		return "[Output]"
	}
	switch b.Type {
	case api.BlockText:
		return b.Text
	case api.BlockMarkdown:
		return b.Content
	case api.BlockTable:
		if b.Title != "" {
			return fmt.Sprintf("[Table: %s]", b.Title)
		}
		return "[Table]"
	case api.BlockCode:
		lang := b.Language
		if lang == "" {
			lang = "plain"
		}
		return fmt.Sprintf("[Code: %s] %s", lang, b.Code)
	case api.BlockImage:
		return fmt.Sprintf("[Image: %s]", firstNonEmpty(b.Alt, b.Src))
	case api.BlockLink:
		return fmt.Sprintf("[Link: %s]", firstNonEmpty(b.Title, b.URL))
	case api.BlockButtons:
		labels := make([]string, len(b.Buttons))
		for i, btn := range b.Buttons {
			labels[i] = btn.Label
		}
		return fmt.Sprintf("[Buttons: %s]", strings.Join(labels, ", "))
	default:
		return "[Output]"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
