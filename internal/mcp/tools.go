package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/localrivet/gomcp/server"

	"github.com/danphilibin/relay/internal/agent"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type (
	respondArgs struct {
		RunID string `json:"run_id"`
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	statusArgs struct {
		RunID string `json:"run_id"`
	}
)

const toolListWorkflows = "list_workflows"

var ErrInvalidParams = errors.New("invalid params")

func (s *Server) registerTools(srv server.Server) {
	for _, c := range s.catalog {
		srv.Tool(c.Name, toolDescription(c),
			func(_ *server.Context, args map[string]any) (any, error) {
				return s.startRun(c, args)
			},
		)
	}

	srv.Tool(
		agent.RespondToolName,
		"Answer the input or confirmation a paused workflow is waiting "+
			"on. Pass the run_id and event from the paused result; data "+
			`is the field values, or {"approved": true|false} to confirm`,
		func(_ *server.Context, args respondArgs) (any, error) {
			return s.respond(args)
		},
	)

	srv.Tool(
		agent.StatusToolName,
		"Report the current state of a workflow run",
		func(_ *server.Context, args statusArgs) (any, error) {
			if args.RunID == "" {
				return nil, errInvalidParams("run_id is required")
			}
			ctx, cancel := s.callContext()
			defer cancel()
			res, err := s.runner.GetRun(ctx, api.RunID(args.RunID))
			return agentResult(res, err)
		},
	)

	srv.Tool(
		toolListWorkflows,
		"List the workflows that can be started",
		func(_ *server.Context, _ any) (any, error) {
			return toolResult(s.catalog, nil)
		},
	)
}

func (s *Server) startRun(
	c *agent.Capability, args map[string]any,
) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := c.Validate(args); err != nil {
		return nil, err
	}
	ctx, cancel := s.callContext()
	defer cancel()

	slog.Info("Tool starting workflow",
		log.Workflow(c.Workflow))
	res, err := s.runner.StartRun(ctx, string(c.Workflow), args)
	return agentResult(res, err)
}

func (s *Server) respond(args respondArgs) (any, error) {
	if args.RunID == "" || args.Event == "" {
		return nil, errInvalidParams("run_id and event are required")
	}
	data, err := json.Marshal(args.Data)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	ctx, cancel := s.callContext()
	defer cancel()

	res, err := s.runner.Respond(ctx,
		api.RunID(args.RunID), api.MessageID(args.Event), data,
	)
	return agentResult(res, err)
}

func (s *Server) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// toolDescription lists the parameters after the workflow description so
// agents see them even when a client ignores the input schema
func toolDescription(c *agent.Capability) string {
	if !c.HasParameters() {
		return c.Description
	}
	var b strings.Builder
	b.WriteString(c.Description)
	b.WriteString("\n\nParameters:")
	for _, name := range c.Parameters.Required {
		prop := c.Parameters.Properties[name].Value
		fmt.Fprintf(&b, "\n- %s", name)
		if prop.Type != nil && len(prop.Type.Slice()) > 0 {
			fmt.Fprintf(&b, " (%s)", prop.Type.Slice()[0])
		}
		if prop.Description != "" {
			fmt.Fprintf(&b, ": %s", prop.Description)
		}
		if len(prop.Enum) > 0 {
			fmt.Fprintf(&b, " [one of: %s]", enumValues(prop.Enum))
		}
	}
	return b.String()
}

func enumValues(values []any) string {
	res := make([]string, len(values))
	for i, v := range values {
		res[i] = fmt.Sprint(v)
	}
	return strings.Join(res, ", ")
}

func agentResult(res *api.CallResponseResult, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return textResult(agent.FormatForAgent(res)), nil
}

func toolResult(payload any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return textResult(string(raw)), nil
}

func textResult(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{
			{
				"type": "text",
				"text": text,
			},
		},
	}
}

func errInvalidParams(message string) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, message)
}
