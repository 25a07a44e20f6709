package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/localrivet/gomcp/server"

	"github.com/danphilibin/relay/internal/agent"
	"github.com/danphilibin/relay/internal/callresponse"
	"github.com/danphilibin/relay/pkg/api"
)

type (
	// Runner is the call-response surface the tools drive. It is served
	// in-process by an Orchestrator or remotely by the HTTP client
	Runner interface {
		ListWorkflows(ctx context.Context) ([]*api.WorkflowInfo, error)
		StartRun(
			ctx context.Context, workflow string, data map[string]any,
		) (*api.CallResponseResult, error)
		Respond(
			ctx context.Context, runID api.RunID, event api.MessageID,
			data json.RawMessage,
		) (*api.CallResponseResult, error)
		GetRun(
			ctx context.Context, runID api.RunID,
		) (*api.CallResponseResult, error)
	}

	// Server publishes the workflow catalog of a Runner as MCP tools
	Server struct {
		runner  Runner
		catalog []*agent.Capability
		timeout time.Duration
	}

	local struct {
		*callresponse.Orchestrator
	}
)

const (
	serverName = "relay-mcp"

	// DefaultCallTimeout bounds a single tool call
	DefaultCallTimeout = 2 * time.Minute
)

// NewServer reads the workflow catalog from runner. Workflows registered
// after this call are not published
func NewServer(
	ctx context.Context, runner Runner, timeout time.Duration,
) (*Server, error) {
	wfs, err := runner.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := agent.BuildCatalog(wfs)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Server{
		runner:  runner,
		catalog: catalog,
		timeout: timeout,
	}, nil
}

// Local adapts an in-process Orchestrator to the Runner interface
func Local(o *callresponse.Orchestrator) Runner {
	return local{Orchestrator: o}
}

// MCPServer builds the MCP server with every tool registered. Callers pick
// the transport (AsStdio, AsEmbedded) before running it
func (s *Server) MCPServer() server.Server {
	srv := server.NewServer(serverName)
	s.registerTools(srv)
	return srv
}

// Catalog returns the capabilities published as tools
func (s *Server) Catalog() []*agent.Capability {
	return s.catalog
}

func (l local) ListWorkflows(context.Context) ([]*api.WorkflowInfo, error) {
	return l.Orchestrator.ListWorkflows(), nil
}
