package mcp_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localrivet/gomcp/client"
	"github.com/localrivet/gomcp/transport/embedded"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/internal/assert/helpers"
	relayclient "github.com/danphilibin/relay/internal/client"
	"github.com/danphilibin/relay/internal/mcp"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/internal/server"
	"github.com/danphilibin/relay/internal/workflows"
	"github.com/danphilibin/relay/pkg/api"
)

type toolClient struct {
	t *testing.T
	c client.Client
}

func charge() *relay.Definition {
	return &relay.Definition{
		Title: "Charge Card",
		Input: api.InputSchema{
			{Key: "amount", FieldDef: api.FieldDef{
				Type: api.FieldNumber, Label: "Amount",
			}},
		},
		Handler: func(ctx context.Context, run *relay.Run) error {
			return run.Output(ctx, "Charged")
		},
	}
}

func newToolClient(t *testing.T, runner mcp.Runner) *toolClient {
	t.Helper()
	s, err := mcp.NewServer(context.Background(), runner, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	serverTransport, clientTransport := embedded.NewTransportPair()
	srv := s.MCPServer().AsEmbedded(serverTransport)
	go func() {
		_ = srv.Run()
	}()

	c, err := client.NewClient(
		"embedded://", client.WithEmbedded(clientTransport),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &toolClient{t: t, c: c}
}

func (tc *toolClient) call(name string, args map[string]any) (string, error) {
	tc.t.Helper()
	result, err := tc.c.CallTool(name, args)
	if err != nil {
		return "", err
	}
	resultMap, ok := result.(map[string]any)
	if !ok {
		tc.t.Fatalf("unexpected result %T", result)
	}
	content, ok := resultMap["content"].([]any)
	if !ok || len(content) != 1 {
		tc.t.Fatalf("unexpected content %v", resultMap["content"])
	}
	item, _ := content[0].(map[string]any)
	text, _ := item["text"].(string)
	return text, nil
}

func runIDOf(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if id, ok := strings.CutPrefix(line, "Run ID: "); ok {
			return id
		}
	}
	return ""
}

func TestWorkflowToolRoundTrip(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestEnv(t, workflows.AskName())
	tc := newToolClient(t, mcp.Local(env.Orchestrator))

	text, err := tc.call("ask_name", map[string]any{})
	as.NoError(err)
	as.Contains(text, "Hello! I'd like to get to know you.")
	as.Contains(text, "[Workflow paused - awaiting_input]")
	as.Contains(text, "Event: relay-input-1")
	runID := runIDOf(text)
	as.NotEmpty(runID)

	text, err = tc.call("relay_respond", map[string]any{
		"run_id": runID,
		"event":  "relay-input-1",
		"data":   map[string]any{"input": "Agent"},
	})
	as.NoError(err)
	as.Contains(text, "Nice to meet you, Agent!")
	as.NotContains(text, "paused")

	text, err = tc.call("relay_status", map[string]any{"run_id": runID})
	as.NoError(err)
	as.Contains(text, "Nice to meet you, Agent!")
}

func TestWorkflowToolValidatesArguments(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestEnv(t, charge())
	tc := newToolClient(t, mcp.Local(env.Orchestrator))

	_, err := tc.call("charge_card", map[string]any{"amount": "lots"})
	as.Error(err)

	_, err = tc.call("charge_card", map[string]any{})
	as.Error(err)

	text, err := tc.call("charge_card", map[string]any{"amount": 12})
	as.NoError(err)
	as.Contains(text, "Charged")
}

func TestRespondRequiresIdentifiers(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestEnv(t, workflows.AskName())
	tc := newToolClient(t, mcp.Local(env.Orchestrator))

	_, err := tc.call("relay_respond", map[string]any{"event": "x"})
	as.Error(err)

	_, err = tc.call("relay_status", map[string]any{})
	as.Error(err)

	_, err = tc.call("relay_status", map[string]any{"run_id": "missing"})
	as.Error(err)
}

func TestListWorkflowsTool(t *testing.T) {
	as := assert.New(t)
	env := helpers.NewTestEnv(t, workflows.AskName(), charge())
	tc := newToolClient(t, mcp.Local(env.Orchestrator))

	text, err := tc.call("list_workflows", map[string]any{})
	as.NoError(err)
	as.Contains(text, `"name":"ask_name"`)
	as.Contains(text, `"name":"charge_card"`)
}

func TestRemoteRunner(t *testing.T) {
	as := assert.New(t)
	gin.SetMode(gin.TestMode)
	env := helpers.NewTestEnv(t, workflows.AskName(), charge())
	httpSrv := httptest.NewServer(
		server.NewServer(env.Orchestrator, env.Hub).SetupRoutes(),
	)
	defer httpSrv.Close()

	remote := relayclient.NewHTTPClient(httpSrv.URL, 5*time.Second)
	s, err := mcp.NewServer(context.Background(), remote, 0)
	as.NoError(err)
	if as.Len(s.Catalog(), 2) {
		as.Equal("ask_name", s.Catalog()[0].Name)
		as.Equal("charge_card", s.Catalog()[1].Name)
	}

	tc := newToolClient(t, remote)
	text, err := tc.call("charge_card", map[string]any{"amount": 3})
	as.NoError(err)
	as.Contains(text, "Charged")
}
