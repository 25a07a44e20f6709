package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

// HTTPClient calls the call-response API of a remote relay server
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

const userAgent = "Relay-Client/1.0"

var (
	ErrHTTPError = errors.New("relay returned HTTP error")
	ErrNotFound  = errors.New("relay resource not found")
)

// NewHTTPClient creates a client for the server at baseURL. The timeout
// must exceed the server's response timeout, since calls block until the
// run pauses
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ListWorkflows returns every workflow registered on the server
func (c *HTTPClient) ListWorkflows(
	ctx context.Context,
) ([]*api.WorkflowInfo, error) {
	var res api.WorkflowsListResponse
	if err := c.call(ctx, "GET", "/workflows", nil, &res); err != nil {
		return nil, err
	}
	return res.Workflows, nil
}

// StartRun starts a run and waits for its first pause
func (c *HTTPClient) StartRun(
	ctx context.Context, workflow string, data map[string]any,
) (*api.CallResponseResult, error) {
	req := api.RunRequest{Workflow: workflow, Data: data}
	var res api.CallResponseResult
	if err := c.call(ctx, "POST", "/api/run", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Respond answers the interaction a run waits on
func (c *HTTPClient) Respond(
	ctx context.Context, runID api.RunID, event api.MessageID,
	data json.RawMessage,
) (*api.CallResponseResult, error) {
	req := api.RespondRequest{Event: string(event), Data: data}
	path := "/api/run/" + url.PathEscape(string(runID)) + "/respond"
	var res api.CallResponseResult
	if err := c.call(ctx, "POST", path, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetRun reports the current state of a run
func (c *HTTPClient) GetRun(
	ctx context.Context, runID api.RunID,
) (*api.CallResponseResult, error) {
	path := "/api/run/" + url.PathEscape(string(runID))
	var res api.CallResponseResult
	if err := c.call(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) call(
	ctx context.Context, method, path string, body, out any,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, reader,
	)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)
	if err != nil {
		slog.Error("HTTP request failed",
			slog.String("path", path),
			slog.Duration("duration", dur),
			log.Error(err))
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp.StatusCode, respBody)
	}
	return json.Unmarshal(respBody, out)
}

func responseError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var errResp api.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrHTTPError, status, msg)
}
