package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/arcweave/phantom/internal/gitbridge"
	"github.com/arcweave/phantom/internal/store"
)

// Client is a thin unix-socket HTTP client for the command surface,
// grounded on the teacher's internal/transport/client.go (unix-socket
// DialContext override, path-based method wrappers, checkStatus).
type Client struct {
	http *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ListBranches(ctx context.Context) ([]gitbridge.Branch, error) {
	var out []gitbridge.Branch
	err := c.do(ctx, http.MethodGet, "/branches", nil, &out)
	return out, err
}

func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	var out struct {
		Branch string `json:"branch"`
	}
	err := c.do(ctx, http.MethodGet, "/branches/current", nil, &out)
	return out.Branch, err
}

// RunAnalysisParams mirrors the server's runAnalysisRequest body but is
// exported for use by out-of-package callers (e.g. cmd/phantomctl).
type RunAnalysisParams struct {
	PresetID     int64    `json:"preset_id"`
	Branch       string   `json:"branch"`
	Level        int      `json:"level"`
	TargetNodeID *string  `json:"target_node_id,omitempty"`
	CLIBinary    string   `json:"cli_binary,omitempty"`
	Model        string   `json:"model,omitempty"`
	BudgetUSD    *float64 `json:"budget_usd,omitempty"`
}

func (c *Client) RunAnalysis(ctx context.Context, params RunAnalysisParams) (int64, error) {
	var out struct {
		AnalysisID int64 `json:"analysis_id"`
	}
	err := c.do(ctx, http.MethodPost, "/analyses", params, &out)
	return out.AnalysisID, err
}

func (c *Client) GetAnalysis(ctx context.Context, id int64) (*store.Analysis, error) {
	var out store.Analysis
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/analyses/%d", id), nil, &out)
	return &out, err
}

func (c *Client) ListAnalyses(ctx context.Context, branch string) ([]*store.Analysis, error) {
	var out []*store.Analysis
	err := c.do(ctx, http.MethodGet, "/analyses?branch="+branch, nil, &out)
	return out, err
}

func (c *Client) ListAnalysisPresets(ctx context.Context) ([]*store.AnalysisPreset, error) {
	var out []*store.AnalysisPreset
	err := c.do(ctx, http.MethodGet, "/presets/analysis", nil, &out)
	return out, err
}

func (c *Client) GetSetting(ctx context.Context, key string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	err := c.do(ctx, http.MethodGet, "/settings/"+key, nil, &out)
	return out.Value, err
}

func (c *Client) SetSetting(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/settings/"+key, setSettingRequest{Value: value}, nil)
}

// CreateTerminalParams mirrors the server's createTerminalRequest body but
// is exported for use by out-of-package callers (e.g. cmd/phantomctl).
type CreateTerminalParams struct {
	Shell string   `json:"shell,omitempty"`
	Cols  uint16   `json:"cols"`
	Rows  uint16   `json:"rows"`
	Cwd   string   `json:"cwd,omitempty"`
	Env   []string `json:"env,omitempty"`
}

func (c *Client) CreateTerminal(ctx context.Context, params CreateTerminalParams) (int, error) {
	var out createTerminalResponse
	err := c.do(ctx, http.MethodPost, "/terminals", params, &out)
	return out.SessionID, err
}
