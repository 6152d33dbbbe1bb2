package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// clientGrace pads the HTTP request deadline beyond the command timeout so
// the executor's own timeout result arrives instead of a client-side abort.
const clientGrace = 10 * time.Second

// Client calls a remote executor service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the executor at baseURL.
func NewClient(baseURL string, commandTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: commandTimeout + clientGrace,
		},
	}
}

// Run submits a full command line (with tool prefix) to the executor.
// A disallowed command surfaces as an error carrying the executor's detail
// text; so does any transport failure. A failing command is a normal result.
func (c *Client) Run(ctx context.Context, command string, timeout time.Duration) (*api.CommandResult, error) {
	body, err := json.Marshal(api.ExecuteRequest{
		Command:        command,
		TimeoutSeconds: int(timeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling executor service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := readDetail(resp.Body)
		if resp.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrCommandNotAllowed, detail)
		}
		return nil, fmt.Errorf("executor service returned %d: %s", resp.StatusCode, detail)
	}

	var result api.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding executor response: %w", err)
	}
	return &result, nil
}

func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var er api.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Detail != "" {
		return er.Detail
	}
	return strings.TrimSpace(string(data))
}
