// Copyright 2025 The KubeChat Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// ErrProviderNotConfigured is returned when the gateway reports that its
// upstream provider has no credentials (a 503).
var ErrProviderNotConfigured = errors.New("LLM provider not configured")

// Client calls a remote LLM gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the gateway at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete performs one chat completion through the gateway. A single attempt
// is made; retry policy belongs to the caller.
func (c *Client) Complete(ctx context.Context, req api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling LLM gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, detailOf(data))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LLM gateway returned %d: %s", resp.StatusCode, detailOf(data))
	}

	var parsed api.ChatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	return &parsed, nil
}

func detailOf(data []byte) string {
	var er api.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Detail != "" {
		return er.Detail
	}
	return strings.TrimSpace(string(data))
}
