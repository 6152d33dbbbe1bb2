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

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

const (
	openRouterBaseURL      = "https://openrouter.ai/api/v1"
	openRouterDefaultModel = "x-ai/grok-beta"
)

// OpenRouter proxies to the OpenRouter OpenAI-compatible completions API.
type OpenRouter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenRouter creates the provider. An empty apiKey leaves it unconfigured.
func NewOpenRouter(apiKey string, timeout time.Duration) *OpenRouter {
	return &OpenRouter{
		apiKey:     apiKey,
		baseURL:    openRouterBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *OpenRouter) Name() string         { return "openrouter" }
func (p *OpenRouter) Configured() bool     { return p.apiKey != "" }
func (p *OpenRouter) DefaultModel() string { return openRouterDefaultModel }

type openRouterRequest struct {
	Model       string        `json:"model"`
	Messages    []api.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type openRouterResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete calls the chat completions endpoint. A system prompt is carried as
// a leading system-role message, the OpenAI-compatible convention.
func (p *OpenRouter) Complete(ctx context.Context, req api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	messages := req.Messages
	if req.System != "" {
		messages = append([]api.Message{{Role: "system", Content: req.System}}, messages...)
	}

	body, err := json.Marshal(openRouterRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding openrouter request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building openrouter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/kubechat-dev/kubechat")
	httpReq.Header.Set("X-Title", "KubeChat")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling openrouter API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading openrouter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding openrouter response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openrouter response contained no choices")
	}

	model = parsed.Model
	if model == "" {
		model = req.Model
	}

	return &api.ChatCompletionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   model,
		Usage: api.Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}, nil
}
