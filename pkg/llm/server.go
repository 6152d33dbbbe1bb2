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

// Package llm contains the LLM gateway service and the client the agent uses
// to reach it.
package llm

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
	"github.com/kubechat-dev/kubechat/pkg/httpserver"
	"github.com/kubechat-dev/kubechat/pkg/llm/provider"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kubechat_llm_completions_total",
		Help: "Chat completions processed by the gateway, by provider and outcome.",
	}, []string{"provider", "outcome"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kubechat_llm_tokens_total",
		Help: "Tokens consumed by completions, by provider and direction.",
	}, []string{"provider", "direction"})
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4096
)

// HealthResponse reports the gateway's provider configuration state.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Provider         string `json:"provider"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

// Service is the HTTP boundary of the LLM gateway.
type Service struct {
	provider provider.Provider
}

// NewService creates the gateway around a provider.
func NewService(p provider.Provider) *Service {
	return &Service{provider: p}
}

// Routes registers the gateway's handlers on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatCompletionRequest
	if err := httpserver.DecodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		httpserver.WriteError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	name := s.provider.Name()
	resp, err := s.provider.Complete(r.Context(), req)
	if err != nil {
		var upstream *provider.UpstreamError
		switch {
		case errors.Is(err, provider.ErrNotConfigured):
			completionsTotal.WithLabelValues(name, "unconfigured").Inc()
			httpserver.WriteError(w, http.StatusServiceUnavailable, name+" API key not configured")
		case errors.As(err, &upstream):
			completionsTotal.WithLabelValues(name, "upstream_error").Inc()
			klog.Errorf("%s upstream error: %v", name, err)
			httpserver.WriteError(w, upstream.StatusCode, name+" API error: "+upstream.Body)
		default:
			completionsTotal.WithLabelValues(name, "error").Inc()
			klog.Errorf("%s completion failed: %v", name, err)
			httpserver.WriteError(w, http.StatusInternalServerError, name+" API error: "+err.Error())
		}
		return
	}

	completionsTotal.WithLabelValues(name, "success").Inc()
	tokensTotal.WithLabelValues(name, "input").Add(float64(resp.Usage.InputTokens))
	tokensTotal.WithLabelValues(name, "output").Add(float64(resp.Usage.OutputTokens))
	httpserver.WriteJSON(w, http.StatusOK, resp)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:           "healthy",
		Service:          "llm-gateway",
		Provider:         s.provider.Name(),
		APIKeyConfigured: s.provider.Configured(),
	})
}
