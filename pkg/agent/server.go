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

package agent

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
	"github.com/kubechat-dev/kubechat/pkg/conversations"
	"github.com/kubechat-dev/kubechat/pkg/httpserver"
)

var turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kubechat_agent_turns_total",
	Help: "Turns processed by the agent service, by outcome.",
}, []string{"outcome"})

// Service is the HTTP boundary of the agent. It owns conversation ids:
// creation on first reference, single-turn admission, and deletion.
type Service struct {
	agent *Agent
	store conversations.Store

	// Collaborator URLs, reported by the health endpoint.
	GatewayURL  string
	ExecutorURL string
}

// NewService creates the agent HTTP service.
func NewService(agent *Agent, store conversations.Store) *Service {
	return &Service{agent: agent, store: store}
}

// Routes registers the service's handlers on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("DELETE /conversation/{id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	req, conv, ok := s.admitTurn(w, r)
	if !ok {
		return
	}
	defer s.store.EndTurn(conv.ID)

	resp := s.agent.Turn(r.Context(), conv, req.Message)
	if resp.Error {
		turnsTotal.WithLabelValues("error").Inc()
	} else {
		turnsTotal.WithLabelValues("success").Inc()
	}
	httpserver.WriteJSON(w, http.StatusOK, resp)
}

func (s *Service) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, conv, ok := s.admitTurn(w, r)
	if !ok {
		return
	}
	defer s.store.EndTurn(conv.ID)

	sse, err := httpserver.NewSSEWriter(w)
	if err != nil {
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcome := "success"
	s.agent.StreamTurn(r.Context(), conv, req.Message)(func(ev api.TurnEvent) bool {
		if ev.Type == api.EventError {
			outcome = "error"
		}
		if err := sse.Send(ev); err != nil {
			klog.V(2).Infof("client went away mid-stream (conversation %s): %v", conv.ID, err)
			outcome = "disconnected"
			return false
		}
		return true
	})
	turnsTotal.WithLabelValues(outcome).Inc()
}

// admitTurn decodes the request, resolves the conversation, and takes the
// per-conversation turn admission. On failure it writes the error response
// and returns ok=false; on success the caller must EndTurn.
func (s *Service) admitTurn(w http.ResponseWriter, r *http.Request) (api.ChatRequest, *conversations.Conversation, bool) {
	var req api.ChatRequest
	if err := httpserver.DecodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "message must not be empty")
		return req, nil, false
	}

	conv := s.store.GetOrCreate(req.ConversationID)
	if err := s.store.BeginTurn(conv.ID); err != nil {
		if errors.Is(err, conversations.ErrTurnInFlight) {
			httpserver.WriteError(w, http.StatusConflict, err.Error())
			return req, nil, false
		}
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
		return req, nil, false
	}
	return req, conv, true
}

func (s *Service) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Delete(id) {
		httpserver.WriteError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]string{
		"status":          "deleted",
		"conversation_id": id,
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":        "healthy",
		"service":       "agent",
		"conversations": s.store.Len(),
	}
	if s.GatewayURL != "" {
		body["llm_gateway_url"] = s.GatewayURL
	}
	if s.ExecutorURL != "" {
		body["executor_url"] = s.ExecutorURL
	}
	httpserver.WriteJSON(w, http.StatusOK, body)
}
