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

// Package provider implements the upstream LLM providers the gateway can
// proxy to.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// ErrNotConfigured is returned when a provider has no API key. The gateway
// maps it to a 503 so callers can distinguish it from upstream failures.
var ErrNotConfigured = errors.New("provider API key not configured")

// Provider is a chat-completion backend.
type Provider interface {
	// Name identifies the provider in health reports and logs.
	Name() string

	// Configured reports whether the provider has credentials.
	Configured() bool

	// DefaultModel is used when a request does not name a model.
	DefaultModel() string

	// Complete performs one chat completion.
	Complete(ctx context.Context, req api.ChatCompletionRequest) (*api.ChatCompletionResponse, error)
}

// UpstreamError carries a non-2xx status from the upstream provider API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}
