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

// Package config loads the process configuration. Configuration is read once
// at startup and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sigs.k8s.io/yaml"
)

// Defaults mirror the service topology used in docker-compose deployments.
const (
	DefaultAgentListenAddr    = ":8004"
	DefaultGatewayListenAddr  = ":8001"
	DefaultExecutorListenAddr = ":8003"

	DefaultGatewayURL  = "http://llm-gateway:8001"
	DefaultExecutorURL = "http://executor:8003"

	DefaultMaxIterations    = 15
	DefaultMaxConversations = 1000
	DefaultCommandTimeout   = 30 * time.Second
	DefaultFetchTimeout     = 15 * time.Second
	DefaultLLMTimeout       = 60 * time.Second
)

// Config carries the settings for all three services. Each subcommand reads
// only the fields it needs.
type Config struct {
	AgentListenAddr    string `json:"agentListenAddr,omitempty"`
	GatewayListenAddr  string `json:"gatewayListenAddr,omitempty"`
	ExecutorListenAddr string `json:"executorListenAddr,omitempty"`

	GatewayURL  string `json:"gatewayURL,omitempty"`
	ExecutorURL string `json:"executorURL,omitempty"`

	// Provider selects the upstream LLM provider: "anthropic" or "openrouter".
	Provider         string `json:"provider,omitempty"`
	Model            string `json:"model,omitempty"`
	AnthropicAPIKey  string `json:"anthropicAPIKey,omitempty"`
	OpenRouterAPIKey string `json:"openRouterAPIKey,omitempty"`

	MaxIterations    int `json:"maxIterations,omitempty"`
	MaxConversations int `json:"maxConversations,omitempty"`

	CommandTimeout time.Duration `json:"commandTimeout,omitempty"`
	FetchTimeout   time.Duration `json:"fetchTimeout,omitempty"`
	LLMTimeout     time.Duration `json:"llmTimeout,omitempty"`

	// JournalPath enables JSONL audit logging of agent turns when non-empty.
	JournalPath string `json:"journalPath,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AgentListenAddr:    DefaultAgentListenAddr,
		GatewayListenAddr:  DefaultGatewayListenAddr,
		ExecutorListenAddr: DefaultExecutorListenAddr,
		GatewayURL:         DefaultGatewayURL,
		ExecutorURL:        DefaultExecutorURL,
		Provider:           "anthropic",
		MaxIterations:      DefaultMaxIterations,
		MaxConversations:   DefaultMaxConversations,
		CommandTimeout:     DefaultCommandTimeout,
		FetchTimeout:       DefaultFetchTimeout,
		LLMTimeout:         DefaultLLMTimeout,
	}
}

// FromEnv layers environment variables over the defaults.
func FromEnv() (Config, error) {
	c := Default()

	stringVar(&c.AgentListenAddr, "KUBECHAT_LISTEN_ADDR")
	stringVar(&c.GatewayListenAddr, "KUBECHAT_GATEWAY_LISTEN_ADDR")
	stringVar(&c.ExecutorListenAddr, "KUBECHAT_EXECUTOR_LISTEN_ADDR")
	stringVar(&c.GatewayURL, "LLM_GATEWAY_URL")
	stringVar(&c.ExecutorURL, "EXECUTOR_URL")
	stringVar(&c.Provider, "LLM_PROVIDER")
	stringVar(&c.Model, "LLM_MODEL")
	stringVar(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	stringVar(&c.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	stringVar(&c.JournalPath, "KUBECHAT_JOURNAL_PATH")

	if err := intVar(&c.MaxIterations, "KUBECHAT_MAX_ITERATIONS"); err != nil {
		return c, err
	}
	if err := intVar(&c.MaxConversations, "KUBECHAT_MAX_CONVERSATIONS"); err != nil {
		return c, err
	}
	if err := durationVar(&c.CommandTimeout, "KUBECHAT_COMMAND_TIMEOUT"); err != nil {
		return c, err
	}
	if err := durationVar(&c.FetchTimeout, "KUBECHAT_FETCH_TIMEOUT"); err != nil {
		return c, err
	}
	if err := durationVar(&c.LLMTimeout, "KUBECHAT_LLM_TIMEOUT"); err != nil {
		return c, err
	}

	return c, nil
}

// LoadFile layers a YAML config file over c. Missing files are not an error
// so that the flag can carry a conventional default path.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "anthropic", "openrouter":
	default:
		return fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("maxIterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxConversations < 1 {
		return fmt.Errorf("maxConversations must be at least 1, got %d", c.MaxConversations)
	}
	return nil
}

func stringVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func durationVar(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	// Accept both bare seconds (the historical form) and Go duration strings.
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", key, v, err)
	}
	*dst = d
	return nil
}
