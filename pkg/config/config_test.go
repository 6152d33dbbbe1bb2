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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAgentListenAddr, cfg.AgentListenAddr)
	assert.Equal(t, DefaultGatewayURL, cfg.GatewayURL)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("LLM_GATEWAY_URL", "http://localhost:9001")
	t.Setenv("KUBECHAT_MAX_ITERATIONS", "3")
	t.Setenv("KUBECHAT_COMMAND_TIMEOUT", "45")
	t.Setenv("KUBECHAT_FETCH_TIMEOUT", "2m")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "http://localhost:9001", cfg.GatewayURL)
	assert.Equal(t, 3, cfg.MaxIterations)
	// Bare integers are seconds, Go duration strings work too.
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("KUBECHAT_MAX_ITERATIONS", "lots")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: openrouter\nmaxIterations: 7\ncommandTimeout: 10000000000\n"), 0o644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultGatewayURL, cfg.GatewayURL)
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "openrouter is valid", mutate: func(c *Config) { c.Provider = "openrouter" }},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "bard" }, wantErr: true},
		{name: "zero iterations", mutate: func(c *Config) { c.MaxIterations = 0 }, wantErr: true},
		{name: "zero conversations", mutate: func(c *Config) { c.MaxConversations = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
