package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubechat-dev/kubechat/pkg/api"
	"github.com/kubechat-dev/kubechat/pkg/llm/provider"
)

type fakeProvider struct {
	name       string
	configured bool
	response   *api.ChatCompletionResponse
	err        error
	lastReq    api.ChatCompletionRequest
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) Configured() bool     { return f.configured }
func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) Complete(ctx context.Context, req api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	f.lastReq = req
	if !f.configured {
		return nil, provider.ErrNotConfigured
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func newGateway(t *testing.T, p provider.Provider) *Client {
	t.Helper()
	mux := http.NewServeMux()
	NewService(p).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestGatewayCompletion(t *testing.T) {
	p := &fakeProvider{
		name:       "anthropic",
		configured: true,
		response: &api.ChatCompletionResponse{
			Content: "hello there",
			Model:   "claude-sonnet-4-20250514",
			Usage:   api.Usage{InputTokens: 12, OutputTokens: 4},
		},
	}
	client := newGateway(t, p)

	resp, err := client.Complete(context.Background(), api.ChatCompletionRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
		Model:    "claude-sonnet-4-20250514",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
}

func TestGatewayAppliesDefaults(t *testing.T) {
	p := &fakeProvider{name: "anthropic", configured: true, response: &api.ChatCompletionResponse{}}
	client := newGateway(t, p)

	_, err := client.Complete(context.Background(), api.ChatCompletionRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultTemperature, p.lastReq.Temperature)
	assert.Equal(t, defaultMaxTokens, p.lastReq.MaxTokens)
}

func TestGatewayUnconfiguredProviderIs503(t *testing.T) {
	client := newGateway(t, &fakeProvider{name: "anthropic"})

	_, err := client.Complete(context.Background(), api.ChatCompletionRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestGatewayUpstreamErrorPassthrough(t *testing.T) {
	p := &fakeProvider{
		name:       "openrouter",
		configured: true,
		err:        &provider.UpstreamError{StatusCode: http.StatusTooManyRequests, Body: "rate limited"},
	}
	client := newGateway(t, p)

	_, err := client.Complete(context.Background(), api.ChatCompletionRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderNotConfigured)
	assert.Contains(t, err.Error(), "429")
}

func TestGatewayRejectsEmptyMessages(t *testing.T) {
	client := newGateway(t, &fakeProvider{name: "anthropic", configured: true})

	_, err := client.Complete(context.Background(), api.ChatCompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
