// Package azureopenai implements the LLM backend adapter for Azure
// OpenAI: POST /openai/deployments/{deployment}/chat/completions with an
// SSE delta stream. The model's external name is the deployment name,
// and authentication uses the api-key header instead of a bearer token.
package azureopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/catalpa-cl/espresso/internal/adapter/llmhttp"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
)

const (
	apiVersion = "2024-12-01-preview"

	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
	defaultTopP        = 1.0
)

func init() {
	llmbackend.Register(provider.KindAzureOpenAI, func() llmbackend.Generator {
		return &Generator{}
	})
}

// Generator streams chat completions from an Azure OpenAI deployment.
type Generator struct{}

// Kind returns the provider kind this adapter serves.
func (g *Generator) Kind() provider.Kind { return provider.KindAzureOpenAI }

type chatRequest struct {
	Messages      []llmhttp.ChatMessage `json:"messages"`
	MaxTokens     int                   `json:"max_tokens"`
	Temperature   float64               `json:"temperature"`
	TopP          float64               `json:"top_p"`
	Stream        bool                  `json:"stream"`
	StreamOptions *streamOptions        `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Generate issues one streaming chat call against the deployment named
// by req.Model. No retries; failover policy lives in the invoker.
func (g *Generator) Generate(ctx context.Context, ep llm.Endpoint, req llm.Request) (<-chan llm.Delta, error) {
	resp, err := g.post(ctx, ep, req.Model, chatRequest{
		Messages: []llmhttp.ChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:     defaultMaxTokens,
		Temperature:   defaultTemperature,
		TopP:          defaultTopP,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Delta, 8)
	go llmhttp.ReadChatStream(ctx, ep.URL, resp.Body, out)
	return out, nil
}

// TestConnection issues a one-token completion against an unnamed
// deployment. A DeploymentNotFound answer still proves the endpoint is
// reachable and the key is accepted, so it counts as healthy.
func (g *Generator) TestConnection(ctx context.Context, ep llm.Endpoint) error {
	resp, err := g.post(ctx, ep, "", chatRequest{
		Messages:  []llmhttp.ChatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
		TopP:      1,
	})
	if err != nil {
		var pe *llm.ProviderError
		if errors.As(err, &pe) && pe.Kind == llm.KindModelNotFound {
			return nil
		}
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (g *Generator) post(ctx context.Context, ep llm.Endpoint, deployment string, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
	}

	endpoint := llmhttp.BaseURL(ep.URL) + "/openai/deployments/" +
		url.PathEscape(deployment) + "/chat/completions?api-version=" + apiVersion
	httpReq, err := llmhttp.NewJSONRequest(ctx, endpoint, bytes.NewReader(body), "")
	if err != nil {
		return nil, llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
	}
	if ep.Credential != "" {
		httpReq.Header.Set("api-key", ep.Credential)
	}

	resp, err := llmhttp.Client(ep.VerifyTLS).Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(llm.KindOf(err), ep.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, llm.NewProviderError(llm.KindFromStatus(resp.StatusCode), ep.URL,
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}
	return resp, nil
}
