// Package azureai implements the LLM backend adapter for Azure AI
// Inference endpoints: POST /chat/completions with an SSE delta stream.
package azureai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/catalpa-cl/espresso/internal/adapter/llmhttp"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
)

const (
	apiVersion = "2024-05-01-preview"

	defaultMaxTokens   = 2048
	defaultTemperature = 0.8
	defaultTopP        = 0.1
)

func init() {
	llmbackend.Register(provider.KindAzureAI, func() llmbackend.Generator {
		return &Generator{}
	})
}

// Generator streams chat completions from an Azure AI Inference endpoint.
type Generator struct{}

// Kind returns the provider kind this adapter serves.
func (g *Generator) Kind() provider.Kind { return provider.KindAzureAI }

type chatRequest struct {
	Model         string                `json:"model"`
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

// Generate issues one streaming chat call. No retries; failover policy
// lives in the invoker.
func (g *Generator) Generate(ctx context.Context, ep llm.Endpoint, req llm.Request) (<-chan llm.Delta, error) {
	resp, err := g.post(ctx, ep, chatRequest{
		Model: req.Model,
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

// TestConnection issues a minimal one-token completion as a health probe.
func (g *Generator) TestConnection(ctx context.Context, ep llm.Endpoint) error {
	resp, err := g.post(ctx, ep, chatRequest{
		Messages: []llmhttp.ChatMessage{
			{Role: "system", Content: "You are a health check. Reply with 'ok'."},
			{Role: "user", Content: "ping"},
		},
		MaxTokens:   1,
		Temperature: 0,
		TopP:        1,
	})
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (g *Generator) post(ctx context.Context, ep llm.Endpoint, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
	}

	url := llmhttp.BaseURL(ep.URL) + "/chat/completions?api-version=" + apiVersion
	httpReq, err := llmhttp.NewJSONRequest(ctx, url, bytes.NewReader(body), ep.Credential)
	if err != nil {
		return nil, llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
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
