// Package ollama implements the LLM backend adapter for Ollama-style
// servers: POST /api/chat with a newline-delimited JSON chunk stream.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/catalpa-cl/espresso/internal/adapter/llmhttp"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
)

// Generation defaults matching the upstream service configuration.
const (
	defaultTemperature = 0.8
	defaultTopP        = 0.1
)

// maxChunkSize bounds a single NDJSON line.
const maxChunkSize = 1024 * 1024

func init() {
	llmbackend.Register(provider.KindOllama, func() llmbackend.Generator {
		return &Generator{}
	})
}

// Generator streams chat completions from an Ollama server.
type Generator struct{}

// Kind returns the provider kind this adapter serves.
func (g *Generator) Kind() provider.Kind { return provider.KindOllama }

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chunk mirrors one NDJSON frame of the /api/chat response.
type chunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Generate issues one streaming chat call. No retries; failover policy
// lives in the invoker.
func (g *Generator) Generate(ctx context.Context, ep llm.Endpoint, req llm.Request) (<-chan llm.Delta, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   true,
		Options:  map[string]any{"temperature": defaultTemperature, "top_p": defaultTopP},
	})
	if err != nil {
		return nil, llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
	}

	url := llmhttp.BaseURL(ep.URL) + "/api/chat"
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

	out := make(chan llm.Delta, 8)
	go g.readStream(ctx, ep.URL, resp.Body, out)
	return out, nil
}

// readStream decodes NDJSON chunks until the done frame, an error frame,
// or a transport failure.
func (g *Generator) readStream(ctx context.Context, endpoint string, body io.ReadCloser, out chan<- llm.Delta) {
	defer close(out)
	defer func() { _ = body.Close() }()

	emit := func(d llm.Delta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var c chunk
		if err := json.Unmarshal(line, &c); err != nil {
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindMalformed, endpoint, err)})
			return
		}
		if c.Error != "" {
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindServerError, endpoint, errors.New(c.Error))})
			return
		}
		if c.Message.Content != "" {
			if !emit(llm.Delta{Text: c.Message.Content}) {
				return
			}
		}
		if c.Done {
			// Ollama reports one combined prompt count; attribute it to
			// the system side, where the rendered criterion prompt lives.
			emit(llm.Delta{Done: true, Usage: &llm.Usage{
				SystemTokens:     c.PromptEvalCount,
				CompletionTokens: c.EvalCount,
			}})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		emit(llm.Delta{Err: llm.NewProviderError(llm.KindOf(ctxErr(ctx, err)), endpoint, err)})
		return
	}
	// Stream ended without a done frame.
	emit(llm.Delta{Err: llm.NewProviderError(llm.KindMalformed, endpoint, errors.New("stream ended without done frame"))})
}

// TestConnection probes GET /api/tags, the lightest authenticated call.
func (g *Generator) TestConnection(ctx context.Context, ep llm.Endpoint) error {
	url := llmhttp.BaseURL(ep.URL) + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return llm.NewProviderError(llm.KindBadRequest, ep.URL, err)
	}
	if ep.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Credential)
	}

	resp, err := llmhttp.Client(ep.VerifyTLS).Do(req)
	if err != nil {
		return llm.NewProviderError(llm.KindOf(err), ep.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return llm.NewProviderError(llm.KindFromStatus(resp.StatusCode), ep.URL,
			fmt.Errorf("status %d", resp.StatusCode))
	}
	slog.Debug("ollama connection ok", "endpoint", ep.URL)
	return nil
}

// ctxErr prefers the context's error when the context has ended, so
// deadline expiry mid-read classifies as a timeout.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
