package llmhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/catalpa-cl/espresso/internal/adapter/sse"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
)

// ChatMessage is one message of a chat/completions request body.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChunk mirrors one SSE data frame of a chat/completions stream.
// Both Azure-style backends emit this OpenAI wire format.
type ChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReadChatStream decodes a chat/completions SSE stream into deltas until
// the [DONE] sentinel, an in-band error frame, or a transport failure.
// It closes out when finished and always drains/closes the body.
func ReadChatStream(ctx context.Context, endpoint string, body io.ReadCloser, out chan<- llm.Delta) {
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

	var usage llm.Usage
	r := sse.NewReader(body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			// Stream ended without the sentinel.
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindMalformed, endpoint,
				errors.New("stream ended without [DONE]"))})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindOf(err), endpoint, err)})
			return
		}
		if ev.Data == "[DONE]" {
			emit(llm.Delta{Done: true, Usage: &usage})
			return
		}

		var c ChatChunk
		if err := json.Unmarshal([]byte(ev.Data), &c); err != nil {
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindMalformed, endpoint, err)})
			return
		}
		if c.Error != nil {
			emit(llm.Delta{Err: llm.NewProviderError(llm.KindServerError, endpoint,
				errors.New(c.Error.Message))})
			return
		}
		if c.Usage != nil {
			usage.SystemTokens = c.Usage.PromptTokens
			usage.CompletionTokens = c.Usage.CompletionTokens
		}
		if len(c.Choices) == 0 {
			continue
		}
		if content := c.Choices[0].Delta.Content; content != "" {
			if !emit(llm.Delta{Text: content}) {
				return
			}
		}
	}
}
