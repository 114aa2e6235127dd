// Package chatadapter adapts the shared ChatGPT client to chat.ChatLLM,
// pumping chatgpt.Stream.Recv frames into a channel of token deltas.
package chatadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/llm/chatgpt"
	"github.com/raghavpatnecha/mnemosyne/pkg/metrics"
)

// ChatGPTLLM streams chat completions through an OpenAI-compatible API.
type ChatGPTLLM struct {
	client      *chatgpt.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewChatGPTLLM constructs the adapter.
func NewChatGPTLLM(client *chatgpt.Client, model string, temperature float32, logger *slog.Logger) *ChatGPTLLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGPTLLM{client: client, model: model, temperature: temperature, logger: logger.With("component", "chatadapter.chatgpt")}
}

// Stream starts a streaming chat completion and pumps token deltas into the
// returned channel until the model signals completion or the stream fails.
func (l *ChatGPTLLM) Stream(ctx context.Context, messages []chat.LLMMessage) (<-chan chat.LLMChunk, error) {
	req := chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    make([]chatgpt.Message, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatgpt.Message{Role: m.Role, Content: m.Content})
	}

	stream, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan chat.LLMChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			chunk, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					l.logger.Error("chat stream recv failed", "error", err)
					out <- chat.LLMChunk{Err: err}
				}
				return
			}
			if usage := (metrics.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}); !usage.IsZero() {
				l.logger.Info("chat completion usage",
					"prompt_tokens", usage.PromptTokens,
					"completion_tokens", usage.CompletionTokens,
					"total_tokens", usage.TotalTokens,
				)
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case out <- chat.LLMChunk{Delta: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ chat.ChatLLM = (*ChatGPTLLM)(nil)
