// Package rerank implements retrieval.Reranker with an LLM-prompted
// cross-encoder-style scorer, reusing the shared chat client rather than
// standing up a dedicated scoring model.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/llm/chatgpt"
)

const rerankPrompt = "You score how relevant a passage is to a query on a scale from 0.0 to 1.0. Respond with only the number, nothing else."

// LLMReranker scores each candidate independently against the query and
// reorders by the returned score. Any failure anywhere in the batch causes
// the whole rerank to be abandoned — the caller degrades to the unreranked
// order rather than propagate a partial or zero-scored reorder.
type LLMReranker struct {
	client *chatgpt.Client
	model  string
	logger *slog.Logger
}

// NewLLMReranker constructs the reranker.
func NewLLMReranker(client *chatgpt.Client, model string, logger *slog.Logger) *LLMReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{client: client, model: model, logger: logger.With("component", "rerank.llm")}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate) ([]retrieval.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	scored := make([]retrieval.Candidate, len(candidates))
	copy(scored, candidates)

	for i := range scored {
		score, err := r.score(ctx, query, scored[i].Content)
		if err != nil {
			return nil, fmt.Errorf("rerank candidate %d: %w", i, err)
		}
		scored[i].Score = score
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].DocumentID != scored[j].DocumentID {
			return scored[i].DocumentID.String() < scored[j].DocumentID.String()
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})
	return scored, nil
}

func (r *LLMReranker) score(ctx context.Context, query, passage string) (float64, error) {
	resp, err := r.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model: r.model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: rerankPrompt},
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\nPassage: %s", query, passage)},
		},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("reranker returned no choices")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("reranker returned non-numeric score %q: %w", raw, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

var _ retrieval.Reranker = (*LLMReranker)(nil)
