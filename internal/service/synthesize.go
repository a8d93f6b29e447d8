package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ryno2390/Co-Lab/internal/llm"
)

const synthesizeSystemPrompt = `You are a synthesis engine. You receive a user's original request and
the results of the sub-tasks it was broken into. Combine the results into
one coherent answer to the original request. Do not mention the sub-tasks
or the decomposition process.`

// TaskResult pairs a sub-task instruction with the content its executor
// produced. Only successful executions reach synthesis.
type TaskResult struct {
	Instruction string
	Content     string
}

// Synthesizer combines sub-task results into a final answer via the LLM.
type Synthesizer struct {
	llm    llm.LLM
	model  string
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer using the given model.
func NewSynthesizer(client llm.LLM, modelName string, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: client, model: modelName, logger: logger}
}

// Synthesize produces the final answer from the original prompt and the
// successful sub-task results.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, results []TaskResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request:\n%s\n\nSub-task results:\n", prompt)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. Task: %s\nResult: %s\n", i+1, r.Instruction, r.Content)
	}

	answer, err := s.llm.Generate(ctx, b.String(), llm.GenerateOptions{
		Model:        s.model,
		SystemPrompt: synthesizeSystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis generate: %w", err)
	}

	return strings.TrimSpace(answer), nil
}
