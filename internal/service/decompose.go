package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Ryno2390/Co-Lab/internal/llm"
	"github.com/Ryno2390/Co-Lab/internal/model"
)

const decomposeSystemPrompt = `You are a task decomposition engine. Break the user's request into
self-contained sub-tasks that can each be completed independently by a
specialist. Respond with a single JSON object of the form
{"tasks": ["instruction", ...]}. If the request contains nothing
actionable, respond with {"tasks": []}.`

// Decomposer breaks a prompt into independent sub-tasks via the LLM.
type Decomposer struct {
	llm    llm.LLM
	model  string
	logger *slog.Logger
}

// NewDecomposer creates a decomposer using the given model.
func NewDecomposer(client llm.LLM, modelName string, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{llm: client, model: modelName, logger: logger}
}

type decomposeResponse struct {
	Tasks []string `json:"tasks"`
}

// Decompose returns the sub-tasks for a prompt, each with a fresh id.
// An empty list is a valid outcome, not an error.
func (d *Decomposer) Decompose(ctx context.Context, prompt string) ([]model.SubTask, error) {
	raw, err := d.llm.Generate(ctx, prompt, llm.GenerateOptions{
		Model:        d.model,
		SystemPrompt: decomposeSystemPrompt,
		Temperature:  0,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition generate: %w", err)
	}

	var resp decomposeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parsing decomposition response: %w", err)
	}

	tasks := make([]model.SubTask, 0, len(resp.Tasks))
	for _, instruction := range resp.Tasks {
		instruction = strings.TrimSpace(instruction)
		if instruction == "" {
			continue
		}
		tasks = append(tasks, model.SubTask{
			ID:          uuid.NewString(),
			Instruction: instruction,
		})
	}

	d.logger.Debug("prompt decomposed", "task_count", len(tasks))
	return tasks, nil
}
