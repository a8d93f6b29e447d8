package router

import (
	"context"
	"strings"
	"time"

	"github.com/Ryno2390/Co-Lab/internal/llm"
)

// classifyTimeout keeps classification from delaying routing; the category
// is advisory only.
const classifyTimeout = 5 * time.Second

const classifySystemPrompt = `You are a text classifier. Classify the task instruction into exactly one of: math, code, reasoning, other. Respond with only the single category word.`

// LLMClassifier classifies instructions with a small LLM call.
type LLMClassifier struct {
	client llm.LLM
	model  string
}

// NewLLMClassifier creates a classifier backed by the given LLM client.
func NewLLMClassifier(client llm.LLM, model string) *LLMClassifier {
	return &LLMClassifier{client: client, model: model}
}

// Classify returns one of the fixed category names. Any unexpected model
// output is reported as-is; the router maps it to "other".
func (c *LLMClassifier) Classify(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	out, err := c.client.Generate(ctx, text, llm.GenerateOptions{
		Model:        c.model,
		SystemPrompt: classifySystemPrompt,
		Temperature:  0.0,
		MaxTokens:    4,
	})
	if err != nil {
		return "", err
	}

	return strings.ToLower(strings.TrimSpace(out)), nil
}

var _ Classifier = (*LLMClassifier)(nil)
