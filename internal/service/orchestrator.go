// Package service implements the request pipeline: decompose, route, price,
// charge, invoke, synthesize. The pipeline owns its failures; Process always
// returns a terminal FinalResult and never an error.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Ryno2390/Co-Lab/internal/ledger"
	"github.com/Ryno2390/Co-Lab/internal/model"
	"github.com/Ryno2390/Co-Lab/internal/pricing"
	"github.com/Ryno2390/Co-Lab/internal/router"
	"github.com/Ryno2390/Co-Lab/internal/subai"
)

// EmptyDecompositionAnswer is returned when a prompt yields no actionable
// sub-tasks. No charge is applied in that case.
const EmptyDecompositionAnswer = "Your request did not yield any actionable sub-tasks. " +
	"Please rephrase it as a concrete question or task."

// DefaultInvokeConcurrency bounds parallel sub-AI invocations per request.
const DefaultInvokeConcurrency = 4

// TaskDecomposer breaks a prompt into sub-tasks.
type TaskDecomposer interface {
	Decompose(ctx context.Context, prompt string) ([]model.SubTask, error)
}

// TaskRouter assigns each sub-task an executor.
type TaskRouter interface {
	Route(ctx context.Context, subTasks []model.SubTask) ([]router.Decision, error)
}

// ResultSynthesizer combines successful sub-task results into an answer.
type ResultSynthesizer interface {
	Synthesize(ctx context.Context, prompt string, results []TaskResult) (string, error)
}

// OrchestratorConfig holds the pipeline's dependencies.
type OrchestratorConfig struct {
	Decomposer  TaskDecomposer
	Router      TaskRouter
	Tariff      pricing.Tariff
	Ledger      ledger.Ledger
	Invoker     subai.Invoker
	Synthesizer ResultSynthesizer

	// Concurrency bounds parallel invocations (default 4).
	Concurrency int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs the full pipeline for one request at a time.
type Orchestrator struct {
	decomposer  TaskDecomposer
	router      TaskRouter
	tariff      pricing.Tariff
	ledger      ledger.Ledger
	invoker     subai.Invoker
	synthesizer ResultSynthesizer
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator creates the pipeline.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultInvokeConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		decomposer:  cfg.Decomposer,
		router:      cfg.Router,
		tariff:      cfg.Tariff,
		ledger:      cfg.Ledger,
		invoker:     cfg.Invoker,
		synthesizer: cfg.Synthesizer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Process runs one request through the pipeline. It always returns a
// terminal result; every failure mode maps to an outcome rather than an
// error. The charge is applied before any sub-AI is invoked and is not
// refunded if invocations fail afterwards.
func (o *Orchestrator) Process(ctx context.Context, req model.Request) model.FinalResult {
	logger := o.logger.With("session_id", req.SessionID, "requester_id", req.RequesterID)

	if req.RequesterID == "" {
		logger.Warn("request rejected: missing requester id")
		return o.terminal(req, model.OutcomeError, "", "missing requester id")
	}

	subTasks, err := o.decomposer.Decompose(ctx, req.Prompt)
	if err != nil {
		logger.Error("decomposition failed", "error", err)
		return o.terminal(req, model.OutcomeError, "", "decomposition failed: "+err.Error())
	}
	if len(subTasks) == 0 {
		logger.Info("decomposition produced no sub-tasks")
		return o.terminal(req, model.OutcomeEmptySuccess, EmptyDecompositionAnswer, "")
	}

	decisions, err := o.router.Route(ctx, subTasks)
	if err != nil {
		logger.Error("routing failed", "error", err)
		return o.terminal(req, model.OutcomeError, "", "routing failed: "+err.Error())
	}

	price := o.tariff.Price(decisions)
	if err := o.charge(ctx, req.RequesterID, price); err != nil {
		logger.Warn("charge failed", "price", price.String(), "error", err)
		return o.terminal(req, model.OutcomeChargeFailed, "", "charge failed: "+err.Error())
	}
	logger.Info("requester charged", "price", price.String(), "task_count", len(decisions))

	results := o.invokeAll(ctx, decisions)

	successes := make([]TaskResult, 0, len(results))
	for i, r := range results {
		if r.Outcome == model.ResultSuccess {
			successes = append(successes, TaskResult{
				Instruction: decisions[i].SubTask.Instruction,
				Content:     r.Content,
			})
		} else {
			logger.Warn("sub-AI invocation failed",
				"sub_task_id", r.SubTaskID, "source_id", r.SourceID, "error", r.Error)
		}
	}

	if len(successes) == 0 {
		logger.Error("all sub-AI invocations failed after successful charge")
		return o.terminal(req, model.OutcomeError, "", "all sub-AI invocations failed after successful charge")
	}

	answer, err := o.synthesizer.Synthesize(ctx, req.Prompt, successes)
	if err != nil {
		logger.Error("synthesis failed", "error", err)
		return o.terminal(req, model.OutcomeError, "", "synthesis failed: "+err.Error())
	}
	if answer == "" {
		logger.Error("synthesis returned an empty answer")
		return o.terminal(req, model.OutcomeError, "", "synthesis returned an empty answer")
	}

	logger.Info("request completed", "succeeded", len(successes), "failed", len(results)-len(successes))
	return o.terminal(req, model.OutcomeSuccess, answer, "")
}

func (o *Orchestrator) charge(ctx context.Context, requesterID string, price decimal.Decimal) error {
	if price.IsZero() {
		return nil
	}
	return o.ledger.Charge(ctx, requesterID, price)
}

// invokeAll fans out the invocations with bounded concurrency. Results come
// back in decision order; the invoker captures per-task failures in the
// result itself.
func (o *Orchestrator) invokeAll(ctx context.Context, decisions []router.Decision) []model.SubAIResult {
	results := make([]model.SubAIResult, len(decisions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)

	for i, decision := range decisions {
		wg.Add(1)
		go func(i int, decision router.Decision) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = o.invoker.Invoke(ctx, decision)
		}(i, decision)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) terminal(req model.Request, outcome model.Outcome, answer, errMsg string) model.FinalResult {
	return model.FinalResult{
		SessionID: req.SessionID,
		Prompt:    req.Prompt,
		Answer:    answer,
		Outcome:   outcome,
		Error:     errMsg,
	}
}
