// Package model defines the domain types that flow through the Co-Lab pipeline.
package model

// Request is one inbound user prompt. Immutable for the lifetime of a
// single pipeline run.
type Request struct {
	SessionID   string
	Prompt      string
	RequesterID string
}

// SubTask is a single self-contained unit of work produced by decomposition.
type SubTask struct {
	ID          string
	Instruction string
}

// ResultOutcome classifies the result of a single sub-AI invocation.
type ResultOutcome string

const (
	ResultSuccess ResultOutcome = "success"
	ResultFailure ResultOutcome = "failure"
)

// SubAIResult is the response from one invoked sub-AI, successful or not.
type SubAIResult struct {
	SubTaskID string
	SourceID  string
	Content   string
	Outcome   ResultOutcome
	Error     string
}

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeSuccess means a synthesized answer was produced.
	OutcomeSuccess Outcome = "success"

	// OutcomeEmptySuccess means decomposition found nothing actionable.
	// This is not an error; no charge is applied.
	OutcomeEmptySuccess Outcome = "success_empty"

	// OutcomeChargeFailed means the requester could not be charged.
	// No sub-AI was invoked.
	OutcomeChargeFailed Outcome = "error_charge_failed"

	// OutcomeError covers every other terminal failure.
	OutcomeError Outcome = "error"
)

// FinalResult is the terminal artifact of one pipeline run. The pipeline
// always produces one; it never raises past its own boundary.
type FinalResult struct {
	SessionID string
	Prompt    string
	Answer    string
	Outcome   Outcome
	Error     string
}
