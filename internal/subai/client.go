// Package subai invokes specialist and dynamic sub-AI services over HTTP.
package subai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ryno2390/Co-Lab/internal/model"
	"github.com/Ryno2390/Co-Lab/internal/router"
)

const (
	// DefaultFixedTimeout bounds a single fixed-specialist invocation.
	DefaultFixedTimeout = 60 * time.Second

	// DefaultDynamicTimeout allows longer for the generic base model.
	DefaultDynamicTimeout = 120 * time.Second
)

// Invoker is the contract the orchestrator depends on. An invocation never
// returns a Go error; failures are captured in the result so one sub-task
// cannot abort its siblings.
type Invoker interface {
	Invoke(ctx context.Context, decision router.Decision) model.SubAIResult
}

// Config holds the client's construction parameters.
type Config struct {
	// Endpoints maps fixed specialist ids to their invoke URLs.
	Endpoints map[string]string

	// DynamicEndpoint is the generic base-model invoke URL.
	DynamicEndpoint string

	// FixedTimeout and DynamicTimeout bound individual calls.
	FixedTimeout   time.Duration
	DynamicTimeout time.Duration

	// RatePerSecond caps outbound invocations across all sub-tasks;
	// zero disables limiting.
	RatePerSecond float64

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client invokes sub-AIs over HTTP.
type Client struct {
	endpoints       map[string]string
	dynamicEndpoint string
	fixedTimeout    time.Duration
	dynamicTimeout  time.Duration
	httpClient      *http.Client
	limiter         *rate.Limiter
	logger          *slog.Logger
}

// NewClient creates a sub-AI invocation client.
func NewClient(cfg Config) *Client {
	fixedTimeout := cfg.FixedTimeout
	if fixedTimeout <= 0 {
		fixedTimeout = DefaultFixedTimeout
	}
	dynamicTimeout := cfg.DynamicTimeout
	if dynamicTimeout <= 0 {
		dynamicTimeout = DefaultDynamicTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		endpoints:       cfg.Endpoints,
		dynamicEndpoint: cfg.DynamicEndpoint,
		fixedTimeout:    fixedTimeout,
		dynamicTimeout:  dynamicTimeout,
		httpClient:      httpClient,
		limiter:         limiter,
		logger:          logger,
	}
}

// invokeResponse is the JSON body every sub-AI returns.
type invokeResponse struct {
	Content string `json:"content"`
}

// Invoke calls the sub-AI selected by the decision. A transport error, a
// non-2xx status, or a timeout becomes a failure result for this sub-task
// only.
func (c *Client) Invoke(ctx context.Context, decision router.Decision) model.SubAIResult {
	task := decision.SubTask

	endpoint, sourceID, payload, timeout, err := c.target(decision)
	if err != nil {
		return failure(task.ID, sourceID, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failure(task.ID, sourceID, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(task.ID, sourceID, fmt.Errorf("marshaling payload: %w", err))
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(task.ID, sourceID, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("sub-AI invocation failed",
			"sub_task_id", task.ID,
			"source", sourceID,
			"error", err,
		)
		return failure(task.ID, sourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return failure(task.ID, sourceID,
			fmt.Errorf("sub-AI returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failure(task.ID, sourceID, fmt.Errorf("decoding response: %w", err))
	}

	return model.SubAIResult{
		SubTaskID: task.ID,
		SourceID:  sourceID,
		Content:   result.Content,
		Outcome:   model.ResultSuccess,
	}
}

// target resolves the endpoint, source id, payload, and timeout for a
// decision. Route kinds are a closed set, so the switch is exhaustive.
func (c *Client) target(decision router.Decision) (endpoint, sourceID string, payload map[string]string, timeout time.Duration, err error) {
	task := decision.SubTask

	switch decision.Kind {
	case router.KindFixed:
		sourceID = decision.TargetID
		endpoint = c.endpoints[decision.TargetID]
		if endpoint == "" {
			err = fmt.Errorf("no endpoint configured for specialist %q", decision.TargetID)
			return
		}
		payload = map[string]string{"instruction": task.Instruction}
		timeout = c.fixedTimeout
		return

	case router.KindDynamic:
		sourceID = "dynamic_instance_" + task.ID
		endpoint = c.dynamicEndpoint
		if endpoint == "" {
			err = fmt.Errorf("no dynamic base model endpoint configured")
			return
		}
		payload = map[string]string{
			"prompt": "Act as an expert and perform the following task: " + task.Instruction,
		}
		timeout = c.dynamicTimeout
		return

	default:
		err = fmt.Errorf("unknown route kind %d", decision.Kind)
		return
	}
}

func failure(taskID, sourceID string, err error) model.SubAIResult {
	if sourceID == "" {
		sourceID = "unknown"
	}
	return model.SubAIResult{
		SubTaskID: taskID,
		SourceID:  sourceID,
		Outcome:   model.ResultFailure,
		Error:     err.Error(),
	}
}

var _ Invoker = (*Client)(nil)
