package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/flowcraft/enginecore/internal/model"
	"github.com/flowcraft/enginecore/internal/node/runtime"
	"github.com/flowcraft/enginecore/internal/platform/resilience"
	"github.com/flowcraft/enginecore/pkg/expression"
)

// Runner executes a single node to completion, including its retry loop. It
// is the one place parameter resolution, executor dispatch, and retry/backoff
// are wired together; the Workflow Executor calls it once per ready node and
// never touches the registry or the expression parser directly.
//
// Each node type gets its own circuit breaker from breakers, keyed by
// node.Type: a node type that keeps failing across many executions trips
// its breaker and short-circuits future attempts with resilience.ErrCircuitOpen
// instead of running the executor again.
type Runner struct {
	parser      *expression.Parser
	breakers    *resilience.CircuitBreakerRegistry
	credentials CredentialProvider
	clock       func() time.Time
}

// NewRunner builds a Runner around the given expression parser. clock is
// overridable for deterministic tests; nil uses time.Now. Nodes that set a
// Credential reference resolve it through NoopCredentialProvider unless
// WithCredentialProvider is used.
func NewRunner(parser *expression.Parser) *Runner {
	return &Runner{
		parser:      parser,
		breakers:    resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig("node")),
		credentials: NoopCredentialProvider{},
		clock:       time.Now,
	}
}

// WithCredentialProvider sets the provider used to resolve node.Credential
// references before dispatching to a node executor.
func (r *Runner) WithCredentialProvider(provider CredentialProvider) *Runner {
	r.credentials = provider
	return r
}

// Outcome is what the Workflow Executor needs back from a single node run.
type Outcome struct {
	NodeID     string
	Output     map[string]interface{}
	Err        error
	Retries    int
	DurationMs int64
}

// Run resolves the node's parameters against ctx, looks up its executor in
// the registry, and executes it with retry according to node.Retry. It
// returns once the node either succeeds, exhausts its retries, or ctx is
// canceled.
func (r *Runner) Run(ctx context.Context, node *model.Node, record *model.NodeExecutionRecord, execCtx *model.ExecutionContext) Outcome {
	started := r.now()
	outcome := Outcome{NodeID: node.ID}

	if node.Disabled {
		outcome.Output = map[string]interface{}{}
		return outcome
	}

	executor, err := runtime.Get(node.Type)
	if err != nil {
		outcome.Err = &UnknownNodeTypeError{NodeType: node.Type}
		return outcome
	}

	exprCtx := expression.NewContext()
	for id, data := range execCtx.Data {
		exprCtx.SetNodeData(id, data)
	}

	retry := node.Retry
	maxAttempts := 1
	if retry.Enabled && retry.MaxRetries > 0 {
		maxAttempts = retry.MaxRetries + 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			outcome.Err = &CanceledError{NodeID: node.ID}
			outcome.DurationMs = r.since(started)
			return outcome
		default:
		}

		params, perr := r.parser.EvaluateParameters(node.Parameters, exprCtx)
		if perr != nil {
			lastErr = &ExpressionEvaluationError{NodeID: node.ID, Cause: perr}
		} else {
			output, execErr := r.execute(ctx, node, executor, params, execCtx)
			if execErr == nil {
				outcome.Output = output
				outcome.Retries = attempt - 1
				outcome.DurationMs = r.since(started)
				return outcome
			}
			lastErr = r.classify(node.ID, execErr)
		}

		if !isRetryableNodeError(lastErr) {
			break
		}
		if attempt < maxAttempts {
			record.IncrementRetry()
			delay := backoffDelay(attempt, retry.RetryDelayMs, retry.ExponentialBackoff)
			select {
			case <-ctx.Done():
				lastErr = &CanceledError{NodeID: node.ID}
				attempt = maxAttempts
			case <-time.After(delay):
			}
		}
	}

	outcome.Err = lastErr
	outcome.Retries = record.RetryCount()
	outcome.DurationMs = r.since(started)
	return outcome
}

func (r *Runner) execute(ctx context.Context, node *model.Node, executor runtime.NodeExecutor, params map[string]interface{}, execCtx *model.ExecutionContext) (map[string]interface{}, error) {
	// Every prior node's output (plus the trigger payload) is handed to the
	// executor, not just what this node's connections declare: node
	// implementations that need to evaluate a nested expression themselves
	// (arrays of field mappings, for instance) resolve it against the same
	// data the top-level parameter resolution already saw.
	inputData := make(map[string]interface{}, len(execCtx.Data))
	for id, data := range execCtx.Data {
		inputData[id] = data
	}

	runtimeCtx := &runtime.ExecutionContext{
		ExecutionID: execCtx.ExecutionID,
		WorkflowID:  execCtx.WorkflowID,
		Variables:   map[string]interface{}{},
		Mode:        "manual",
	}

	credentials := map[string]interface{}{}
	if node.Credential != "" {
		resolved, err := r.credentials.Resolve(ctx, node.Credential)
		if err != nil {
			return nil, fmt.Errorf("resolve credential %q: %w", node.Credential, err)
		}
		credentials = resolved
	}

	breaker := r.breakers.Get(node.Type)
	var output *runtime.ExecutionOutput
	err := breaker.Execute(ctx, func() error {
		out, execErr := executor.Execute(ctx, &runtime.ExecutionInput{
			NodeID:      node.ID,
			NodeConfig:  params,
			InputData:   inputData,
			Credentials: credentials,
			Context:     runtimeCtx,
		})
		if execErr != nil {
			return execErr
		}
		if out.Error != nil {
			return out.Error
		}
		output = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output.Data, nil
}

func (r *Runner) classify(nodeID string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr, ok := err.(interface{ Timeout() bool }); ok && ctxErr.Timeout() {
		return &TimeoutError{NodeID: nodeID}
	}
	return &NodeExecutionError{NodeID: nodeID, Cause: err}
}

func (r *Runner) now() time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return time.Now()
}

func (r *Runner) since(t time.Time) int64 {
	return r.now().Sub(t).Milliseconds()
}

// backoffDelay mirrors calculateDelay's exponential-plus-jitter shape, scaled
// from a per-node base delay and capped at 30s before up to 10% jitter is
// added.
func backoffDelay(attempt int, baseMs int, exponential bool) time.Duration {
	if baseMs <= 0 {
		baseMs = 1000
	}
	base := time.Duration(baseMs) * time.Millisecond
	delay := base
	if exponential {
		delay = time.Duration(float64(base) * math.Pow(2.0, float64(attempt-1)))
	}
	const maxDelay = 30 * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// snapshot renders a value to a compact JSON string for NodeExecutionRecord's
// input/output snapshots, falling back to fmt.Sprintf if it cannot marshal.
func snapshot(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
