package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/enginecore/internal/model"
	"github.com/flowcraft/enginecore/internal/node/runtime"
	"github.com/flowcraft/enginecore/pkg/expression"
)

type flakyExecutor struct {
	nodeType   string
	failTimes  int
	calls      int
}

func (f *flakyExecutor) Execute(ctx context.Context, input *runtime.ExecutionInput) (*runtime.ExecutionOutput, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, errors.New("transient failure")
	}
	return &runtime.ExecutionOutput{Data: map[string]interface{}{"ok": true}}, nil
}

func (f *flakyExecutor) Validate(config map[string]interface{}) error { return nil }
func (f *flakyExecutor) GetType() string                              { return f.nodeType }
func (f *flakyExecutor) GetMetadata() runtime.NodeMetadata {
	return runtime.NodeMetadata{Type: f.nodeType}
}

func TestRunnerRetriesUntilSuccess(t *testing.T) {
	runtime.Clear()
	defer runtime.Clear()
	executor := &flakyExecutor{nodeType: "flaky-test-node", failTimes: 2}
	require.NoError(t, runtime.Register(executor))

	node := &model.Node{
		ID:   "n1",
		Type: "flaky-test-node",
		Retry: model.RetrySettings{
			Enabled:      true,
			MaxRetries:   3,
			RetryDelayMs: 1,
		},
	}
	record := model.NewNodeExecutionRecord("ne1", "exec1", "n1", "n1", 0)
	execCtx := model.NewExecutionContext("wf1", "exec1", nil)

	r := NewRunner(expression.NewParser())
	outcome := r.Run(context.Background(), node, record, execCtx)

	require.NoError(t, outcome.Err)
	assert.Equal(t, 2, outcome.Retries)
	assert.Equal(t, true, outcome.Output["ok"])
}

func TestRunnerExhaustsRetries(t *testing.T) {
	runtime.Clear()
	defer runtime.Clear()
	executor := &flakyExecutor{nodeType: "always-fails-test-node", failTimes: 100}
	require.NoError(t, runtime.Register(executor))

	node := &model.Node{
		ID:   "n2",
		Type: "always-fails-test-node",
		Retry: model.RetrySettings{
			Enabled:      true,
			MaxRetries:   2,
			RetryDelayMs: 1,
		},
	}
	record := model.NewNodeExecutionRecord("ne2", "exec1", "n2", "n2", 0)
	execCtx := model.NewExecutionContext("wf1", "exec1", nil)

	r := NewRunner(expression.NewParser())
	outcome := r.Run(context.Background(), node, record, execCtx)

	require.Error(t, outcome.Err, "expected a failure after exhausting retries")
	assert.IsType(t, &NodeExecutionError{}, outcome.Err)
	assert.Equal(t, 2, outcome.Retries)
}

func TestRunnerUnknownNodeType(t *testing.T) {
	runtime.Clear()
	defer runtime.Clear()

	node := &model.Node{ID: "n3", Type: "does-not-exist"}
	record := model.NewNodeExecutionRecord("ne3", "exec1", "n3", "n3", 0)
	execCtx := model.NewExecutionContext("wf1", "exec1", nil)

	r := NewRunner(expression.NewParser())
	outcome := r.Run(context.Background(), node, record, execCtx)

	assert.IsType(t, &UnknownNodeTypeError{}, outcome.Err)
}

func TestRunnerDisabledNodeIsNoOp(t *testing.T) {
	node := &model.Node{ID: "n4", Type: "whatever", Disabled: true}
	record := model.NewNodeExecutionRecord("ne4", "exec1", "n4", "n4", 0)
	execCtx := model.NewExecutionContext("wf1", "exec1", nil)

	r := NewRunner(expression.NewParser())
	outcome := r.Run(context.Background(), node, record, execCtx)

	assert.NoError(t, outcome.Err, "disabled node should not error")
}
