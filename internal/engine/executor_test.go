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

type echoExecutor struct {
	nodeType string
	fail     bool
}

func (e *echoExecutor) Execute(ctx context.Context, input *runtime.ExecutionInput) (*runtime.ExecutionOutput, error) {
	if e.fail {
		return nil, errors.New("boom")
	}
	out := map[string]interface{}{}
	for k, v := range input.NodeConfig {
		out[k] = v
	}
	return &runtime.ExecutionOutput{Data: out}, nil
}

func (e *echoExecutor) Validate(config map[string]interface{}) error { return nil }
func (e *echoExecutor) GetType() string                              { return e.nodeType }
func (e *echoExecutor) GetMetadata() runtime.NodeMetadata {
	return runtime.NodeMetadata{Type: e.nodeType}
}

func registerEcho(t *testing.T, nodeType string, fail bool) {
	t.Helper()
	runtime.Unregister(nodeType)
	require.NoError(t, runtime.Register(&echoExecutor{nodeType: nodeType, fail: fail}))
}

func TestExecutorRunsChainAndThreadsExpressions(t *testing.T) {
	registerEcho(t, "echo-a", false)
	registerEcho(t, "echo-b", false)
	defer func() {
		runtime.Unregister("echo-a")
		runtime.Unregister("echo-b")
	}()

	def := &model.WorkflowDefinition{
		ID: "wf1",
		Nodes: []model.Node{
			{ID: "A", Type: "echo-a", Parameters: map[string]interface{}{"value": 1.0}},
			{ID: "B", Type: "echo-b", Parameters: map[string]interface{}{"value": "={{ A.value + 1 }}"}},
		},
		Connections: []model.Connection{{SourceNodeID: "A", TargetNodeID: "B"}},
	}

	recorder := NewRecorder(0)
	exec := NewExecutor(expression.NewParser(), recorder)

	result, err := exec.Execute(context.Background(), def, "exec-chain", model.ExecutionOptions{TriggerMode: "manual"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, result.Record.Status())

	bNode := result.Nodes["B"]
	assert.Equal(t, model.StatusSuccess, bNode.Status())
	assert.Equal(t, 2.0, result.Output["B"].(map[string]interface{})["value"])

	events := recorder.ForExecution("exec-chain")
	require.NotEmpty(t, events, "expected lifecycle events to be published")
	assert.Equal(t, EventExecutionStarted, events[0].Type)
	assert.Equal(t, EventExecutionCompleted, events[len(events)-1].Type)
}

func TestExecutorStopsOnFailureAndSkipsDownstream(t *testing.T) {
	registerEcho(t, "echo-fail", true)
	registerEcho(t, "echo-c", false)
	defer func() {
		runtime.Unregister("echo-fail")
		runtime.Unregister("echo-c")
	}()

	def := &model.WorkflowDefinition{
		ID: "wf2",
		Nodes: []model.Node{
			{ID: "A", Type: "echo-fail"},
			{ID: "B", Type: "echo-c"},
		},
		Connections: []model.Connection{{SourceNodeID: "A", TargetNodeID: "B"}},
	}

	exec := NewExecutor(expression.NewParser(), nil)
	result, err := exec.Execute(context.Background(), def, "exec-fail", model.ExecutionOptions{})

	require.Error(t, err, "expected the execution to report the node failure")
	assert.Equal(t, model.StatusError, result.Record.Status())
	assert.Equal(t, 1, result.Record.NodesSkipped())
	_, ran := result.Nodes["B"]
	assert.False(t, ran, "downstream node must not run after an upstream failure")
}

func TestExecutorDisabledNodeIsTransparent(t *testing.T) {
	registerEcho(t, "echo-d", false)
	defer runtime.Unregister("echo-d")

	def := &model.WorkflowDefinition{
		ID: "wf3",
		Nodes: []model.Node{
			{ID: "A", Type: "echo-d"},
			{ID: "B", Type: "echo-d", Disabled: true},
			{ID: "C", Type: "echo-d"},
		},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "B"},
			{SourceNodeID: "B", TargetNodeID: "C"},
		},
	}

	hub := NewRecorder(0)
	exec := NewExecutor(expression.NewParser(), hub)
	result, err := exec.Execute(context.Background(), def, "exec-disabled", model.ExecutionOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, result.Record.Status())
	assert.Equal(t, model.StatusSuccess, result.Nodes["A"].Status())
	assert.Equal(t, model.StatusSuccess, result.Nodes["C"].Status())

	_, disabledHasRecord := result.Nodes["B"]
	assert.False(t, disabledHasRecord, "a disabled node must produce no NodeExecutionRecord")
	assert.Equal(t, []string{"A", "C"}, result.Record.Path(), "a disabled node must not appear in the execution path")

	for _, event := range hub.ForExecution("exec-disabled") {
		if event.Type == EventNodeExecutionStarted || event.Type == EventNodeExecutionCompleted {
			assert.NotEqual(t, "B", event.NodeID, "a disabled node must not publish node lifecycle events")
		}
	}

	_, bInOutput := result.Output["B"]
	assert.False(t, bInOutput, "a disabled node's output must not reach its dependents")
}

func TestExecutorParallelBranchesBothRun(t *testing.T) {
	registerEcho(t, "echo-e", false)
	defer runtime.Unregister("echo-e")

	def := &model.WorkflowDefinition{
		ID: "wf4",
		Nodes: []model.Node{
			{ID: "A", Type: "echo-e"},
			{ID: "B", Type: "echo-e"},
			{ID: "C", Type: "echo-e"},
		},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "B"},
			{SourceNodeID: "A", TargetNodeID: "C"},
		},
		Settings: model.WorkflowSettings{ExecutionMode: model.ExecutionModeParallel},
	}

	exec := NewExecutor(expression.NewParser(), nil)
	result, err := exec.Execute(context.Background(), def, "exec-parallel", model.ExecutionOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 3)
}

func TestExecutorInvalidGraphFailsFast(t *testing.T) {
	def := &model.WorkflowDefinition{
		ID:    "wf5",
		Nodes: []model.Node{{ID: "A", Type: "echo-g"}, {ID: "A", Type: "echo-g"}},
	}

	exec := NewExecutor(expression.NewParser(), nil)
	_, err := exec.Execute(context.Background(), def, "exec-invalid", model.ExecutionOptions{})
	require.Error(t, err)
	assert.IsType(t, &InvalidGraphError{}, err)
}

func TestExecutorCanceledContextStopsBeforeNextWave(t *testing.T) {
	registerEcho(t, "echo-f", false)
	defer runtime.Unregister("echo-f")

	def := &model.WorkflowDefinition{
		ID: "wf6",
		Nodes: []model.Node{
			{ID: "A", Type: "echo-f"},
			{ID: "B", Type: "echo-f"},
		},
		Connections: []model.Connection{{SourceNodeID: "A", TargetNodeID: "B"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor(expression.NewParser(), nil)
	result, err := exec.Execute(ctx, def, "exec-canceled", model.ExecutionOptions{})
	require.Error(t, err, "expected cancellation to surface as an error")
	assert.Equal(t, model.StatusCanceled, result.Record.Status())
}
