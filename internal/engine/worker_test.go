package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/enginecore/internal/model"
	"github.com/flowcraft/enginecore/internal/node/runtime"
	"github.com/flowcraft/enginecore/pkg/expression"
)

func TestWorkerPoolSubmitWorkflowRunsToCompletion(t *testing.T) {
	registerEcho(t, "echo-pool", false)
	defer runtime.Unregister("echo-pool")

	def := &model.WorkflowDefinition{
		ID:    "wf-pool",
		Nodes: []model.Node{{ID: "A", Type: "echo-pool", Parameters: map[string]interface{}{"value": 1.0}}},
	}

	exec := NewExecutor(expression.NewParser(), nil)
	pool := NewWorkerPool(exec, &PoolConfig{MaxWorkers: 2, QueueSize: 10, TaskTimeout: 5 * time.Second})
	pool.Start(2)
	defer pool.Stop()

	executionID, err := pool.SubmitWorkflow(def, model.ExecutionOptions{TriggerMode: "manual"})
	require.NoError(t, err)
	assert.NotEmpty(t, executionID)

	deadline := time.After(2 * time.Second)
	for {
		metrics := pool.GetMetrics()
		if metrics.CompletedTasks >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the task to complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorkerPoolQueueFullReturnsError(t *testing.T) {
	exec := NewExecutor(expression.NewParser(), nil)
	pool := NewWorkerPool(exec, &PoolConfig{MaxWorkers: 0, QueueSize: 1})

	def := &model.WorkflowDefinition{ID: "wf-full"}
	_, err := pool.SubmitWorkflow(def, model.ExecutionOptions{})
	require.NoError(t, err, "unexpected error on first submit")

	_, err = pool.SubmitWorkflow(def, model.ExecutionOptions{})
	assert.Error(t, err, "expected the second submit to report a full queue")
}

func TestWorkerPoolScaleUpRespectsMaxWorkers(t *testing.T) {
	exec := NewExecutor(expression.NewParser(), nil)
	pool := NewWorkerPool(exec, &PoolConfig{MaxWorkers: 5, QueueSize: 10})
	pool.Start(1)
	defer pool.Stop()

	pool.ScaleUp(3)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, pool.GetWorkers(), 4, "expected 4 workers after scaling up")

	pool.ScaleUp(10)
	assert.LessOrEqual(t, len(pool.GetWorkers()), 5, "expected scale up to respect MaxWorkers=5")
}

func TestWorkerPoolExecuteNodeTaskNotImplemented(t *testing.T) {
	exec := NewExecutor(expression.NewParser(), nil)
	pool := NewWorkerPool(exec, nil)

	_, err := pool.executeNodeTask(context.Background(), &Task{})
	assert.Error(t, err, "expected node task execution to report not implemented")
}
