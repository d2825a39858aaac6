package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningExecution() *ExecutionRecord {
	return NewExecutionRecord("exec-1", "wf-1", "manual", map[string]interface{}{"k": "v"}, EnvironmentTesting)
}

func TestNewExecutionRecordStartsRunning(t *testing.T) {
	e := newRunningExecution()

	assert.Equal(t, StatusRunning, e.Status())
	assert.Nil(t, e.FinishedAt())
	assert.Equal(t, 1, e.Version())
	assert.Empty(t, e.Path())
}

func TestExecutionRecordCompleteTransitionsToSuccess(t *testing.T) {
	e := newRunningExecution()

	require.NoError(t, e.Complete())
	assert.Equal(t, StatusSuccess, e.Status())
	assert.NotNil(t, e.FinishedAt())
	assert.True(t, e.Status().IsTerminal())
}

func TestExecutionRecordCompleteFromNonRunningFails(t *testing.T) {
	e := newRunningExecution()
	require.NoError(t, e.Complete())

	err := e.Complete()
	assert.Error(t, err)
	assert.Equal(t, StatusSuccess, e.Status())
}

func TestExecutionRecordFailRecordsMessageAndIncrementsFailures(t *testing.T) {
	e := newRunningExecution()

	require.NoError(t, e.Fail("node boom exploded"))
	assert.Equal(t, StatusError, e.Status())
	assert.Equal(t, "node boom exploded", e.ErrorMessage())
	assert.Equal(t, 1, e.NodesFailed())
}

func TestExecutionRecordCancelFromRunningSucceeds(t *testing.T) {
	e := newRunningExecution()

	require.NoError(t, e.Cancel())
	assert.Equal(t, StatusCanceled, e.Status())
}

func TestExecutionRecordCancelFromTerminalStateFails(t *testing.T) {
	e := newRunningExecution()
	require.NoError(t, e.Cancel())

	err := e.Cancel()
	assert.Error(t, err)
}

func TestExecutionRecordAppendPathTracksNodesExecuted(t *testing.T) {
	e := newRunningExecution()

	e.AppendPath("start")
	e.AppendPath("transform")

	assert.Equal(t, []string{"start", "transform"}, e.Path())
	assert.Equal(t, 2, e.NodesExecuted())
	assert.Equal(t, 3, e.Version())
}

func TestExecutionRecordAppendPathIgnoredAfterTerminal(t *testing.T) {
	e := newRunningExecution()
	require.NoError(t, e.Complete())
	versionAtCompletion := e.Version()

	e.AppendPath("late-node")

	assert.Empty(t, e.Path())
	assert.Equal(t, versionAtCompletion, e.Version())
}

func TestExecutionRecordMarkSkippedIncrementsCounterAndVersion(t *testing.T) {
	e := newRunningExecution()
	versionBefore := e.Version()

	e.MarkSkipped()
	e.MarkSkipped()

	assert.Equal(t, 2, e.NodesSkipped())
	assert.Equal(t, versionBefore+2, e.Version())
}

func TestExecutionRecordPathIsDefensivelyCopied(t *testing.T) {
	e := newRunningExecution()
	e.AppendPath("a")

	path := e.Path()
	path[0] = "mutated"

	assert.Equal(t, "a", e.Path()[0])
}

func TestReconstructExecutionRecordRoundTripsFields(t *testing.T) {
	e := ReconstructExecutionRecord(
		"exec-2", "wf-2", StatusSuccess, time.Now(), nil,
		"webhook", map[string]interface{}{"a": 1}, EnvironmentProduction,
		[]string{"n1", "n2"}, 2, 0, 0, "", 120, 4,
	)

	assert.Equal(t, "exec-2", e.ID())
	assert.Equal(t, "wf-2", e.WorkflowID())
	assert.Equal(t, StatusSuccess, e.Status())
	assert.Equal(t, EnvironmentProduction, e.Environment())
	assert.Equal(t, []string{"n1", "n2"}, e.Path())
	assert.Equal(t, 4, e.Version())
}

func TestNewNodeExecutionRecordStartsRunning(t *testing.T) {
	n := NewNodeExecutionRecord("node-exec-1", "exec-1", "start", "Start", 0)

	assert.Equal(t, StatusRunning, n.Status())
	assert.Equal(t, 0, n.RetryCount())
	assert.Nil(t, n.FinishedAt())
}

func TestNodeExecutionRecordSucceedSnapshotsData(t *testing.T) {
	n := NewNodeExecutionRecord("node-exec-1", "exec-1", "start", "Start", 0)

	n.Succeed(`{"in":1}`, `{"out":2}`)

	assert.Equal(t, StatusSuccess, n.Status())
	assert.Equal(t, `{"in":1}`, n.InputSnapshot())
	assert.Equal(t, `{"out":2}`, n.OutputSnapshot())
	assert.NotNil(t, n.FinishedAt())
}

func TestNodeExecutionRecordFailRecordsMessage(t *testing.T) {
	n := NewNodeExecutionRecord("node-exec-1", "exec-1", "start", "Start", 0)

	n.Fail(`{"in":1}`, "boom")

	assert.Equal(t, StatusError, n.Status())
	assert.Equal(t, "boom", n.ErrorMessage())
}

func TestNodeExecutionRecordCancel(t *testing.T) {
	n := NewNodeExecutionRecord("node-exec-1", "exec-1", "start", "Start", 0)

	n.Cancel()

	assert.Equal(t, StatusCanceled, n.Status())
}

func TestNodeExecutionRecordIncrementRetry(t *testing.T) {
	n := NewNodeExecutionRecord("node-exec-1", "exec-1", "start", "Start", 0)

	n.IncrementRetry()
	n.IncrementRetry()

	assert.Equal(t, 2, n.RetryCount())
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusSuccess, StatusError, StatusCanceled, StatusPartialSuccess}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "expected %s to be terminal", s)
	}

	nonTerminal := []Status{StatusWaiting, StatusRunning}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "expected %s to not be terminal", s)
	}
}

func TestExecutionContextSetAndGet(t *testing.T) {
	ctx := NewExecutionContext("wf-1", "exec-1", map[string]interface{}{"payload": "x"})

	trigger, ok := ctx.Get("trigger")
	require.True(t, ok)
	assert.Equal(t, "x", trigger["payload"])

	ctx.Set("start", map[string]interface{}{"result": "done"})
	start, ok := ctx.Get("start")
	require.True(t, ok)
	assert.Equal(t, "done", start["result"])

	_, ok = ctx.Get("never-ran")
	assert.False(t, ok)
}
