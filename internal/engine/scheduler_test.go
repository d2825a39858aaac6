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

func TestSchedulerTriggerNowRunsTheLookedUpWorkflow(t *testing.T) {
	registerEcho(t, "echo-sched", false)
	defer runtime.Unregister("echo-sched")

	def := &model.WorkflowDefinition{
		ID:    "wf-sched",
		Nodes: []model.Node{{ID: "A", Type: "echo-sched"}},
	}

	exec := NewExecutor(expression.NewParser(), nil)
	pool := NewWorkerPool(exec, &PoolConfig{MaxWorkers: 1, QueueSize: 4, TaskTimeout: 5 * time.Second})
	pool.Start(1)
	defer pool.Stop()

	lookup := func(ctx context.Context, workflowID string) (*model.WorkflowDefinition, error) {
		require.Equal(t, def.ID, workflowID)
		return def, nil
	}

	sched := NewScheduler(pool, lookup, NewInMemoryScheduleRepository(), nil)
	entry := &ScheduleEntry{WorkflowID: def.ID, CronExpr: "*/5 * * * * *"}
	require.NoError(t, sched.CreateSchedule(context.Background(), entry))

	executionID, err := sched.TriggerNow(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, executionID)
}

func TestSchedulerTriggerNowWithoutLookupFails(t *testing.T) {
	sched := NewScheduler(nil, nil, NewInMemoryScheduleRepository(), nil)
	entry := &ScheduleEntry{WorkflowID: "wf-x", CronExpr: "0 0 * * * *"}
	require.NoError(t, sched.CreateSchedule(context.Background(), entry))

	_, err := sched.TriggerNow(context.Background(), entry.ID)
	assert.Error(t, err, "expected an error when no pool or lookup is configured")
}

func TestSchedulerRejectsInvalidCronExpression(t *testing.T) {
	sched := NewScheduler(nil, nil, nil, nil)
	entry := &ScheduleEntry{WorkflowID: "wf-y", CronExpr: "not a cron expression"}
	assert.Error(t, sched.CreateSchedule(context.Background(), entry))
}

func TestSchedulerEnableDisableLifecycle(t *testing.T) {
	sched := NewScheduler(nil, nil, nil, nil)
	entry := &ScheduleEntry{WorkflowID: "wf-z", CronExpr: "0 0 0 * * *", Enabled: true}
	require.NoError(t, sched.CreateSchedule(context.Background(), entry))

	assert.Len(t, sched.ListByWorkflow("wf-z"), 1)

	require.NoError(t, sched.DisableSchedule(context.Background(), entry.ID))
	_, err := sched.GetSchedule(entry.ID)
	assert.Error(t, err, "expected disabled schedule to be removed from the active set")
}
