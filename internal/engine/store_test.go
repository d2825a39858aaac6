package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/enginecore/internal/model"
)

func TestInMemoryExecutionStoreRoundTrips(t *testing.T) {
	store := NewInMemoryExecutionStore()
	ctx := context.Background()

	record := model.NewExecutionRecord("exec-1", "wf-1", "manual", map[string]interface{}{"a": 1.0}, model.EnvironmentProduction)
	record.AppendPath("A")
	record.Complete()

	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.FindByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, loaded.Status())
	assert.Equal(t, 1, loaded.NodesExecuted())
}

func TestInMemoryExecutionStoreListsByWorkflowAndStatus(t *testing.T) {
	store := NewInMemoryExecutionStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := "exec-" + string(rune('a'+i))
		record := model.NewExecutionRecord(id, "wf-shared", "manual", nil, model.EnvironmentProduction)
		if i == 0 {
			record.Fail("boom")
		} else {
			record.Complete()
		}
		require.NoError(t, store.Save(ctx, record))
	}

	byWorkflow, err := store.ListByWorkflow(ctx, "wf-shared", 0, 0)
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 3)

	failed, err := store.ListByStatus(ctx, model.StatusError, 0)
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	count, err := store.CountByWorkflow(ctx, "wf-shared")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
