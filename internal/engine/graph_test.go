package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/enginecore/internal/model"
)

func chainWorkflow() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		ID: "wf1",
		Nodes: []model.Node{
			{ID: "A", Type: "trigger"},
			{ID: "B", Type: "noop"},
			{ID: "C", Type: "noop"},
		},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "B"},
			{SourceNodeID: "B", TargetNodeID: "C"},
		},
	}
}

func TestBuildGraphRootsAndNext(t *testing.T) {
	g, err := BuildGraph(chainWorkflow())
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, g.Roots())

	executed := map[string]struct{}{"A": {}}
	assert.Equal(t, []string{"B"}, g.Next(executed))

	executed["B"] = struct{}{}
	assert.Equal(t, []string{"C"}, g.Next(executed))
}

func TestBuildGraphDetectsCycle(t *testing.T) {
	def := &model.WorkflowDefinition{
		Nodes: []model.Node{{ID: "A"}, {ID: "B"}},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "B"},
			{SourceNodeID: "B", TargetNodeID: "A"},
		},
	}
	_, err := BuildGraph(def)
	require.Error(t, err)
	assert.IsType(t, &InvalidGraphError{}, err)
}

func TestBuildGraphRejectsDanglingEdge(t *testing.T) {
	def := &model.WorkflowDefinition{
		Nodes: []model.Node{{ID: "A"}},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "missing"},
		},
	}
	_, err := BuildGraph(def)
	assert.Error(t, err)
}

func TestBuildGraphRejectsDuplicateID(t *testing.T) {
	def := &model.WorkflowDefinition{
		Nodes: []model.Node{{ID: "A"}, {ID: "A"}},
	}
	_, err := BuildGraph(def)
	assert.Error(t, err)
}

func TestBuildGraphParallelBranches(t *testing.T) {
	def := &model.WorkflowDefinition{
		Nodes: []model.Node{
			{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"},
		},
		Connections: []model.Connection{
			{SourceNodeID: "A", TargetNodeID: "B"},
			{SourceNodeID: "A", TargetNodeID: "C"},
			{SourceNodeID: "B", TargetNodeID: "D"},
			{SourceNodeID: "C", TargetNodeID: "D"},
		},
	}
	g, err := BuildGraph(def)
	require.NoError(t, err)

	executed := map[string]struct{}{"A": {}}
	assert.ElementsMatch(t, []string{"B", "C"}, g.Next(executed))

	executed["B"] = struct{}{}
	assert.Equal(t, []string{"C"}, g.Next(executed))

	executed["C"] = struct{}{}
	assert.Equal(t, []string{"D"}, g.Next(executed))
}
