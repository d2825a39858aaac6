package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	def := &WorkflowDefinition{
		ID:   "wf-1",
		Name: "ingest pipeline",
		Nodes: []Node{
			{ID: "start", Type: "trigger-manual"},
			{ID: "transform", Type: "set"},
		},
		Connections: []Connection{
			{SourceNodeID: "start", TargetNodeID: "transform"},
		},
	}

	assert.NoError(t, Validate(def))
}

func TestValidateRejectsMissingWorkflowID(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []Node{{ID: "start", Type: "trigger-manual"}},
	}

	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Violations)
}

func TestValidateRejectsEmptyNodeList(t *testing.T) {
	def := &WorkflowDefinition{ID: "wf-empty"}

	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "Nodes")
}

func TestValidateRejectsNodeMissingType(t *testing.T) {
	def := &WorkflowDefinition{
		ID:    "wf-2",
		Nodes: []Node{{ID: "start"}},
	}

	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "Type")
}

func TestValidateRejectsConnectionMissingTarget(t *testing.T) {
	def := &WorkflowDefinition{
		ID: "wf-3",
		Nodes: []Node{
			{ID: "start", Type: "trigger-manual"},
		},
		Connections: []Connection{
			{SourceNodeID: "start"},
		},
	}

	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "TargetNodeID")
}

func TestValidateRejectsOverlongName(t *testing.T) {
	name := make([]byte, 201)
	for i := range name {
		name[i] = 'a'
	}

	def := &WorkflowDefinition{
		ID:    "wf-4",
		Name:  string(name),
		Nodes: []Node{{ID: "start", Type: "trigger-manual"}},
	}

	err := Validate(def)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "Name")
}
