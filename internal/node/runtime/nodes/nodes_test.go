package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/enginecore/internal/node/runtime"
)

func TestIFNodeRoutesOnMatchingCondition(t *testing.T) {
	n := NewIFNode()
	input := &runtime.ExecutionInput{
		NodeID: "if-1",
		NodeConfig: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"field": "status", "operator": "equals", "value": "ok"},
			},
		},
		InputData: map[string]interface{}{"status": "ok"},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "true", out.Data["_output"])
}

func TestIFNodeRoutesOnNonMatchingCondition(t *testing.T) {
	n := NewIFNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"field": "status", "operator": "equals", "value": "ok"},
			},
		},
		InputData: map[string]interface{}{"status": "failed"},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "false", out.Data["_output"])
}

func TestIFNodeCombinesConditionsWithOr(t *testing.T) {
	n := NewIFNode()
	conditions := []interface{}{
		map[string]interface{}{"field": "a", "operator": "equals", "value": "1"},
		map[string]interface{}{"field": "b", "operator": "equals", "value": "2"},
	}

	assert.True(t, n.evaluateConditions(conditions, map[string]interface{}{"a": "x", "b": "2"}, "or"))
	assert.False(t, n.evaluateConditions(conditions, map[string]interface{}{"a": "x", "b": "y"}, "or"))
}

func TestIFNodeValidateRequiresConditions(t *testing.T) {
	n := NewIFNode()
	assert.Error(t, n.Validate(map[string]interface{}{}))
	assert.Error(t, n.Validate(map[string]interface{}{"conditions": []interface{}{}}))
	assert.NoError(t, n.Validate(map[string]interface{}{
		"conditions": []interface{}{map[string]interface{}{"field": "a"}},
	}))
}

func TestEvaluateConditionOperators(t *testing.T) {
	assert.True(t, evaluateCondition("abc", "contains", "b"))
	assert.True(t, evaluateCondition("abc", "startsWith", "ab"))
	assert.True(t, evaluateCondition("abc", "endsWith", "bc"))
	assert.True(t, evaluateCondition(5.0, "greaterThan", 3.0))
	assert.True(t, evaluateCondition(5.0, "lessThanOrEqual", 5.0))
	assert.True(t, evaluateCondition(nil, "isEmpty", nil))
	assert.True(t, evaluateCondition(nil, "isNull", nil))
	assert.True(t, evaluateCondition("yes", "isTrue", nil))
	assert.True(t, evaluateCondition("x", "in", "x,y,z"))
	assert.False(t, evaluateCondition("w", "in", "x,y,z"))
	assert.True(t, evaluateCondition("abc123", "matches", "^[a-z]+[0-9]+$"))
	assert.False(t, evaluateCondition("foo", "unknownOperator", "bar"))
}

func TestGetFieldValueNavigatesDottedPaths(t *testing.T) {
	data := map[string]interface{}{
		"user": map[string]interface{}{"name": "ada"},
	}
	assert.Equal(t, "ada", getFieldValue(data, "user.name"))
	assert.Nil(t, getFieldValue(data, "user.missing.deeper"))
	assert.Equal(t, data, getFieldValue(data, ""))
}

func TestSwitchNodeRoutesToMatchingRule(t *testing.T) {
	n := NewSwitchNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"rules": []interface{}{
				map[string]interface{}{"output": 1, "field": "type", "operator": "equals", "value": "a"},
			},
		},
		InputData: map[string]interface{}{"type": "a"},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "output1", out.Data["_output"])
}

func TestSwitchNodeFallsBackWhenNoRuleMatches(t *testing.T) {
	n := NewSwitchNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"rules": []interface{}{
				map[string]interface{}{"output": 1, "field": "type", "operator": "equals", "value": "a"},
			},
			"fallbackOutput": "fallback",
		},
		InputData: map[string]interface{}{"type": "b"},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Data["_output"])
}

func TestSwitchNodeDropsWhenFallbackDisabled(t *testing.T) {
	n := NewSwitchNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"rules":          []interface{}{},
			"fallbackOutput": "none",
		},
		InputData: map[string]interface{}{"type": "b"},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.NotContains(t, out.Data, "_output")
}

func TestMergeNodeAppend(t *testing.T) {
	n := NewMergeNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"mode": "append"},
		InputData: map[string]interface{}{
			"input1": []interface{}{"a"},
			"input2": []interface{}{"b"},
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	items, ok := out.Data["items"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, items)
}

func TestMergeNodeMergeByKeyClashHandling(t *testing.T) {
	n := NewMergeNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode":          "mergeByKey",
			"mergeKey":      "id",
			"clashHandling": "preferInput2",
		},
		InputData: map[string]interface{}{
			"input1": []interface{}{map[string]interface{}{"id": "1", "name": "old"}},
			"input2": []interface{}{map[string]interface{}{"id": "1", "name": "new"}},
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	items, ok := out.Data["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	merged := items[0].(map[string]interface{})
	assert.Equal(t, "new", merged["name"])
}

func TestMergeNodeChooseBranch(t *testing.T) {
	n := NewMergeNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"mode": "chooseBranch", "chooseBranchValue": "input2"},
		InputData: map[string]interface{}{
			"input1": "from-1",
			"input2": "from-2",
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "from-2", out.Data["result"])
}

func TestMergeNodeUnknownModeReturnsError(t *testing.T) {
	n := NewMergeNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"mode": "bogus"},
		InputData:  map[string]interface{}{},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Error(t, out.Error)
}

func TestSetNodeManualModeSetsValues(t *testing.T) {
	n := NewSetNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode": "manual",
			"values": []interface{}{
				map[string]interface{}{"name": "greeting", "value": "hi", "type": "string"},
				map[string]interface{}{"name": "count", "value": "3", "type": "number"},
			},
		},
		InputData: map[string]interface{}{},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Data["greeting"])
	assert.Equal(t, float64(3), out.Data["count"])
}

func TestSetNodeManualModeSupportsDotNotation(t *testing.T) {
	n := NewSetNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode":        "manual",
			"dotNotation": true,
			"values": []interface{}{
				map[string]interface{}{"name": "user.name", "value": "ada", "type": "string"},
			},
		},
		InputData: map[string]interface{}{},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	user, ok := out.Data["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ada", user["name"])
}

func TestSetNodeJSONModeMergesParsedFields(t *testing.T) {
	n := NewSetNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode":     "json",
			"jsonData": `{"foo": "bar"}`,
		},
		InputData: map[string]interface{}{},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "bar", out.Data["foo"])
}

func TestSetNodeJSONModeReportsInvalidJSON(t *testing.T) {
	n := NewSetNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode":     "json",
			"jsonData": `not json`,
		},
		InputData: map[string]interface{}{},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Error(t, out.Error)
}

func TestSetNodeKeepOnlySetDropsUpstreamFields(t *testing.T) {
	n := NewSetNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{
			"mode":        "manual",
			"keepOnlySet": true,
			"values": []interface{}{
				map[string]interface{}{"name": "kept", "value": "yes", "type": "string"},
			},
		},
		InputData: map[string]interface{}{
			"upstream": map[string]interface{}{"dropped": "field"},
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "yes", out.Data["kept"])
	assert.NotContains(t, out.Data, "dropped")
}

func TestLoopNodeIteratesRootArray(t *testing.T) {
	n := NewLoopNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"batchSize": 1},
		InputData: map[string]interface{}{
			"items": []interface{}{"a", "b", "c"},
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "loop", out.Data["_output"])
	loop, ok := out.Data["loop"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", loop["item"])
	assert.True(t, loop["first"].(bool))
}

func TestLoopNodeEmptyArrayGoesToDone(t *testing.T) {
	n := NewLoopNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{},
		InputData: map[string]interface{}{
			"items": []interface{}{},
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Data["_output"])
}

func TestLoopNodeRejectsNonArrayPath(t *testing.T) {
	n := NewLoopNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"items": "notAnArray"},
		InputData: map[string]interface{}{
			"notAnArray": "scalar",
		},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Error(t, out.Error)
}

func TestSplitInBatchesNodeSplitsEvenly(t *testing.T) {
	n := NewSplitInBatchesNode()
	items := make([]interface{}, 5)
	for i := range items {
		items[i] = i
	}
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"batchSize": 2},
		InputData:  map[string]interface{}{"items": items},
	}

	out, err := n.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Data["totalItems"])
	assert.Equal(t, 3, out.Data["totalBatches"])
}

func TestWaitNodeValidateRejectsNegativeAmount(t *testing.T) {
	n := NewWaitNode()
	assert.Error(t, n.Validate(map[string]interface{}{"amount": -1}))
	assert.NoError(t, n.Validate(map[string]interface{}{"amount": 1}))
}

func TestWaitNodeWaitsRequestedDuration(t *testing.T) {
	n := NewWaitNode()
	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"amount": 10, "unit": "milliseconds"},
		InputData:  map[string]interface{}{"x": 1},
	}

	start := time.Now()
	out, err := n.Execute(context.Background(), input)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.NoError(t, out.Error)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Equal(t, input.InputData, out.Data)
}

func TestWaitNodeRespectsCancellation(t *testing.T) {
	n := NewWaitNode()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := &runtime.ExecutionInput{
		NodeConfig: map[string]interface{}{"amount": 1, "unit": "hours"},
		InputData:  map[string]interface{}{},
	}

	out, err := n.Execute(ctx, input)
	require.NoError(t, err)
	assert.Error(t, out.Error)
}

func TestGetStringAndIntConfigDefaults(t *testing.T) {
	cfg := map[string]interface{}{"name": "set", "count": float64(4)}

	assert.Equal(t, "set", getStringConfig(cfg, "name", "fallback"))
	assert.Equal(t, "fallback", getStringConfig(cfg, "missing", "fallback"))
	assert.Equal(t, 4, getIntConfig(cfg, "count", 0))
	assert.Equal(t, 7, getIntConfig(cfg, "missing", 7))
}
