package nodes

import (
	"fmt"

	"github.com/flowcraft/enginecore/pkg/expression"
)

// expressionContextFrom turns the per-node input data handed to an executor
// into an expression.Context, so a node that evaluates expressions itself
// (rather than relying solely on the Runner's top-level parameter
// resolution) sees the same node-by-id data the resolver saw.
func expressionContextFrom(inputData map[string]interface{}) *expression.Context {
	ctx := expression.NewContext()
	for id, v := range inputData {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if id == "trigger" {
			ctx.SetTrigger(m)
		} else {
			ctx.SetNodeData(id, m)
		}
	}
	return ctx
}

// flattenInputData merges every upstream node's output into a single flat
// map for nodes that operate on "the current data" rather than a specific
// node's output by id. Map iteration order is unspecified, so callers that
// need deterministic precedence across overlapping keys should not rely on
// this for anything beyond a best-effort working set.
func flattenInputData(inputData map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	for id, v := range inputData {
		if id == "trigger" {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			for k, fv := range m {
				flat[k] = fv
			}
		}
	}
	return flat
}

func getStringConfig(config map[string]interface{}, key, defaultVal string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func getIntConfig(config map[string]interface{}, key string, defaultVal int) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}
