// Package engine implements the workflow execution core: the execution
// graph, node runner, workflow executor, and their supporting error
// taxonomy, retry policy, and event hub.
package engine

import "fmt"

// InvalidGraphError reports a WorkflowDefinition that violates a structural
// invariant: a cycle, an edge to a missing node id, or a duplicate node id.
// It is fatal to the execution before any node runs.
type InvalidGraphError struct {
	Reason string
}

func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("invalid graph: %s", e.Reason)
}

// UnknownNodeTypeError reports a node whose type is not in the registry.
// Fatal to that node, and therefore fatal to the execution; not retried.
type UnknownNodeTypeError struct {
	NodeType string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.NodeType)
}

// ExpressionEvaluationError reports a parameter expression that could not be
// evaluated. Treated as a node failure, subject to retry.
type ExpressionEvaluationError struct {
	NodeID string
	Cause  error
}

func (e *ExpressionEvaluationError) Error() string {
	return fmt.Sprintf("node %s: expression evaluation failed: %v", e.NodeID, e.Cause)
}

func (e *ExpressionEvaluationError) Unwrap() error { return e.Cause }

// NodeExecutionError wraps an error an executor raised. Subject to retry.
type NodeExecutionError struct {
	NodeID string
	Cause  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s: execution failed: %v", e.NodeID, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// TimeoutError reports an executor exceeding its MaxExecutionTimeSeconds
// capability. Subject to retry.
type TimeoutError struct {
	NodeID          string
	TimeoutSeconds  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s: exceeded %ds execution time limit", e.NodeID, e.TimeoutSeconds)
}

// CanceledError reports a cancellation signal. Not retried; the execution
// terminates Canceled.
type CanceledError struct {
	NodeID string
}

func (e *CanceledError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %s: canceled", e.NodeID)
	}
	return "execution canceled"
}

// StoreError wraps a persistence-layer failure. Logged and swallowed: the
// in-memory execution continues so the event stream stays consistent, and
// the final status reflects node outcomes, not the store failure.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// HubError wraps a best-effort delivery failure from the Execution Hub.
// Always swallowed with a log; never propagated to the caller.
type HubError struct {
	Channel string
	Cause   error
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub: delivery to %q failed: %v", e.Channel, e.Cause)
}

func (e *HubError) Unwrap() error { return e.Cause }

// isRetryableNodeError reports whether err belongs to the class of errors
// that trigger the Runner's retry loop: ExpressionEvaluationError,
// NodeExecutionError, and TimeoutError. Everything else (UnknownNodeType,
// CanceledError) short-circuits without retry.
func isRetryableNodeError(err error) bool {
	switch err.(type) {
	case *ExpressionEvaluationError, *NodeExecutionError, *TimeoutError:
		return true
	default:
		return false
	}
}
