package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle status shared by executions and node executions.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusRunning         Status = "running"
	StatusSuccess         Status = "success"
	StatusError           Status = "error"
	StatusCanceled        Status = "canceled"
	StatusPartialSuccess  Status = "partial_success"
)

// IsTerminal reports whether the status ends the lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusCanceled, StatusPartialSuccess:
		return true
	default:
		return false
	}
}

// ExecutionRecord is the aggregate root for a single workflow run. Fields are
// private; callers mutate it only through the transition methods so that the
// state machine in section 4.5 cannot be bypassed.
type ExecutionRecord struct {
	id          string
	workflowID  string
	status      Status
	startedAt   time.Time
	finishedAt  *time.Time
	triggerMode string
	triggerData map[string]interface{}
	environment Environment

	path           []string
	nodesExecuted  int
	nodesFailed    int
	nodesSkipped   int
	errorMessage   string
	durationMs     int64

	version int
}

// NewExecutionRecord creates a fresh execution in the Running state. Per the
// state machine, an execution is created already running; there is no
// separate Waiting->Running edge at this layer.
func NewExecutionRecord(id, workflowID string, triggerMode string, triggerData map[string]interface{}, env Environment) *ExecutionRecord {
	return &ExecutionRecord{
		id:          id,
		workflowID:  workflowID,
		status:      StatusRunning,
		startedAt:   time.Now(),
		triggerMode: triggerMode,
		triggerData: triggerData,
		environment: env,
		path:        make([]string, 0),
		version:     1,
	}
}

// ReconstructExecutionRecord rebuilds an aggregate from stored fields, for
// repositories that load executions back from a store.
func ReconstructExecutionRecord(
	id, workflowID string,
	status Status,
	startedAt time.Time,
	finishedAt *time.Time,
	triggerMode string,
	triggerData map[string]interface{},
	env Environment,
	path []string,
	nodesExecuted, nodesFailed, nodesSkipped int,
	errorMessage string,
	durationMs int64,
	version int,
) *ExecutionRecord {
	return &ExecutionRecord{
		id:            id,
		workflowID:    workflowID,
		status:        status,
		startedAt:     startedAt,
		finishedAt:    finishedAt,
		triggerMode:   triggerMode,
		triggerData:   triggerData,
		environment:   env,
		path:          path,
		nodesExecuted: nodesExecuted,
		nodesFailed:   nodesFailed,
		nodesSkipped:  nodesSkipped,
		errorMessage:  errorMessage,
		durationMs:    durationMs,
		version:       version,
	}
}

func (e *ExecutionRecord) ID() string                            { return e.id }
func (e *ExecutionRecord) WorkflowID() string                    { return e.workflowID }
func (e *ExecutionRecord) Status() Status                        { return e.status }
func (e *ExecutionRecord) StartedAt() time.Time                  { return e.startedAt }
func (e *ExecutionRecord) FinishedAt() *time.Time                { return e.finishedAt }
func (e *ExecutionRecord) TriggerMode() string                   { return e.triggerMode }
func (e *ExecutionRecord) TriggerData() map[string]interface{}   { return e.triggerData }
func (e *ExecutionRecord) Environment() Environment              { return e.environment }
func (e *ExecutionRecord) Path() []string                        { return append([]string(nil), e.path...) }
func (e *ExecutionRecord) NodesExecuted() int                    { return e.nodesExecuted }
func (e *ExecutionRecord) NodesFailed() int                      { return e.nodesFailed }
func (e *ExecutionRecord) NodesSkipped() int                     { return e.nodesSkipped }
func (e *ExecutionRecord) ErrorMessage() string                  { return e.errorMessage }
func (e *ExecutionRecord) DurationMs() int64                     { return e.durationMs }
func (e *ExecutionRecord) Version() int                          { return e.version }

// AppendPath records a node id that reached Success, assigning it the next
// execution order implicitly (its position in the slice).
func (e *ExecutionRecord) AppendPath(nodeID string) {
	if e.status.IsTerminal() {
		return
	}
	e.path = append(e.path, nodeID)
	e.nodesExecuted++
	e.version++
}

// MarkSkipped increments the skipped counter without affecting the path.
func (e *ExecutionRecord) MarkSkipped() {
	e.nodesSkipped++
	e.version++
}

// Complete transitions a running execution to Success.
func (e *ExecutionRecord) Complete() error {
	if e.status != StatusRunning {
		return fmt.Errorf("cannot complete execution %s from status %s", e.id, e.status)
	}
	e.finish(StatusSuccess, "")
	return nil
}

// Fail transitions a running execution to Error, recording the message of
// the first failing node.
func (e *ExecutionRecord) Fail(message string) error {
	if e.status != StatusRunning {
		return fmt.Errorf("cannot fail execution %s from status %s", e.id, e.status)
	}
	e.nodesFailed++
	e.finish(StatusError, message)
	return nil
}

// Cancel transitions a running execution to Canceled.
func (e *ExecutionRecord) Cancel() error {
	if e.status != StatusRunning {
		return fmt.Errorf("cannot cancel execution %s from status %s", e.id, e.status)
	}
	e.finish(StatusCanceled, "")
	return nil
}

func (e *ExecutionRecord) finish(status Status, message string) {
	now := time.Now()
	e.status = status
	e.finishedAt = &now
	e.errorMessage = message
	e.durationMs = now.Sub(e.startedAt).Milliseconds()
	e.version++
}

// NodeExecutionRecord tracks a single node's run within an execution.
type NodeExecutionRecord struct {
	id             string
	executionID    string
	nodeID         string
	nodeName       string
	status         Status
	startedAt      time.Time
	finishedAt     *time.Time
	inputSnapshot  string
	outputSnapshot string
	errorMessage   string
	executionOrder int
	retryCount     int
	durationMs     int64
}

// NewNodeExecutionRecord creates a record in the Running state.
func NewNodeExecutionRecord(id, executionID, nodeID, nodeName string, order int) *NodeExecutionRecord {
	return &NodeExecutionRecord{
		id:             id,
		executionID:    executionID,
		nodeID:         nodeID,
		nodeName:       nodeName,
		status:         StatusRunning,
		startedAt:      time.Now(),
		executionOrder: order,
	}
}

func (n *NodeExecutionRecord) ID() string               { return n.id }
func (n *NodeExecutionRecord) ExecutionID() string       { return n.executionID }
func (n *NodeExecutionRecord) NodeID() string            { return n.nodeID }
func (n *NodeExecutionRecord) NodeName() string          { return n.nodeName }
func (n *NodeExecutionRecord) Status() Status             { return n.status }
func (n *NodeExecutionRecord) StartedAt() time.Time       { return n.startedAt }
func (n *NodeExecutionRecord) FinishedAt() *time.Time     { return n.finishedAt }
func (n *NodeExecutionRecord) InputSnapshot() string      { return n.inputSnapshot }
func (n *NodeExecutionRecord) OutputSnapshot() string     { return n.outputSnapshot }
func (n *NodeExecutionRecord) ErrorMessage() string       { return n.errorMessage }
func (n *NodeExecutionRecord) ExecutionOrder() int        { return n.executionOrder }
func (n *NodeExecutionRecord) RetryCount() int            { return n.retryCount }
func (n *NodeExecutionRecord) DurationMs() int64          { return n.durationMs }

// IncrementRetry bumps the retry counter; callers enforce the maxRetries bound.
func (n *NodeExecutionRecord) IncrementRetry() {
	n.retryCount++
}

// Succeed transitions the node record to Success, snapshotting its data.
func (n *NodeExecutionRecord) Succeed(inputSnapshot, outputSnapshot string) {
	n.inputSnapshot = inputSnapshot
	n.outputSnapshot = outputSnapshot
	n.finish(StatusSuccess, "")
}

// Fail transitions the node record to Error with the final error message.
func (n *NodeExecutionRecord) Fail(inputSnapshot, message string) {
	n.inputSnapshot = inputSnapshot
	n.finish(StatusError, message)
}

// Cancel transitions the node record to Canceled.
func (n *NodeExecutionRecord) Cancel() {
	n.finish(StatusCanceled, "")
}

func (n *NodeExecutionRecord) finish(status Status, message string) {
	now := time.Now()
	n.status = status
	n.finishedAt = &now
	n.errorMessage = message
	n.durationMs = now.Sub(n.startedAt).Milliseconds()
}

// LogLevel enumerates execution log severities.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ExecutionLog is an append-only log line attached to an execution.
type ExecutionLog struct {
	ID          string
	ExecutionID string
	Timestamp   time.Time
	Level       LogLevel
	Message     string
	NodeID      string
	NodeName    string
	Metadata    map[string]interface{}
}

// ExecutionContext is the live, per-run data the Runner reads and the
// Executor writes. Data is keyed by node id (plus the reserved key "trigger")
// and is written exactly once per key, by the Executor for the node that
// just succeeded.
type ExecutionContext struct {
	WorkflowID  string
	ExecutionID string
	Data        map[string]map[string]interface{}
}

// NewExecutionContext seeds a context with the trigger payload under "trigger".
func NewExecutionContext(workflowID, executionID string, triggerData map[string]interface{}) *ExecutionContext {
	data := make(map[string]map[string]interface{})
	data["trigger"] = triggerData
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Data:        data,
	}
}

// Set writes a node's output. Callers must only call this once per nodeID.
func (c *ExecutionContext) Set(nodeID string, output map[string]interface{}) {
	c.Data[nodeID] = output
}

// Get reads a node's recorded output, or the trigger payload for "trigger".
func (c *ExecutionContext) Get(nodeID string) (map[string]interface{}, bool) {
	v, ok := c.Data[nodeID]
	return v, ok
}
