// Package model holds the domain types shared by the execution core.
package model

// ExecutionMode controls how a wave of ready nodes is run.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// Environment is an opaque label propagated onto an ExecutionRecord.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentTesting     Environment = "testing"
	EnvironmentProduction  Environment = "production"
)

// WorkflowDefinition is the immutable graph handed to the Workflow Executor.
type WorkflowDefinition struct {
	ID          string                 `validate:"required"`
	Name        string                 `validate:"omitempty,max=200"`
	Nodes       []Node                 `validate:"required,min=1,dive"`
	Connections []Connection           `validate:"dive"`
	Variables   map[string]interface{} `validate:"-"`
	Settings    WorkflowSettings       `validate:"-"`
}

// Node is a blueprint for a single unit of work within a workflow.
type Node struct {
	ID         string                 `validate:"required"`
	Type       string                 `validate:"required"`
	Name       string                 `validate:"omitempty,max=200"`
	Parameters map[string]interface{} `validate:"-"`
	Disabled   bool                   `validate:"-"`
	Retry      RetrySettings          `validate:"-"`
	Position   Position               `validate:"-"`
	Credential string                 `validate:"-"`
}

// Connection links one node's output to another node's input.
type Connection struct {
	SourceNodeID string `validate:"required"`
	TargetNodeID string `validate:"required"`
	SourceOutput string `validate:"omitempty"`
	TargetInput  string `validate:"omitempty"`
	Kind         string `validate:"omitempty"` // defaults to "main"
}

// Position is a layout hint, opaque to execution.
type Position struct {
	X float64
	Y float64
}

// RetrySettings is the per-node retry policy.
type RetrySettings struct {
	Enabled           bool
	MaxRetries        int
	RetryDelayMs      int
	ExponentialBackoff bool
}

// DefaultRetrySettings matches the core's stated defaults (3 retries, 1s delay).
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{
		Enabled:      false,
		MaxRetries:   3,
		RetryDelayMs: 1000,
	}
}

// WorkflowSettings carries workflow-wide execution configuration.
type WorkflowSettings struct {
	ExecutionMode           ExecutionMode
	MaxExecutionTimeSeconds int
}

// ExecutionOptions parameterizes a single run of a WorkflowDefinition.
type ExecutionOptions struct {
	TriggerMode string // the Scheduler sets "schedule" for cron runs and "manual" for TriggerNow; other values are set by external triggers
	TriggerData map[string]interface{}
	Environment Environment
}

// NodeDefinition describes a registered node type, independent of any one workflow.
type NodeDefinition struct {
	Type                string
	DisplayName         string
	Category            string
	ParameterSchema     map[string]interface{}
	Outputs             []string
	RequiredCredentials []string
	Capabilities        NodeCapabilities
}

// NodeCapabilities are the static properties of a node type.
type NodeCapabilities struct {
	SupportsRetry           bool
	SupportsStreaming       bool
	SupportsBatching        bool
	IsTrigger               bool
	MaxExecutionTimeSeconds int
}
