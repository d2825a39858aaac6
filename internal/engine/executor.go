// Package engine implements the workflow execution core: the execution
// graph, node runner, workflow executor, and their supporting error
// taxonomy, retry policy, and event hub.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flowcraft/enginecore/internal/model"
	"github.com/flowcraft/enginecore/pkg/expression"
)

// Executor runs a WorkflowDefinition to completion: it builds the execution
// graph once, then advances the ready frontier wave by wave, dispatching
// each ready node to a Runner and folding results back into the
// ExecutionRecord and ExecutionContext. Nothing here talks to a database,
// an HTTP handler, or a credential store; those are the caller's concern.
type Executor struct {
	runner    *Runner
	hub       Hub
	store     ExecutionStore
	snapshots SnapshotStore
}

// Option configures optional Executor collaborators.
type Option func(*Executor)

// WithStore attaches an ExecutionStore that Execute checkpoints the
// ExecutionRecord to after every wave, so the last persisted state outlives
// a crashed process. Nothing in this package reads it back to resume a run.
func WithStore(store ExecutionStore) Option {
	return func(e *Executor) { e.store = store }
}

// WithSnapshotStore attaches a SnapshotStore for offloading node
// input/output snapshots larger than snapshotInlineLimit.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(e *Executor) { e.snapshots = store }
}

// WithCredentialProvider attaches the CredentialProvider the Runner
// resolves node.Credential references through.
func WithCredentialProvider(provider CredentialProvider) Option {
	return func(e *Executor) { e.runner.WithCredentialProvider(provider) }
}

// NewExecutor builds an Executor. hub may be nil, in which case execution
// and node lifecycle events are simply not published.
func NewExecutor(parser *expression.Parser, hub Hub, opts ...Option) *Executor {
	e := &Executor{runner: NewRunner(parser), hub: hub}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is what a completed (or failed) run reports back to the caller.
type Result struct {
	Record *model.ExecutionRecord
	Nodes  map[string]*model.NodeExecutionRecord
	Output map[string]interface{}
}

// Execute runs def to completion under executionID. TriggerData seeds the
// "trigger" key of the execution context; it is the caller's resolved
// substitute for a webhook payload, schedule tick, or manual invocation.
func (e *Executor) Execute(ctx context.Context, def *model.WorkflowDefinition, executionID string, options model.ExecutionOptions) (*Result, error) {
	if err := model.Validate(def); err != nil {
		return nil, err
	}

	graph, err := BuildGraph(def)
	if err != nil {
		return nil, err
	}

	record := model.NewExecutionRecord(executionID, def.ID, options.TriggerMode, options.TriggerData, options.Environment)
	execCtx := model.NewExecutionContext(def.ID, executionID, options.TriggerData)
	nodeRecords := make(map[string]*model.NodeExecutionRecord, graph.Size())

	e.publish(EventExecutionStarted, executionID, def.ID, "", nil)

	mode := def.Settings.ExecutionMode
	if mode == "" {
		mode = model.ExecutionModeParallel
	}

	executed := make(map[string]struct{}, graph.Size())
	order := 0
	var firstFailure error

	frontier := graph.Roots()
	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			record.Cancel()
			e.publish(EventExecutionCanceled, executionID, def.ID, "", nil)
			return e.finish(record, nodeRecords, execCtx), &CanceledError{}
		default:
		}

		outcomes := e.runStage(ctx, graph, frontier, execCtx, nodeRecords, &order, mode)

		for _, nodeID := range frontier {
			executed[nodeID] = struct{}{}
			outcome := outcomes[nodeID]
			nr := nodeRecords[nodeID]

			if nr == nil {
				// Disabled node: transparently satisfied, no record, no events,
				// and its output is not exposed to dependents.
				continue
			}

			if outcome.Err != nil {
				if firstFailure == nil {
					firstFailure = outcome.Err
				}
				nr.Fail(e.renderSnapshot(ctx, executionID, nodeID, "input", outcome.Output), outcome.Err.Error())
				e.publish(EventNodeExecutionFailed, executionID, def.ID, nodeID, map[string]interface{}{"error": outcome.Err.Error()})
				continue
			}

			execCtx.Set(nodeID, outcome.Output)
			nr.Succeed(e.renderSnapshot(ctx, executionID, nodeID, "input", nil), e.renderSnapshot(ctx, executionID, nodeID, "output", outcome.Output))
			record.AppendPath(nodeID)
			e.publish(EventNodeExecutionCompleted, executionID, def.ID, nodeID, map[string]interface{}{"durationMs": outcome.DurationMs})
		}

		if firstFailure != nil {
			break
		}
		e.checkpoint(ctx, record)
		frontier = graph.Next(executed)
	}

	for _, n := range def.Nodes {
		if _, ok := executed[n.ID]; !ok {
			record.MarkSkipped()
		}
	}

	var canceled *CanceledError
	switch {
	case errors.As(firstFailure, &canceled):
		record.Cancel()
	case firstFailure != nil:
		record.Fail(firstFailure.Error())
	default:
		record.Complete()
	}

	e.checkpoint(ctx, record)

	result := e.finish(record, nodeRecords, execCtx)
	if canceled != nil {
		e.publish(EventExecutionCanceled, executionID, def.ID, "", nil)
		return result, firstFailure
	}
	if firstFailure != nil {
		e.publish(EventExecutionFailed, executionID, def.ID, "", map[string]interface{}{"error": firstFailure.Error()})
		return result, firstFailure
	}
	e.publish(EventExecutionCompleted, executionID, def.ID, "", map[string]interface{}{"status": string(record.Status())})
	return result, nil
}

// checkpoint persists the current ExecutionRecord if a store is attached.
// Save failures are logged as a StoreError and are not fatal to the run
// itself -- they just mean this particular checkpoint didn't make it to
// durable storage.
func (e *Executor) checkpoint(ctx context.Context, record *model.ExecutionRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, record); err != nil {
		log.Printf("engine: %v", &StoreError{Op: "save", Cause: err})
	}
}

// snapshotInlineLimit is the byte size above which a node's input/output
// snapshot is offloaded to the attached SnapshotStore instead of being kept
// inline in the NodeExecutionRecord.
const snapshotInlineLimit = 32 * 1024

// renderSnapshot is like snapshot, but offloads large payloads to e.snapshots
// when one is configured, recording a reference instead of the raw bytes.
func (e *Executor) renderSnapshot(ctx context.Context, executionID, nodeID, label string, v interface{}) string {
	s := snapshot(v)
	if e.snapshots == nil || len(s) <= snapshotInlineLimit {
		return s
	}
	key := fmt.Sprintf("%s/%s-%s.json", executionID, nodeID, label)
	ref, err := e.snapshots.Put(ctx, key, []byte(s))
	if err != nil {
		return s
	}
	return fmt.Sprintf("s3://%s", ref)
}

// runStage executes every node in frontier, sequentially or in parallel
// depending on mode, and returns each node's Outcome keyed by node id.
// Disabled nodes are run through the Runner (which treats Disabled as a
// no-op) but never get a NodeExecutionRecord or an EventNodeExecutionStarted
// publish: a disabled node is transparent, not executed.
func (e *Executor) runStage(
	ctx context.Context,
	graph *Graph,
	frontier []string,
	execCtx *model.ExecutionContext,
	nodeRecords map[string]*model.NodeExecutionRecord,
	order *int,
	mode model.ExecutionMode,
) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(frontier))

	run := func(nodeID string) {
		node, ok := graph.Get(nodeID)
		if !ok {
			outcomes[nodeID] = Outcome{NodeID: nodeID, Err: &InvalidGraphError{Reason: fmt.Sprintf("frontier referenced unknown node %q", nodeID)}}
			return
		}
		if node.Disabled {
			outcomes[nodeID] = e.runner.Run(ctx, node, nil, execCtx)
			return
		}
		*order++
		nr := model.NewNodeExecutionRecord(nodeID+"-"+execCtx.ExecutionID, execCtx.ExecutionID, nodeID, node.Name, *order)
		nodeRecords[nodeID] = nr
		e.publish(EventNodeExecutionStarted, execCtx.ExecutionID, execCtx.WorkflowID, nodeID, nil)
		outcomes[nodeID] = e.runner.Run(ctx, node, nr, execCtx)
	}

	if mode == model.ExecutionModeSequential {
		for _, nodeID := range frontier {
			run(nodeID)
		}
		return outcomes
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, nodeID := range frontier {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			node, ok := graph.Get(id)
			if !ok {
				mu.Lock()
				outcomes[id] = Outcome{NodeID: id, Err: &InvalidGraphError{Reason: fmt.Sprintf("frontier referenced unknown node %q", id)}}
				mu.Unlock()
				return
			}
			if node.Disabled {
				outcome := e.runner.Run(ctx, node, nil, execCtx)
				mu.Lock()
				outcomes[id] = outcome
				mu.Unlock()
				return
			}
			mu.Lock()
			*order++
			nr := model.NewNodeExecutionRecord(id+"-"+execCtx.ExecutionID, execCtx.ExecutionID, id, node.Name, *order)
			nodeRecords[id] = nr
			mu.Unlock()
			e.publish(EventNodeExecutionStarted, execCtx.ExecutionID, execCtx.WorkflowID, id, nil)
			outcome := e.runner.Run(ctx, node, nr, execCtx)
			mu.Lock()
			outcomes[id] = outcome
			mu.Unlock()
		}(nodeID)
	}
	wg.Wait()
	return outcomes
}

func (e *Executor) finish(record *model.ExecutionRecord, nodeRecords map[string]*model.NodeExecutionRecord, execCtx *model.ExecutionContext) *Result {
	output := map[string]interface{}{}
	for id, data := range execCtx.Data {
		if id == "trigger" {
			continue
		}
		output[id] = data
	}
	return &Result{Record: record, Nodes: nodeRecords, Output: output}
}

func (e *Executor) publish(eventType EventType, executionID, workflowID, nodeID string, data map[string]interface{}) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(Event{
		Type:        eventType,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      nodeID,
		Timestamp:   time.Now(),
		Data:        data,
	})
}
