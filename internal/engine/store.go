package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowcraft/enginecore/internal/model"
)

// ExecutionStore persists ExecutionRecord aggregates. It knows nothing about
// graphs, nodes, or the expression resolver; Executor calls it, if given
// one, purely to checkpoint state for later retrieval.
type ExecutionStore interface {
	Save(ctx context.Context, record *model.ExecutionRecord) error
	FindByID(ctx context.Context, id string) (*model.ExecutionRecord, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*model.ExecutionRecord, error)
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.ExecutionRecord, error)
	CountByWorkflow(ctx context.Context, workflowID string) (int64, error)
}

// executionRow is the flat, serializable shape an ExecutionRecord reduces to
// for storage backends that cannot see its private fields directly.
type executionRow struct {
	ID            string
	WorkflowID    string
	Status        model.Status
	StartedAt     time.Time
	FinishedAt    *time.Time
	TriggerMode   string
	TriggerData   map[string]interface{}
	Environment   model.Environment
	Path          []string
	NodesExecuted int
	NodesFailed   int
	NodesSkipped  int
	ErrorMessage  string
	DurationMs    int64
	Version       int
}

func toRow(record *model.ExecutionRecord) executionRow {
	return executionRow{
		ID:            record.ID(),
		WorkflowID:    record.WorkflowID(),
		Status:        record.Status(),
		StartedAt:     record.StartedAt(),
		FinishedAt:    record.FinishedAt(),
		TriggerMode:   record.TriggerMode(),
		TriggerData:   record.TriggerData(),
		Environment:   record.Environment(),
		Path:          record.Path(),
		NodesExecuted: record.NodesExecuted(),
		NodesFailed:   record.NodesFailed(),
		NodesSkipped:  record.NodesSkipped(),
		ErrorMessage:  record.ErrorMessage(),
		DurationMs:    record.DurationMs(),
		Version:       record.Version(),
	}
}

func fromRow(row executionRow) *model.ExecutionRecord {
	return model.ReconstructExecutionRecord(
		row.ID, row.WorkflowID, row.Status, row.StartedAt, row.FinishedAt,
		row.TriggerMode, row.TriggerData, row.Environment, row.Path,
		row.NodesExecuted, row.NodesFailed, row.NodesSkipped,
		row.ErrorMessage, row.DurationMs, row.Version,
	)
}

// InMemoryExecutionStore keeps execution records in a guarded map. It is the
// default store for tests and for callers who checkpoint executions
// elsewhere and have no need for this package to own persistence.
type InMemoryExecutionStore struct {
	mu   sync.RWMutex
	byID map[string]executionRow
}

func NewInMemoryExecutionStore() *InMemoryExecutionStore {
	return &InMemoryExecutionStore{byID: make(map[string]executionRow)}
}

func (s *InMemoryExecutionStore) Save(ctx context.Context, record *model.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[record.ID()] = toRow(record)
	return nil
}

func (s *InMemoryExecutionStore) FindByID(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	return fromRow(row), nil
}

func (s *InMemoryExecutionStore) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*model.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []executionRow
	for _, row := range s.byID {
		if row.WorkflowID == workflowID {
			rows = append(rows, row)
		}
	}
	return pageRows(rows, limit, offset), nil
}

func (s *InMemoryExecutionStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []executionRow
	for _, row := range s.byID {
		if row.Status == status {
			rows = append(rows, row)
		}
	}
	return pageRows(rows, limit, 0), nil
}

func (s *InMemoryExecutionStore) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, row := range s.byID {
		if row.WorkflowID == workflowID {
			count++
		}
	}
	return count, nil
}

func pageRows(rows []executionRow, limit, offset int) []*model.ExecutionRecord {
	if offset < len(rows) {
		rows = rows[offset:]
	} else {
		rows = nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	records := make([]*model.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, fromRow(row))
	}
	return records
}
