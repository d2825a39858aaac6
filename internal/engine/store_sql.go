package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/flowcraft/enginecore/internal/model"
)

// SQLExecutionStore implements ExecutionStore over database/sql. It works
// against both the Postgres ($N) and MySQL (?) placeholder styles; callers
// pick the dialect through the constructor they use
// (NewPostgresExecutionStore or NewMySQLExecutionStore).
type SQLExecutionStore struct {
	db         *sql.DB
	positional bool // true for postgres-style $1,$2,...; false for ?
}

// NewPostgresExecutionStore opens a store backed by lib/pq.
func NewPostgresExecutionStore(db *sql.DB) *SQLExecutionStore {
	return &SQLExecutionStore{db: db, positional: true}
}

// NewMySQLExecutionStore opens a store backed by go-sql-driver/mysql.
func NewMySQLExecutionStore(db *sql.DB) *SQLExecutionStore {
	return &SQLExecutionStore{db: db, positional: false}
}

func (s *SQLExecutionStore) ph(n int) string {
	if s.positional {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLExecutionStore) Save(ctx context.Context, record *model.ExecutionRecord) error {
	row := toRow(record)
	triggerData, _ := json.Marshal(row.TriggerData)
	path, _ := json.Marshal(row.Path)

	query := fmt.Sprintf(`
		INSERT INTO executions (
			id, workflow_id, status, started_at, finished_at,
			trigger_mode, trigger_data, environment, path,
			nodes_executed, nodes_failed, nodes_skipped,
			error_message, duration_ms, version
		) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, finished_at = EXCLUDED.finished_at,
			path = EXCLUDED.path, nodes_executed = EXCLUDED.nodes_executed,
			nodes_failed = EXCLUDED.nodes_failed, nodes_skipped = EXCLUDED.nodes_skipped,
			error_message = EXCLUDED.error_message, duration_ms = EXCLUDED.duration_ms,
			version = EXCLUDED.version`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9),
		s.ph(10), s.ph(11), s.ph(12), s.ph(13), s.ph(14), s.ph(15),
	)
	if !s.positional {
		query = upsertForMySQL
	}

	_, err := s.db.ExecContext(ctx, query,
		row.ID, row.WorkflowID, row.Status, row.StartedAt, row.FinishedAt,
		row.TriggerMode, triggerData, row.Environment, path,
		row.NodesExecuted, row.NodesFailed, row.NodesSkipped,
		row.ErrorMessage, row.DurationMs, row.Version,
	)
	return err
}

// upsertForMySQL is the INSERT ... ON DUPLICATE KEY UPDATE equivalent of
// Save's Postgres statement, for the MySQL dialect where the ? placeholder
// carries no column reference the ON CONFLICT EXCLUDED alias can reuse.
const upsertForMySQL = `
	INSERT INTO executions (
		id, workflow_id, status, started_at, finished_at,
		trigger_mode, trigger_data, environment, path,
		nodes_executed, nodes_failed, nodes_skipped,
		error_message, duration_ms, version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		status = VALUES(status), finished_at = VALUES(finished_at),
		path = VALUES(path), nodes_executed = VALUES(nodes_executed),
		nodes_failed = VALUES(nodes_failed), nodes_skipped = VALUES(nodes_skipped),
		error_message = VALUES(error_message), duration_ms = VALUES(duration_ms),
		version = VALUES(version)`

func (s *SQLExecutionStore) FindByID(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, workflow_id, status, started_at, finished_at,
			trigger_mode, trigger_data, environment, path,
			nodes_executed, nodes_failed, nodes_skipped,
			error_message, duration_ms, version
		FROM executions WHERE id = %s`, s.ph(1))

	row, err := s.scanOne(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

func (s *SQLExecutionStore) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*model.ExecutionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, workflow_id, status, started_at, finished_at,
			trigger_mode, trigger_data, environment, path,
			nodes_executed, nodes_failed, nodes_skipped,
			error_message, duration_ms, version
		FROM executions WHERE workflow_id = %s
		ORDER BY started_at DESC LIMIT %s OFFSET %s`, s.ph(1), s.ph(2), s.ph(3))

	rows, err := s.db.QueryContext(ctx, query, workflowID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanMany(rows)
}

func (s *SQLExecutionStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.ExecutionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, workflow_id, status, started_at, finished_at,
			trigger_mode, trigger_data, environment, path,
			nodes_executed, nodes_failed, nodes_skipped,
			error_message, duration_ms, version
		FROM executions WHERE status = %s
		ORDER BY started_at DESC LIMIT %s`, s.ph(1), s.ph(2))

	rows, err := s.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanMany(rows)
}

func (s *SQLExecutionStore) CountByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM executions WHERE workflow_id = %s`, s.ph(1))
	var count int64
	err := s.db.QueryRowContext(ctx, query, workflowID).Scan(&count)
	return count, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (s *SQLExecutionStore) scanOne(row scannable) (executionRow, error) {
	var out executionRow
	var triggerData, path []byte
	var finishedAt sql.NullTime

	err := row.Scan(
		&out.ID, &out.WorkflowID, &out.Status, &out.StartedAt, &finishedAt,
		&out.TriggerMode, &triggerData, &out.Environment, &path,
		&out.NodesExecuted, &out.NodesFailed, &out.NodesSkipped,
		&out.ErrorMessage, &out.DurationMs, &out.Version,
	)
	if err != nil {
		return executionRow{}, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		out.FinishedAt = &t
	}
	json.Unmarshal(triggerData, &out.TriggerData)
	json.Unmarshal(path, &out.Path)
	return out, nil
}

func (s *SQLExecutionStore) scanMany(rows *sql.Rows) ([]*model.ExecutionRecord, error) {
	var records []*model.ExecutionRecord
	for rows.Next() {
		row, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, fromRow(row))
	}
	return records, rows.Err()
}
