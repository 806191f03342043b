package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/protean-labs/conductor/pkg/core"
)

const archiveTable = "conductor_tasks"

// Archive journals terminal task snapshots in a SQLite database. The queue
// stays the source of truth for live tasks; the archive answers "what
// happened" after ClearCompleted has pruned them.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) an archive at the given path and ensures
// schema. Use ":memory:" for an ephemeral archive.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task archive: %w", err)
	}
	return NewArchive(db)
}

// NewArchive wraps an existing database handle and ensures schema.
func NewArchive(db *sql.DB) (*Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureArchiveSchema(db); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func ensureArchiveSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent_name TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			task_json BLOB NOT NULL
		);`, archiveTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_agent ON %s(agent_name);`, archiveTable, archiveTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status);`, archiveTable, archiveTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_finished ON %s(finished_at);`, archiveTable, archiveTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record upserts a task snapshot. A retried task that later succeeds
// overwrites its earlier failed row; the archive keeps final outcomes, not
// attempt history.
func (a *Archive) Record(ctx context.Context, task *core.Task) error {
	snapshot := task.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	finishedAt := time.Now().UTC()
	if !snapshot.CompletedAt.IsZero() {
		finishedAt = snapshot.CompletedAt
	}

	_, err = a.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, agent_name, status, priority, retry_count, created_at, finished_at, task_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				agent_name = excluded.agent_name,
				status = excluded.status,
				priority = excluded.priority,
				retry_count = excluded.retry_count,
				finished_at = excluded.finished_at,
				task_json = excluded.task_json`, archiveTable),
		snapshot.ID, snapshot.AgentName, string(snapshot.Status), string(snapshot.Priority),
		snapshot.RetryCount, snapshot.CreatedAt.UTC().UnixMilli(), finishedAt.UnixMilli(), payload)
	if err != nil {
		return fmt.Errorf("failed to record task: %w", err)
	}
	return nil
}

// Get returns an archived task snapshot by id.
func (a *Archive) Get(ctx context.Context, taskID string) (core.Task, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT task_json FROM %s WHERE id = ?", archiveTable), taskID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Task{}, fmt.Errorf("task %q not found", taskID)
		}
		return core.Task{}, err
	}
	var task core.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return core.Task{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return task, nil
}

// ListByAgent returns archived tasks for an agent, most recently finished
// first.
func (a *Archive) ListByAgent(ctx context.Context, agentName string, limit int) ([]core.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf("SELECT task_json FROM %s WHERE agent_name = ? ORDER BY finished_at DESC, id ASC LIMIT ?", archiveTable),
		agentName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var task core.Task
		if err := json.Unmarshal(payload, &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes archived tasks that finished more than olderThan ago.
func (a *Archive) Prune(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan).UnixMilli()
	_, err := a.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE finished_at < ?", archiveTable), cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune archive: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
