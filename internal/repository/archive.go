package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

// Fixed width keeps text ordering chronological.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ArchivedTask is a finished task as stored in the archive.
type ArchivedTask struct {
	ID        string         `json:"task_id"`
	Tag       string         `json:"tag"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Count     int            `json:"count"`
	StartedAt time.Time      `json:"start_time"`
	EndedAt   *time.Time     `json:"end_time"`
	Duration  float64        `json:"duration"`
	Records   []table.Record `json:"data,omitempty"`
}

type ArchiveRepository interface {
	SaveTask(ctx context.Context, snap tasks.Snapshot) error
	GetTask(ctx context.Context, id string) (*ArchivedTask, error)
	ListTasks(ctx context.Context, limit int) ([]ArchivedTask, error)
}

type archiveRepo struct {
	db  *DB
	log *slog.Logger
}

func NewArchiveRepository(db *DB, log *slog.Logger) ArchiveRepository {
	if log == nil {
		log = slog.Default()
	}
	return &archiveRepo{db: db, log: log}
}

var _ tasks.ResultSink = (*archiveRepo)(nil)

// SaveTask upserts the task row and replaces its records in one transaction.
func (r *archiveRepo) SaveTask(ctx context.Context, snap tasks.Snapshot) error {
	var records []table.Record
	if snap.Result != nil {
		records = snap.Result.Data
	}
	var ended any
	if !snap.Ended.IsZero() {
		ended = snap.Ended.UTC().Format(tsLayout)
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.rebind(`
		INSERT INTO extraction_tasks (id, tag, status, message, record_count, started_at, ended_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tag = excluded.tag,
			status = excluded.status,
			message = excluded.message,
			record_count = excluded.record_count,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			duration_seconds = excluded.duration_seconds`),
		snap.ID, snap.Tag, string(snap.Status), snap.Message, len(records),
		snap.Started.UTC().Format(tsLayout), ended, snap.Duration,
	)
	if err != nil {
		r.log.Error("archive save task failed", "task_id", snap.ID, "err", err)
		return fmt.Errorf("save task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM extraction_records WHERE task_id = ?`), snap.ID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, r.db.rebind(`
		INSERT INTO extraction_records (task_id, position, entity, property, value, entity_tag, value_tag, level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, snap.ID, i, rec.Entity, rec.Property, rec.Value, rec.EntityTag, rec.ValueTag, rec.Level); err != nil {
			r.log.Error("archive save record failed", "task_id", snap.ID, "position", i, "err", err)
			return fmt.Errorf("save record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Info("archived task", "task_id", snap.ID, "status", snap.Status, "records", len(records))
	return nil
}

// GetTask returns the archived task with its records, or an error wrapping common.ErrNotFound.
func (r *archiveRepo) GetTask(ctx context.Context, id string) (*ArchivedTask, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`
		SELECT id, tag, status, message, record_count, started_at, ended_at, duration_seconds
		FROM extraction_tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("ARCHIVE_NOT_FOUND", "task "+id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`
		SELECT entity, property, value, entity_tag, value_tag, level
		FROM extraction_records WHERE task_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	t.Records = make([]table.Record, 0, t.Count)
	for rows.Next() {
		var rec table.Record
		if err := rows.Scan(&rec.Entity, &rec.Property, &rec.Value, &rec.EntityTag, &rec.ValueTag, &rec.Level); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		t.Records = append(t.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return t, nil
}

// ListTasks returns the most recently started tasks first, without records.
func (r *archiveRepo) ListTasks(ctx context.Context, limit int) ([]ArchivedTask, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`
		SELECT id, tag, status, message, record_count, started_at, ended_at, duration_seconds
		FROM extraction_tasks ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]ArchivedTask, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*ArchivedTask, error) {
	var (
		t       ArchivedTask
		started string
		ended   sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Tag, &t.Status, &t.Message, &t.Count, &started, &ended, &t.Duration); err != nil {
		return nil, err
	}
	st, err := time.Parse(tsLayout, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	t.StartedAt = st
	if ended.Valid {
		et, err := time.Parse(tsLayout, ended.String)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		t.EndedAt = &et
	}
	return &t, nil
}
