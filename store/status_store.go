package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"insurance_backend/pipeline"
)

// StatusStore persists job progress in the processing_status table.
// Implements pipeline.StatusStore.
type StatusStore struct {
	db *sql.DB
}

// NewStatusStore wraps an open database connection.
func NewStatusStore(db *sql.DB) *StatusStore {
	return &StatusStore{db: db}
}

// Upsert writes the progress snapshot, keyed by process id. Repeated
// writes for the same id overwrite the previous state, so emission is
// idempotent per snapshot.
func (s *StatusStore) Upsert(ctx context.Context, p pipeline.ProcessingProgress) error {
	var errorDetail sql.NullString
	if p.Error != nil {
		encoded, err := json.Marshal(p.Error)
		if err != nil {
			return fmt.Errorf("encode error detail: %w", err)
		}
		errorDetail = sql.NullString{String: string(encoded), Valid: true}
	}

	var completedAt sql.NullTime
	if p.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *p.CompletedAt, Valid: true}
	}

	query := `
		INSERT INTO processing_status (
			process_id, status, current_step, progress, message,
			document_type, retry_count, error_detail,
			started_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO UPDATE SET
			status = excluded.status,
			current_step = excluded.current_step,
			progress = excluded.progress,
			message = excluded.message,
			document_type = excluded.document_type,
			retry_count = excluded.retry_count,
			error_detail = excluded.error_detail,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`

	_, err := s.db.ExecContext(ctx, query,
		p.ProcessID,
		p.Status,
		p.CurrentStep,
		p.Progress,
		p.Message,
		string(p.DocumentType),
		p.RetryCount,
		errorDetail,
		p.StartedAt,
		p.UpdatedAt,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert processing status: %w", err)
	}
	return nil
}

// Get reads one progress record by process id.
func (s *StatusStore) Get(ctx context.Context, processID string) (*pipeline.ProcessingProgress, error) {
	query := `
		SELECT process_id, status, current_step, progress, message,
			document_type, retry_count, error_detail,
			started_at, updated_at, completed_at
		FROM processing_status WHERE process_id = ?`

	var p pipeline.ProcessingProgress
	var docType string
	var errorDetail sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, processID).Scan(
		&p.ProcessID,
		&p.Status,
		&p.CurrentStep,
		&p.Progress,
		&p.Message,
		&docType,
		&p.RetryCount,
		&errorDetail,
		&p.StartedAt,
		&p.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("read processing status: %w", err)
	}

	p.DocumentType = documentTypeFromString(docType)
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if errorDetail.Valid {
		var detail pipeline.ErrorDetail
		if err := json.Unmarshal([]byte(errorDetail.String), &detail); err != nil {
			return nil, fmt.Errorf("decode error detail: %w", err)
		}
		p.Error = &detail
	}
	return &p, nil
}
