package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"insurance_backend/core"
)

// recordTables maps each document type to its collection table.
var recordTables = map[core.DocumentType]string{
	core.AccidentReport:        "accident_reports",
	core.DamageReport:          "damage_reports",
	core.ContractChange:        "contract_changes",
	core.MiscellaneousDocument: "miscellaneous_documents",
}

// RecordStore persists classified documents, one table per document
// type. Implements pipeline.RecordStore.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore wraps an open database connection.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Insert writes one document record into the table for its type. The
// extracted field map is stored as a JSON column.
func (s *RecordStore) Insert(ctx context.Context, r core.DocumentRecord) error {
	table, ok := recordTables[r.Type]
	if !ok {
		return fmt.Errorf("no record table for document type %q", r.Type)
	}

	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			process_id, file_name, mime_type, extracted_text,
			confidence, fields, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`, table)

	_, err = s.db.ExecContext(ctx, query,
		r.ProcessID,
		r.FileName,
		r.MimeType,
		r.ExtractedText,
		r.Confidence,
		string(fields),
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s record: %w", table, err)
	}
	return nil
}

// GetByProcessID reads one record of the given type by process id.
func (s *RecordStore) GetByProcessID(ctx context.Context, docType core.DocumentType, processID string) (*core.DocumentRecord, error) {
	table, ok := recordTables[docType]
	if !ok {
		return nil, fmt.Errorf("no record table for document type %q", docType)
	}

	query := fmt.Sprintf(`
		SELECT process_id, file_name, mime_type, extracted_text,
			confidence, fields, created_at
		FROM %s WHERE process_id = ?`, table)

	var r core.DocumentRecord
	var fields string
	err := s.db.QueryRowContext(ctx, query, processID).Scan(
		&r.ProcessID,
		&r.FileName,
		&r.MimeType,
		&r.ExtractedText,
		&r.Confidence,
		&fields,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("read %s record: %w", table, err)
	}

	r.Type = docType
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return nil, fmt.Errorf("decode record fields: %w", err)
	}
	return &r, nil
}

// documentTypeFromString maps a stored string back to the enum, with
// miscellaneous as the safe fallback for unknown values.
func documentTypeFromString(s string) core.DocumentType {
	t := core.DocumentType(s)
	if t.IsValid() {
		return t
	}
	if s == "" {
		return ""
	}
	return core.MiscellaneousDocument
}
