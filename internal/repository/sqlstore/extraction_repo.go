package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docfields/internal/domain"
	"docfields/internal/port"
)

type extractionRepo struct {
	db *sqlx.DB
}

// NewExtractionRepo creates a SQL-backed ExtractionRepository.
func NewExtractionRepo(db *sqlx.DB) port.ExtractionRepository {
	return &extractionRepo{db: db}
}

func (r *extractionRepo) Create(ctx context.Context, rec *domain.ExtractionRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO extractions (
		id, filename, profile, raw_text, fields, failures, validation,
		threshold, overall_confidence, low_confidence_count, corrected,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.Profile, rec.RawText, jsonOr(rec.Fields, "[]"), jsonOr(rec.Failures, "{}"), jsonOr(rec.Validation, "null"),
		rec.Threshold, rec.OverallConfidence, rec.LowConfidence, rec.Corrected,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("extractionRepo.Create: %w", err)
	}
	return nil
}

func (r *extractionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionRecord, error) {
	var rec domain.ExtractionRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind("SELECT * FROM extractions WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExtractionNotFound
		}
		return nil, fmt.Errorf("extractionRepo.GetByID: %w", err)
	}
	return &rec, nil
}

func (r *extractionRepo) List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM extractions"); err != nil {
		return nil, 0, fmt.Errorf("extractionRepo.List count: %w", err)
	}

	recs := make([]domain.ExtractionRecord, 0)
	err := r.db.SelectContext(ctx, &recs,
		r.db.Rebind(`SELECT * FROM extractions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("extractionRepo.List: %w", err)
	}
	return recs, total, nil
}

func (r *extractionRepo) UpdateFields(ctx context.Context, rec *domain.ExtractionRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE extractions SET
		fields = ?, failures = ?, validation = ?, threshold = ?,
		overall_confidence = ?, low_confidence_count = ?, corrected = ?, updated_at = ?
		WHERE id = ?`),
		jsonOr(rec.Fields, "[]"), jsonOr(rec.Failures, "{}"), jsonOr(rec.Validation, "null"), rec.Threshold,
		rec.OverallConfidence, rec.LowConfidence, rec.Corrected, rec.UpdatedAt,
		rec.ID)
	if err != nil {
		return fmt.Errorf("extractionRepo.UpdateFields: %w", err)
	}
	return requireRow(result)
}

func (r *extractionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM extractions WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("extractionRepo.Delete: %w", err)
	}
	return requireRow(result)
}

func (r *extractionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrExtractionNotFound
	}
	return nil
}

// jsonOr keeps JSON columns non-null so they scan into json.RawMessage.
func jsonOr(b json.RawMessage, def string) []byte {
	if len(b) == 0 {
		return []byte(def)
	}
	return b
}
