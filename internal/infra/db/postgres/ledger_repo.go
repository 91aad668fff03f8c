package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	domain "github.com/phishguard/phishguard/internal/domain/scans"
)

type LedgerRepository struct{ db *sql.DB }

func NewLedgerRepository(db *sql.DB) *LedgerRepository { return &LedgerRepository{db: db} }

const recordColumns = "id, owner_id, url, prediction, confidence, checked_at"

// Insert appends one ScanRecord.
func (r *LedgerRepository) Insert(ctx context.Context, rec *domain.ScanRecord) error {
	const q = `
INSERT INTO scan_records (id, owner_id, url, prediction, confidence, checked_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.OwnerID, rec.URL, rec.Prediction, rec.Confidence, rec.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return nil
}

// Recent returns the newest records for one owner.
func (r *LedgerRepository) Recent(ctx context.Context, owner string, limit int) ([]*domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `
SELECT ` + recordColumns + `
FROM scan_records
WHERE owner_id=$1 ORDER BY checked_at DESC, seq DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Page with offset + limit (classic pagination)
func (r *LedgerRepository) Page(ctx context.Context, owner string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := `
SELECT ` + recordColumns + `
FROM scan_records
WHERE owner_id=$1 ORDER BY checked_at DESC, seq DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, owner, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("%w: querying records: %v", domain.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()

	recs, err := collectRecords(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	total, err := r.CountAll(ctx, owner)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	return domain.PaginatedResult{
		Data:       recs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *LedgerRepository) CountAll(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE owner_id=$1;`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return n, nil
}

func (r *LedgerRepository) CountByPrediction(ctx context.Context, owner string, p domain.Prediction) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE owner_id=$1 AND prediction=$2;`, owner, p).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return n, nil
}

// DeleteOne removes a record only when owner matches.
func (r *LedgerRepository) DeleteOne(ctx context.Context, owner string, id domain.RecordID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM scan_records WHERE owner_id=$1 AND id=$2;`, owner, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}
	return n > 0, nil
}

func collectRecords(rows *sql.Rows) ([]*domain.ScanRecord, error) {
	var out []*domain.ScanRecord
	for rows.Next() {
		var rec domain.ScanRecord
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.URL, &rec.Prediction, &rec.Confidence, &rec.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", domain.ErrPersistenceUnavailable, err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", domain.ErrPersistenceUnavailable, err)
	}
	return out, nil
}
