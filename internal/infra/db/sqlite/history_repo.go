package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domain "github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Migrate creates the history table if it is missing.
func (r *HistoryRepository) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS analysis_results (
  id            TEXT    PRIMARY KEY,
  user_id       TEXT    NOT NULL,
  file_name     TEXT    NOT NULL,
  file_id       TEXT    NOT NULL,
  created_at    INTEGER NOT NULL,
  total_records INTEGER NOT NULL,
  anomaly_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_user_created
  ON analysis_results (user_id, created_at DESC);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save inserts one analysis record
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO analysis_results
  (id, user_id, file_name, file_id, created_at, total_records, anomaly_count)
VALUES (?,?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.FileName, rec.FileID, toMicros(rec.Timestamp), rec.TotalRecords, rec.AnomalyCount)
	return err
}

// List returns the user's records newest first
func (r *HistoryRepository) List(ctx context.Context, hq domain.HistoryQuery) ([]*domain.Record, error) {
	where := []string{"user_id=?"}
	args := []any{hq.UserID}
	if hq.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toMicros(*hq.Start))
	}
	if hq.End != nil {
		where = append(where, "created_at < ?")
		args = append(args, toMicros(*hq.End))
	}
	if hq.FileName != "" {
		where = append(where, "LOWER(file_name) LIKE ? ESCAPE '!'")
		args = append(args, likeContains(hq.FileName))
	}

	q := `
SELECT id, user_id, file_name, file_id, created_at, total_records, anomaly_count
FROM analysis_results
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindByFile returns the newest record of the user for fileName
func (r *HistoryRepository) FindByFile(ctx context.Context, userID, fileName string) (*domain.Record, error) {
	const q = `
SELECT id, user_id, file_name, file_id, created_at, total_records, anomaly_count
FROM analysis_results
WHERE user_id=? AND file_name=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, userID, fileName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var rec domain.Record
	var created int64
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.FileID, &created, &rec.TotalRecords, &rec.AnomalyCount); err != nil {
		return nil, err
	}
	rec.Timestamp = fromMicros(created)
	return &rec, nil
}
