package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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
  id            TEXT        PRIMARY KEY,
  user_id       TEXT        NOT NULL,
  file_name     TEXT        NOT NULL,
  file_id       TEXT        NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL,
  total_records INTEGER     NOT NULL,
  anomaly_count INTEGER     NOT NULL
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
VALUES ($1,$2,$3,$4,$5,$6,$7);
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.FileName, rec.FileID, rec.Timestamp.UTC(), rec.TotalRecords, rec.AnomalyCount)
	return err
}

// List returns the user's records newest first
func (r *HistoryRepository) List(ctx context.Context, hq domain.HistoryQuery) ([]*domain.Record, error) {
	q, args := listQuery(hq)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.FileID, &rec.Timestamp, &rec.TotalRecords, &rec.AnomalyCount); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// FindByFile returns the newest record of the user for fileName
func (r *HistoryRepository) FindByFile(ctx context.Context, userID, fileName string) (*domain.Record, error) {
	const q = `
SELECT id, user_id, file_name, file_id, created_at, total_records, anomaly_count
FROM analysis_results
WHERE user_id=$1 AND file_name=$2
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var rec domain.Record
	err := r.db.QueryRowContext(ctx, q, userID, fileName).
		Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.FileID, &rec.Timestamp, &rec.TotalRecords, &rec.AnomalyCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

// listQuery builds the filtered SELECT for List.
func listQuery(hq domain.HistoryQuery) (string, []any) {
	where := []string{"user_id=$1"}
	args := []any{hq.UserID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if hq.Start != nil {
		add("created_at >= $%d", hq.Start.UTC())
	}
	if hq.End != nil {
		add("created_at < $%d", hq.End.UTC())
	}
	if hq.FileName != "" {
		add("file_name ILIKE $%d ESCAPE '!'", likeContains(hq.FileName))
	}

	q := `
SELECT id, user_id, file_name, file_id, created_at, total_records, anomaly_count
FROM analysis_results
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC, id DESC;
`
	return q, args
}
