package analysis

import (
	"context"
	"io"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
)

// DetectRequest carries the preprocessed features plus identifying metadata.
type DetectRequest struct {
	Data     *dataset.Matrix
	UserID   string
	FileName string
}

// Detector port (anomaly model). It returns one prediction per row.
type Detector interface {
	Detect(ctx context.Context, req DetectRequest) ([]Prediction, error)
}

// ResultCache port for the short-lived anomaly subsets keyed by file id.
type ResultCache interface {
	Put(id string, rows ResultSet)
	Get(id string) (ResultSet, bool)
}

// HistoryRepository port (persistence of analysis records)
type HistoryRepository interface {
	Save(ctx context.Context, r *Record) error
	List(ctx context.Context, q HistoryQuery) ([]*Record, error)
	// FindByFile returns the newest record or ErrRecordNotFound.
	FindByFile(ctx context.Context, userID, fileName string) (*Record, error)
}

// ResultFileStore port for the durable anomaly CSV of each analysis.
type ResultFileStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Open returns ErrFileMissing when nothing is stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
