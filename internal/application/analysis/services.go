package analysis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/pattern-analyzer/internal/application"
	appai "github.com/bryanwahyu/pattern-analyzer/internal/application/ai"
	domain "github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
	"github.com/bryanwahyu/pattern-analyzer/internal/metrics"
)

const csvContentType = "text/csv"

// Service implements the upload-to-result use cases.
// Safe for concurrent use as long as its ports are.
type Service struct {
	Detector domain.Detector
	Cache    domain.ResultCache
	Repo     domain.HistoryRepository
	Files    domain.ResultFileStore
	// Insights is optional; nil disables the insight field.
	Insights *appai.Service
	Clock    application.Clock
	// NewID defaults to uuid.NewString.
	NewID func() string
}

//
// ==== USE CASES ====
//

// AnalyzeCommand is one uploaded file.
type AnalyzeCommand struct {
	UserID   string
	FileName string
	Data     []byte
}

// Analyze parses, scores and records an upload.
//
// The cache, the durable anomaly CSV and the history row are written one
// after another without a transaction; a later failure leaves the earlier
// writes in place.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.Result, error) {
	start := time.Now()
	log := logging.Ctx(ctx).With().Str("file_name", cmd.FileName).Logger()

	if err := domain.ValidateFileName(cmd.FileName); err != nil {
		metrics.AnalysesTotal.WithLabelValues("parse_error").Inc()
		return nil, err
	}

	ds, err := dataset.Parse(cmd.FileName, cmd.Data)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("parse_error").Inc()
		log.Warn().Err(err).Msg("failed to parse upload")
		return nil, &domain.ValidationError{Msg: "Failed to parse file", Err: err}
	}

	m := dataset.Preprocess(ds)
	preds, err := s.Detector.Detect(ctx, domain.DetectRequest{Data: m, UserID: cmd.UserID, FileName: cmd.FileName})
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}
	if len(preds) != ds.Rows {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("detector returned %d predictions for %d rows", len(preds), ds.Rows)
	}

	res := domain.Assemble(ds, preds, s.newID())
	if res.Summary.Anomalies > 0 {
		res.Insight = s.Insights.Insight(ctx, cmd.FileName, m.Columns, res)
	}

	s.Cache.Put(res.FileID, res.Anomalies)

	body, err := domain.EncodeCSV(res.Anomalies)
	if err != nil {
		return nil, fmt.Errorf("encode anomalies: %w", err)
	}
	if err := s.Files.Put(ctx, domain.StorageKey(cmd.UserID, cmd.FileName), body, csvContentType); err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store anomalies: %w", err)
	}

	rec := &domain.Record{
		ID:           s.newID(),
		UserID:       cmd.UserID,
		FileName:     cmd.FileName,
		FileID:       res.FileID,
		Timestamp:    s.Clock.Now().UTC(),
		TotalRecords: res.Summary.Total,
		AnomalyCount: res.Summary.Anomalies,
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save history: %w", err)
	}

	metrics.RecordAnalysis(res.Summary.Total, res.Summary.Anomalies, time.Since(start))
	log.Info().
		Str("file_id", res.FileID).
		Int("rows", res.Summary.Total).
		Int("anomalies", res.Summary.Anomalies).
		Int("features", len(m.Columns)).
		Msg("analysis complete")
	return res, nil
}

// File is a CSV attachment ready to send.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Download renders the cached anomaly rows of fileID as CSV.
func (s *Service) Download(ctx context.Context, fileID string) (*File, error) {
	rows, ok := s.Cache.Get(fileID)
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	body, err := domain.EncodeCSV(rows)
	if err != nil {
		return nil, fmt.Errorf("encode anomalies: %w", err)
	}
	return &File{
		Name:        fmt.Sprintf("anomalies_%s.csv", fileID),
		ContentType: csvContentType,
		Body:        body,
	}, nil
}

// Stream is a stored attachment. The caller closes Body.
type Stream struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}

// DownloadHistorical opens the stored anomaly CSV of a past analysis.
// It returns ErrRecordNotFound when the user never analysed fileName and
// ErrFileMissing when the record exists but the file is gone.
func (s *Service) DownloadHistorical(ctx context.Context, userID, fileName string) (*Stream, error) {
	if err := domain.ValidateFileName(fileName); err != nil {
		return nil, err
	}
	if _, err := s.Repo.FindByFile(ctx, userID, fileName); err != nil {
		return nil, err
	}
	body, err := s.Files.Open(ctx, domain.StorageKey(userID, fileName))
	if err != nil {
		return nil, err
	}
	return &Stream{Name: fileName, ContentType: csvContentType, Body: body}, nil
}

// HistoryCommand carries the raw query string filters.
type HistoryCommand struct {
	UserID    string
	StartDate string
	EndDate   string
	FileName  string
}

// HistoryItem is one history entry as returned to clients.
type HistoryItem struct {
	FileName     string `json:"file_name"`
	Timestamp    string `json:"timestamp"`
	TotalRecords int    `json:"total_records"`
	AnomalyCount int    `json:"anomaly_count"`
}

// History lists a user's analyses, newest first.
func (s *Service) History(ctx context.Context, cmd HistoryCommand) ([]HistoryItem, error) {
	from, to, err := domain.ParseDateRange(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}
	recs, err := s.Repo.List(ctx, domain.HistoryQuery{
		UserID:   cmd.UserID,
		Start:    from,
		End:      to,
		FileName: cmd.FileName,
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	items := make([]HistoryItem, len(recs))
	for i, r := range recs {
		items[i] = HistoryItem{
			FileName:     r.FileName,
			Timestamp:    r.Timestamp.UTC().Format(domain.TimestampLayout),
			TotalRecords: r.TotalRecords,
			AnomalyCount: r.AnomalyCount,
		}
	}
	return items, nil
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
