package analysis

import (
	"time"
)

// Column names appended to every annotated row.
const (
	ColumnAnomaly       = "anomaly"
	ColumnAnomalyReason = "anomaly_reason"
)

// TimestampLayout is how history timestamps are rendered to clients.
const TimestampLayout = "02/01/2006, 15:04:05"

// Summary value object
type Summary struct {
	Total     int `json:"total"`
	Anomalies int `json:"anomalies"`
	Normal    int `json:"normal"`
}

// Prediction is the detector output for one row.
type Prediction struct {
	Label  int
	Reason string
}

// Result of one /analyze call
type Result struct {
	Summary Summary   `json:"summary"`
	Rows    ResultSet `json:"rows"`
	FileID  string    `json:"file_id"`
	Insight string    `json:"insight,omitempty"`

	// Anomalies is the label=1 subset kept for download.
	Anomalies ResultSet `json:"-"`
}

// Record is the persisted summary of one analysis.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FileName     string    `json:"file_name"`
	FileID       string    `json:"file_id"`
	Timestamp    time.Time `json:"timestamp"`
	TotalRecords int       `json:"total_records"`
	AnomalyCount int       `json:"anomaly_count"`
}
