package analysis

import (
	"path"
	"strings"
	"time"
)

// DateLayout is the accepted format of history date filters.
const DateLayout = "02-01-2006"

// HistoryQuery filters a user's history. Nil bounds are open; Start is
// inclusive and End exclusive. FileName matches case-insensitively as a
// substring.
type HistoryQuery struct {
	UserID   string
	Start    *time.Time
	End      *time.Time
	FileName string
}

// ParseDateRange turns optional DD-MM-YYYY strings into query bounds at UTC
// midnight. The end bound moves to the following midnight so the named day
// is included in full.
func ParseDateRange(start, end string) (from, to *time.Time, err error) {
	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, time.UTC)
		if err != nil {
			return nil, nil, &ValidationError{Msg: "Dates must be DD-MM-YYYY"}
		}
		from = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, time.UTC)
		if err != nil {
			return nil, nil, &ValidationError{Msg: "Dates must be DD-MM-YYYY"}
		}
		t = t.AddDate(0, 0, 1)
		to = &t
	}
	return from, to, nil
}

// StorageKey is where the anomaly CSV of a user's file lives.
func StorageKey(userID, fileName string) string {
	return userID + "/" + fileName
}

// ValidateFileName rejects names that cannot be used as a storage key
// component.
func ValidateFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Msg: "file name is required"}
	case len(name) > 255:
		return &ValidationError{Msg: "file name too long"}
	case strings.ContainsAny(name, "/\\\x00"), name == ".", name == "..", path.Clean(name) != name:
		return &ValidationError{Msg: "invalid file name"}
	}
	return nil
}
