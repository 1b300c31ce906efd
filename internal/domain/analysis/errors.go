package analysis

import "errors"

var (
	// ErrResultNotFound: no cached result for the file id.
	ErrResultNotFound = errors.New("file id not found")
	// ErrRecordNotFound: no history record for the user and file name.
	ErrRecordNotFound = errors.New("result not found for user")
	// ErrFileMissing: history record exists but its CSV is gone from storage.
	ErrFileMissing = errors.New("csv not found on server")
)

// ValidationError marks bad client input. Msg is safe to show to clients.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
