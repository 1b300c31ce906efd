package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
)

// whereClause returns the text between WHERE and ORDER BY, whitespace collapsed.
func whereClause(q string) string {
	start := strings.Index(q, "WHERE ") + len("WHERE ")
	end := strings.Index(q, "ORDER BY")
	return strings.Join(strings.Fields(q[start:end]), " ")
}

func TestListQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     domain.HistoryQuery
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "user only",
			query:     domain.HistoryQuery{UserID: "u1"},
			wantWhere: "user_id=$1",
			wantArgs:  []any{"u1"},
		},
		{
			name:      "all filters",
			query:     domain.HistoryQuery{UserID: "u1", Start: &start, End: &end, FileName: "Net_50%"},
			wantWhere: "user_id=$1 AND created_at >= $2 AND created_at < $3 AND file_name ILIKE $4 ESCAPE '!'",
			wantArgs:  []any{"u1", start, end, "%Net!_50!%%"},
		},
		{
			name:      "end and filename without start",
			query:     domain.HistoryQuery{UserID: "u1", End: &end, FileName: "a!b"},
			wantWhere: "user_id=$1 AND created_at < $2 AND file_name ILIKE $3 ESCAPE '!'",
			wantArgs:  []any{"u1", end, "%a!!b%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery(tt.query)
			assert.Equal(t, tt.wantWhere, whereClause(q))
			assert.Equal(t, tt.wantArgs, args)
			assert.Contains(t, q, "ORDER BY created_at DESC, id DESC")
		})
	}
}
