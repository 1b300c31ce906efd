package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/ai"
)

func TestGetUserPrompt(t *testing.T) {
	p := GetUserPrompt(ai.Digest{
		FileName:  "traffic.csv",
		Total:     200,
		Anomalies: 5,
		Features:  []string{"Port", "Bytes"},
		Reasons:   []string{"High Bytes (z=4.10)"},
	})

	assert.Contains(t, p, "File: traffic.csv")
	assert.Contains(t, p, "Rows: 200, anomalies: 5 (2.5%)")
	assert.Contains(t, p, "Numeric features: Port, Bytes")
	assert.Contains(t, p, "- High Bytes (z=4.10)")
}

func TestGetUserPrompt_CapsReasons(t *testing.T) {
	var reasons []string
	for i := 0; i < 15; i++ {
		reasons = append(reasons, fmt.Sprintf("reason %d", i))
	}
	p := GetUserPrompt(ai.Digest{FileName: "f", Total: 15, Anomalies: 15, Reasons: reasons})

	assert.Equal(t, maxReasons, strings.Count(p, "- reason "))
	assert.Contains(t, p, "- ... 5 more")
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		in   ai.Digest
		want string
	}{
		{
			name: "no anomalies",
			in:   ai.Digest{FileName: "a.csv", Total: 10},
			want: "No anomalies were flagged in a.csv across 10 rows.",
		},
		{
			name: "ranked features",
			in: ai.Digest{FileName: "a.csv", Total: 10, Anomalies: 2, Reasons: []string{
				"High Bytes (z=4.00); Low Packets (z=-3.10)",
				"High Bytes (z=3.50)",
			}},
			want: "2 of 10 rows in a.csv (20.0%) were flagged as anomalous. Most deviations involve Bytes, Packets. Review the downloaded anomaly rows first.",
		},
		{
			name: "score only reasons",
			in: ai.Digest{FileName: "a.csv", Total: 4, Anomalies: 1, Reasons: []string{
				"Isolation score 0.71 above threshold 0.62",
			}},
			want: "1 of 4 rows in a.csv (25.0%) were flagged as anomalous. Review the downloaded anomaly rows first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fallback(tt.in))
		})
	}
}
