package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/ai"
)

const maxReasons = 10

// GetSystemPrompt provides the directions for the insight paragraph.
func GetSystemPrompt() string {
	return `You are a network traffic analyst. You receive the summary of an anomaly detection run over a tabular file.

Requirements:
- Answer with one short paragraph of plain text (no markdown, no lists, no code fences).
- At most 80 words.
- Mention which features drive the anomalies when the reasons name them.
- Suggest one concrete next step for the operator.
- Never invent numbers that are not in the summary.`
}

// GetUserPrompt renders the digest as the user message.
func GetUserPrompt(d ai.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", d.FileName)
	fmt.Fprintf(&b, "Rows: %d, anomalies: %d (%s)\n", d.Total, d.Anomalies, percent(d.Anomalies, d.Total))
	if len(d.Features) > 0 {
		fmt.Fprintf(&b, "Numeric features: %s\n", strings.Join(d.Features, ", "))
	}
	if len(d.Reasons) > 0 {
		b.WriteString("Anomaly reasons (most frequent first):\n")
		for i, r := range d.Reasons {
			if i == maxReasons {
				fmt.Fprintf(&b, "- ... %d more\n", len(d.Reasons)-maxReasons)
				break
			}
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

func percent(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
