package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/ai"
)

// featureRe pulls feature names out of reasons like "High Bytes (z=4.21)".
var featureRe = regexp.MustCompile(`(?:High|Low) (.+?) \(z=`)

// Fallback builds an insight locally from the digest. It is used when the
// provider cannot be reached, so the text stays deterministic.
func Fallback(d ai.Digest) string {
	if d.Anomalies == 0 {
		return fmt.Sprintf("No anomalies were flagged in %s across %d rows.", d.FileName, d.Total)
	}

	counts := map[string]int{}
	for _, r := range d.Reasons {
		for _, m := range featureRe.FindAllStringSubmatch(r, -1) {
			counts[m[1]]++
		}
	}
	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool {
		if counts[features[i]] != counts[features[j]] {
			return counts[features[i]] > counts[features[j]]
		}
		return features[i] < features[j]
	})
	if len(features) > 3 {
		features = features[:3]
	}

	msg := fmt.Sprintf("%d of %d rows in %s (%s) were flagged as anomalous.",
		d.Anomalies, d.Total, d.FileName, percent(d.Anomalies, d.Total))
	if len(features) > 0 {
		msg += fmt.Sprintf(" Most deviations involve %s.", strings.Join(features, ", "))
	}
	return msg + " Review the downloaded anomaly rows first."
}
