package ai

import "context"

// Digest is what the explainer gets to see of one analysis. Raw rows never
// leave the service.
type Digest struct {
	FileName  string
	Total     int
	Anomalies int
	Features  []string
	// Reasons are the distinct anomaly reasons, most frequent first.
	Reasons []string
}

// Explainer turns a digest into a short natural-language insight.
type Explainer interface {
	Explain(ctx context.Context, d Digest) (string, error)
}
