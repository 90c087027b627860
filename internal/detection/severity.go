package detection

import (
	"github.com/solarops/tamper-detection-worker/internal/db"
)

// severityBands maps confidence floors to severity tiers, checked in
// descending order. Boundary values belong to the higher tier.
var severityBands = []struct {
	min      float64
	severity db.TamperSeverity
}{
	{0.9, db.SeverityCritical},
	{0.7, db.SeverityHigh},
	{0.5, db.SeverityMedium},
}

// ClassifySeverity bands a confidence score into a severity tier.
func ClassifySeverity(confidence float64) db.TamperSeverity {
	for _, band := range severityBands {
		if confidence >= band.min {
			return band.severity
		}
	}
	return db.SeverityLow
}

// IsLikelyFalsePositive reports whether a confidence score falls below the
// deployment-wide cutoff and the event should be dropped without side
// effects.
func IsLikelyFalsePositive(confidence, cutoff float64) bool {
	return confidence < cutoff
}
