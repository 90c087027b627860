package detection_test

import (
	"testing"

	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/detection"
)

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		confidence float64
		expected   db.TamperSeverity
	}{
		{0.0, db.SeverityLow},
		{0.49, db.SeverityLow},
		{0.5, db.SeverityMedium},
		{0.69, db.SeverityMedium},
		{0.7, db.SeverityHigh},
		{0.89, db.SeverityHigh},
		{0.9, db.SeverityCritical},
		{1.0, db.SeverityCritical},
	}

	for _, c := range cases {
		if got := detection.ClassifySeverity(c.confidence); got != c.expected {
			t.Errorf("ClassifySeverity(%f): expected %s, got %s", c.confidence, c.expected, got)
		}
	}
}

func TestIsLikelyFalsePositive(t *testing.T) {
	if !detection.IsLikelyFalsePositive(0.29, 0.3) {
		t.Error("Expected 0.29 to fall below cutoff 0.3")
	}
	if detection.IsLikelyFalsePositive(0.3, 0.3) {
		t.Error("Expected confidence equal to the cutoff to be kept")
	}
	if detection.IsLikelyFalsePositive(0.95, 0.3) {
		t.Error("Expected 0.95 to be kept")
	}
}
