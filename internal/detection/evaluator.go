package detection

import (
	"fmt"
	"math"

	"github.com/solarops/tamper-detection-worker/internal/db"
)

// Reading is a single raw sensor observation for an installation.
type Reading struct {
	EventType db.TamperEventType
	Value     float64
	Connected bool
	Location  string
	RawData   string
}

// LastValues holds the most recent observed sensor values for an
// installation. The zero-equivalent defaults are movement 0, voltage 0,
// connected true and an empty location.
type LastValues struct {
	Movement  float64
	Voltage   float64
	Connected bool
	Location  string
}

// DefaultLastValues returns the comparison baseline used before any reading
// has been observed for an installation.
func DefaultLastValues() LastValues {
	return LastValues{Connected: true}
}

// Evaluation is the outcome of comparing a reading against the last known
// values and the configured threshold.
type Evaluation struct {
	Triggered  bool
	Confidence float64
	Description string
}

type evalFunc func(r Reading, last LastValues, threshold float64) Evaluation

// evaluators maps each sensor-backed event type to its evaluation rule. Event
// types without an entry carry no sensor comparison and cannot be evaluated
// from a raw reading.
var evaluators = map[db.TamperEventType]evalFunc{
	db.EventPhysicalMovement:    evaluateMovement,
	db.EventVoltageFluctuation:  evaluateVoltage,
	db.EventConnectionTampering: evaluateConnection,
	db.EventLocationChange:      evaluateLocation,
}

// Supported reports whether eventType has an evaluation rule.
func Supported(eventType db.TamperEventType) bool {
	_, ok := evaluators[eventType]
	return ok
}

// Evaluate runs the rule for the reading's event type. The second return
// value is false when the event type has no rule.
func Evaluate(r Reading, last LastValues, threshold float64) (Evaluation, bool) {
	eval, ok := evaluators[r.EventType]
	if !ok {
		return Evaluation{}, false
	}
	return eval(r, last, threshold), true
}

// Apply returns last updated with the observation from r. The cache is
// always advanced, whether or not the reading triggered.
func Apply(r Reading, last LastValues) LastValues {
	switch r.EventType {
	case db.EventPhysicalMovement:
		last.Movement = r.Value
	case db.EventVoltageFluctuation:
		last.Voltage = r.Value
	case db.EventConnectionTampering:
		last.Connected = r.Connected
	case db.EventLocationChange:
		last.Location = r.Location
	}
	return last
}

func evaluateMovement(r Reading, last LastValues, threshold float64) Evaluation {
	if r.Value <= threshold {
		return Evaluation{}
	}
	return Evaluation{
		Triggered:  true,
		Confidence: math.Min(1.0, r.Value/(threshold*2)),
		Description: fmt.Sprintf("Physical movement detected: %.2f (threshold: %.2f, previous: %.2f)",
			r.Value, threshold, last.Movement),
	}
}

func evaluateVoltage(r Reading, last LastValues, threshold float64) Evaluation {
	fluctuation := math.Abs(r.Value - last.Voltage)
	if fluctuation <= threshold {
		return Evaluation{}
	}
	return Evaluation{
		Triggered:  true,
		Confidence: math.Min(1.0, fluctuation/(threshold*2)),
		Description: fmt.Sprintf("Voltage fluctuation detected: %.2f (threshold: %.2f, current: %.2f, previous: %.2f)",
			fluctuation, threshold, r.Value, last.Voltage),
	}
}

// Connection tampering is edge-triggered: only the connected->disconnected
// transition fires, a reading that stays disconnected does not.
func evaluateConnection(r Reading, last LastValues, _ float64) Evaluation {
	if !last.Connected || r.Connected {
		return Evaluation{}
	}
	return Evaluation{
		Triggered:   true,
		Confidence:  0.9,
		Description: "Connection interruption detected: Device was connected and is now disconnected",
	}
}

// Location change fires only against a known previous location, so the first
// reported location never triggers.
func evaluateLocation(r Reading, last LastValues, _ float64) Evaluation {
	if last.Location == "" || last.Location == r.Location {
		return Evaluation{}
	}
	return Evaluation{
		Triggered:   true,
		Confidence:  0.95,
		Description: fmt.Sprintf("Location change detected: from %s to %s", last.Location, r.Location),
	}
}
