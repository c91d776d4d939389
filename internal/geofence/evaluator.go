// Package geofence evaluates tracker fixes against the owner's home safe
// zone and decides when to alert. The state machine is deliberately small:
// inside, outside, unknown (no home configured). An SMS fires only on the
// transition INTO outside, so a pet sitting beyond the fence does not spam
// its owner on every fix.
package geofence

import (
	"fmt"

	"pawtrack/internal/types"
)

// Evaluation is the outcome of scoring one tracker fix.
type Evaluation struct {
	State          types.GeofenceState `json:"state"`
	DistanceMeters float64             `json:"distance_meters"`
	// Alert is set when the fix crossed into outside from any other state.
	Alert bool `json:"alert"`
}

// Evaluator scores fixes against a circular safe zone.
type Evaluator struct {
	radiusMeters float64
}

// NewEvaluator creates an Evaluator with the given safe-zone radius.
func NewEvaluator(radiusMeters float64) *Evaluator {
	return &Evaluator{radiusMeters: radiusMeters}
}

// Evaluate scores a fix. A nil home coordinate yields unknown and never
// alerts; the fence cannot be judged without a center.
func (e *Evaluator) Evaluate(prev types.GeofenceState, homeLat, homeLng *float64, lat, lng float64) Evaluation {
	if homeLat == nil || homeLng == nil {
		return Evaluation{State: types.GeofenceUnknown}
	}

	dist := DistanceMeters(*homeLat, *homeLng, lat, lng)
	if dist <= e.radiusMeters {
		return Evaluation{State: types.GeofenceInside, DistanceMeters: dist}
	}

	return Evaluation{
		State:          types.GeofenceOutside,
		DistanceMeters: dist,
		Alert:          prev != types.GeofenceOutside,
	}
}

// AlertMessage renders the SMS body for an exit alert.
func AlertMessage(petName string, distanceMeters float64) string {
	return fmt.Sprintf("%s has left the safe zone (%.0f m from home)", petName, distanceMeters)
}
