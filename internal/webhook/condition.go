// Package webhook evaluates user-defined weather conditions and delivers
// callback notifications with retry and failure suspension.
package webhook

import (
	"github.com/wxgate/weather-gateway/internal/model"
)

// FieldValue extracts the condition field from a snapshot.
func FieldValue(snap model.WeatherSnapshot, field model.ConditionField) (float64, bool) {
	switch field {
	case model.FieldTemperature:
		return snap.Temperature, true
	case model.FieldHumidity:
		return snap.Humidity, true
	case model.FieldWindSpeed:
		return snap.WindSpeed, true
	case model.FieldPrecipProb:
		return snap.PrecipProb, true
	default:
		return 0, false
	}
}

// Eval interprets a condition triple against a snapshot. Unknown fields or
// comparators evaluate false rather than erroring; they cannot be created
// through the registration surface but may survive in old rows.
func Eval(cond model.Condition, snap model.WeatherSnapshot) bool {
	v, ok := FieldValue(snap, cond.Field)
	if !ok {
		return false
	}
	switch cond.Comparator {
	case model.CmpGT:
		return v > cond.Threshold
	case model.CmpLT:
		return v < cond.Threshold
	case model.CmpGE:
		return v >= cond.Threshold
	case model.CmpLE:
		return v <= cond.Threshold
	case model.CmpEQ:
		return v == cond.Threshold
	default:
		return false
	}
}
