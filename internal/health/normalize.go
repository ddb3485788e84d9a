package health

import (
	"strings"
	"time"
)

// extractor pulls one candidate field shape out of a vendor payload. Sources
// are inconsistent about field naming ("energy.inKilocalories" vs
// "energy.value" vs plain "value"), so every metric carries an ordered list
// of named extractors tried in sequence; the first match wins.
type extractor struct {
	name string
	fn   func(map[string]any) (float64, bool)
}

// path builds an extractor reading a dotted field path.
func path(p string) extractor {
	keys := strings.Split(p, ".")
	return extractor{
		name: p,
		fn: func(m map[string]any) (float64, bool) {
			cur := any(m)
			for _, k := range keys {
				obj, ok := cur.(map[string]any)
				if !ok {
					return 0, false
				}
				cur, ok = obj[k]
				if !ok {
					return 0, false
				}
			}
			return asFloat(cur)
		},
	}
}

// lastHeartRateSample reads the last entry of a "samples" array, the shape
// heart-rate aggregator records arrive in (one record, many samples; the most
// recent sample wins).
var lastHeartRateSample = extractor{
	name: "samples[last].beatsPerMinute",
	fn: func(m map[string]any) (float64, bool) {
		raw, ok := m["samples"].([]any)
		if !ok || len(raw) == 0 {
			return 0, false
		}
		sample, ok := raw[len(raw)-1].(map[string]any)
		if !ok {
			return 0, false
		}
		return asFloat(sample["beatsPerMinute"])
	},
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// scalarExtractors lists, per metric, every payload shape observed across the
// vendor apps mirrored by the aggregator. Order matters: the most specific
// shape comes first.
var scalarExtractors = map[Metric][]extractor{
	MetricActiveCalories: {
		path("energy.inKilocalories"), path("energy.value"), path("value"),
		path("energy"), path("kilocalories"), path("calories"),
	},
	MetricTotalCalories: {
		path("energy.inKilocalories"), path("energy.value"), path("value"),
		path("energy"), path("kilocalories"), path("calories"),
	},
	MetricDistance: {
		path("distance.inMeters"), path("distance.value"), path("value"), path("meters"),
	},
	MetricHeartRate: {
		lastHeartRateSample, path("beatsPerMinute"), path("value"), path("bpm"),
	},
	MetricSteps: {
		path("count"), path("value"), path("steps"),
	},
	MetricWeight: {
		path("weight.inKilograms"), path("weight.value"), path("value"), path("kilograms"),
	},
	MetricHeight: {
		path("height.inMeters"), path("height.value"), path("value"),
	},
	MetricBloodOxygen: {
		path("percentage.value"), path("percentage"), path("value"),
	},
	MetricTemperature: {
		path("temperature.inCelsius"), path("temperature.value"), path("value"),
	},
	MetricBodyFat: {
		path("percentage.value"), path("percentage"), path("value"),
	},
	MetricLeanMass: {
		path("mass.inKilograms"), path("mass.value"), path("value"),
	},
	MetricBoneMass: {
		path("mass.inKilograms"), path("mass.value"), path("value"),
	},
	MetricBodyWater: {
		path("mass.inKilograms"), path("mass.value"), path("value"),
	},
	MetricBasalMetabolicRate: {
		path("basalMetabolicRate.inKilocaloriesPerDay"), path("value"),
	},
	MetricBattery: {
		path("value"),
	},
}

var bloodPressureExtractors = struct {
	systolic, diastolic []extractor
}{
	systolic:  []extractor{path("systolic.inMillimetersOfMercury"), path("systolic.value"), path("systolic")},
	diastolic: []extractor{path("diastolic.inMillimetersOfMercury"), path("diastolic.value"), path("diastolic")},
}

func extractFirst(list []extractor, payload map[string]any) (float64, bool) {
	if payload == nil {
		return 0, false
	}
	for _, ex := range list {
		if v, ok := ex.fn(payload); ok {
			return v, true
		}
	}
	return 0, false
}

// Normalize converts one raw measurement into a persistable record tagged
// with userID. It returns false for measurements that cannot be trusted: a
// missing end time, an end time before the start time, or a payload where no
// known field shape matched.
func Normalize(userID string, raw RawMeasurement) (NormalizedRecord, bool) {
	if raw.EndTime.IsZero() {
		return NormalizedRecord{}, false
	}
	if !raw.StartTime.IsZero() && raw.EndTime.Before(raw.StartTime) {
		return NormalizedRecord{}, false
	}

	rec := NormalizedRecord{
		UserID:      userID,
		Metric:      raw.Metric,
		CollectedAt: raw.EndTime,
		Source:      raw.Source,
		SourceLabel: raw.SourceLabel,
	}

	switch raw.Metric {
	case MetricSleepSession:
		// Sleep is an interval; the canonical value is its duration in
		// hours. Out-of-range sessions are dropped later by the reducer,
		// not here, so malformed sessions remain observable in logs.
		if raw.StartTime.IsZero() {
			return NormalizedRecord{}, false
		}
		rec.Value = raw.EndTime.Sub(raw.StartTime).Hours()
		return rec, true

	case MetricBloodPressure:
		if raw.Systolic > 0 && raw.Diastolic > 0 {
			rec.Systolic, rec.Diastolic = raw.Systolic, raw.Diastolic
			return rec, true
		}
		sys, okS := extractFirst(bloodPressureExtractors.systolic, raw.Payload)
		dia, okD := extractFirst(bloodPressureExtractors.diastolic, raw.Payload)
		if !okS || !okD {
			return NormalizedRecord{}, false
		}
		rec.Systolic, rec.Diastolic = int(sys), int(dia)
		return rec, true

	default:
		if raw.HasValue {
			rec.Value = raw.Value
			return rec, true
		}
		v, ok := extractFirst(scalarExtractors[raw.Metric], raw.Payload)
		if !ok {
			return NormalizedRecord{}, false
		}
		rec.Value = v
		return rec, true
	}
}

// NormalizeAll maps Normalize over a batch, silently dropping invalid
// measurements.
func NormalizeAll(userID string, raws []RawMeasurement) []NormalizedRecord {
	out := make([]NormalizedRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := Normalize(userID, raw); ok {
			out = append(out, rec)
		}
	}
	return out
}

// DayWindow returns the [00:00, 24:00) bounds of the calendar day containing t.
func DayWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
