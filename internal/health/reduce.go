package health

import (
	"math"
	"time"
)

const (
	// stepsCumulativeFloor separates "cumulative for the day" step records
	// from "delta per interval" ones. Sources report either style with no
	// discriminating field: when the largest record is at least this many
	// steps it is treated as the day total, otherwise all records are summed.
	stepsCumulativeFloor = 100

	// maxSleepSessionHours bounds a plausible single sleep session. Sessions
	// longer than this (or non-positive) are sensor/clock errors and are
	// dropped, not clamped.
	maxSleepSessionHours = 24

	// oxygenPlaceholderPct is reported, flagged as estimated, when no live
	// blood-oxygen reading exists for the day.
	oxygenPlaceholderPct = 95
)

// ReduceDay computes the daily summary for the calendar day containing day,
// scanning the given records. It is a pure function of the record set:
// re-running it after new records arrive fully replaces the prior summary.
// Records outside the day window, with negative values, or (for sleep) with
// implausible durations do not contribute.
func ReduceDay(userID string, records []NormalizedRecord, day time.Time) DailySummary {
	start, end := DayWindow(day)

	s := DailySummary{UserID: userID, Day: start}

	var (
		stepsMax, stepsSum         float64
		caloriesTotal, caloriesAct float64
		distanceMeters             float64
		sleepHours                 float64
		lastHeartRate              time.Time
		lastWeight                 time.Time
		lastOxygen                 time.Time
	)

	for _, rec := range records {
		if rec.CollectedAt.Before(start) || !rec.CollectedAt.Before(end) {
			continue
		}
		if rec.Value < 0 && rec.Metric != MetricSleepSession {
			continue
		}

		switch rec.Metric {
		case MetricSteps:
			stepsSum += rec.Value
			if rec.Value > stepsMax {
				stepsMax = rec.Value
			}
		case MetricTotalCalories:
			caloriesTotal += rec.Value
		case MetricActiveCalories:
			caloriesAct += rec.Value
		case MetricDistance:
			distanceMeters += rec.Value
		case MetricSleepSession:
			if rec.Value > 0 && rec.Value <= maxSleepSessionHours {
				sleepHours += rec.Value
			}
		case MetricHeartRate:
			if rec.CollectedAt.After(lastHeartRate) {
				lastHeartRate = rec.CollectedAt
				s.HeartRate = int(math.Round(rec.Value))
			}
		case MetricWeight:
			if rec.CollectedAt.After(lastWeight) {
				lastWeight = rec.CollectedAt
				s.WeightKg = round2(rec.Value)
			}
		case MetricBloodOxygen:
			if rec.CollectedAt.After(lastOxygen) {
				lastOxygen = rec.CollectedAt
				s.OxygenPct = int(math.Round(rec.Value))
			}
		}
	}

	// Two-tier steps rule: prefer the single largest record as the day
	// total, fall back to summing when the largest looks like a delta.
	if stepsMax >= stepsCumulativeFloor {
		s.Steps = int(stepsMax)
	} else {
		s.Steps = int(stepsSum)
	}

	// Total and active calorie streams often cover the same activity; the
	// max of the two sums avoids double counting.
	s.Calories = int(math.Round(math.Max(caloriesTotal, caloriesAct)))

	s.DistanceKm = round2(distanceMeters / 1000)
	s.SleepHours = round1(sleepHours)

	if lastOxygen.IsZero() {
		s.OxygenPct = oxygenPlaceholderPct
		s.OxygenEstimated = true
	}

	return s
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
