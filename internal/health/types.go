// Package health defines the canonical measurement model shared by every
// telemetry source: the raw shape a source delivers, the normalized record
// that gets persisted, and the per-day summary derived from those records.
package health

import (
	"fmt"
	"time"
)

// Metric identifies one kind of physiological measurement.
type Metric string

const (
	MetricHeartRate          Metric = "heart_rate"
	MetricSteps              Metric = "steps"
	MetricActiveCalories     Metric = "active_calories"
	MetricTotalCalories      Metric = "total_calories"
	MetricDistance           Metric = "distance"
	MetricSleepSession       Metric = "sleep_session"
	MetricWeight             Metric = "weight"
	MetricHeight             Metric = "height"
	MetricBloodOxygen        Metric = "blood_oxygen"
	MetricBloodPressure      Metric = "blood_pressure"
	MetricTemperature        Metric = "body_temperature"
	MetricBodyFat            Metric = "body_fat"
	MetricLeanMass           Metric = "lean_mass"
	MetricBoneMass           Metric = "bone_mass"
	MetricBodyWater          Metric = "body_water"
	MetricBasalMetabolicRate Metric = "basal_metabolic_rate"
	MetricBattery            Metric = "battery"
)

// Source identifies which acquisition path delivered a measurement.
type Source string

const (
	SourceRadioLink  Source = "radio_link"
	SourceAggregator Source = "aggregator"
)

// RawMeasurement is one observation exactly as a source delivered it, before
// normalization. Aggregator records carry the vendor's nested field layout in
// Payload; radio-link records are decoded on arrival and carry Value directly.
type RawMeasurement struct {
	Metric  Metric
	Payload map[string]any

	// Value is set (with HasValue) when the source already produced a
	// canonical scalar, bypassing payload extraction.
	Value    float64
	HasValue bool

	// Blood pressure is the one paired metric.
	Systolic  int
	Diastolic int

	StartTime time.Time
	// EndTime is authoritative for day membership. A measurement without it
	// is invalid and dropped during normalization.
	EndTime time.Time

	Source      Source
	SourceLabel string
}

// NormalizedRecord is one row ready for persistence and reduction. It is
// created from exactly one RawMeasurement and never mutated afterwards.
type NormalizedRecord struct {
	UserID      string
	Metric      Metric
	Value       float64
	Systolic    int
	Diastolic   int
	CollectedAt time.Time
	Source      Source
	SourceLabel string
}

// Key returns the duplicate identity of a record. Re-syncing the same source
// window produces records with equal keys; the persistence layer may use the
// key to reject exact duplicates.
func (r NormalizedRecord) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", r.UserID, r.Metric, r.CollectedAt.UnixMicro(), r.SourceLabel)
}

// DailySummary is the derived aggregate of one user's metrics for one
// calendar day. It is recomputed from scratch on every sync cycle; a later
// cycle's summary fully replaces an earlier one.
type DailySummary struct {
	UserID string    `json:"user_id"`
	Day    time.Time `json:"day"`

	Steps      int     `json:"steps"`
	HeartRate  int     `json:"heart_rate"`
	Calories   int     `json:"calories"`
	DistanceKm float64 `json:"distance_km"`
	SleepHours float64 `json:"sleep_hours"`
	WeightKg   float64 `json:"weight_kg"`

	// WaterL is reserved; no source currently produces it.
	WaterL float64 `json:"water_l"`

	// OxygenPct falls back to a fixed placeholder when no live oxygen
	// reading exists for the day; OxygenEstimated marks that case so the
	// placeholder is never mistaken for a sensor reading.
	OxygenPct       int  `json:"oxygen_pct"`
	OxygenEstimated bool `json:"oxygen_estimated"`
}
