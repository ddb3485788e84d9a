// Package aggregator reads historical health records from the platform
// health-data aggregator through a pluggable provider, guarding every read
// behind an availability and permission state machine.
package aggregator

import (
	"context"
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
)

// RecordType names one aggregator record class. The names follow the
// platform's own record vocabulary, which is what the bridge speaks.
type RecordType string

const (
	RecordSteps            RecordType = "Steps"
	RecordDistance         RecordType = "Distance"
	RecordActiveCalories   RecordType = "ActiveCaloriesBurned"
	RecordTotalCalories    RecordType = "TotalCaloriesBurned"
	RecordHeartRate        RecordType = "HeartRate"
	RecordWeight           RecordType = "Weight"
	RecordHeight           RecordType = "Height"
	RecordSleepSession     RecordType = "SleepSession"
	RecordBloodPressure    RecordType = "BloodPressure"
	RecordOxygenSaturation RecordType = "OxygenSaturation"
	RecordBodyTemperature  RecordType = "BodyTemperature"
)

// KnownRecordTypes is the permission allow-list. Requests for anything
// outside this list are rejected before they reach the provider.
var KnownRecordTypes = []RecordType{
	RecordSteps,
	RecordDistance,
	RecordActiveCalories,
	RecordTotalCalories,
	RecordHeartRate,
	RecordWeight,
	RecordHeight,
	RecordSleepSession,
	RecordBloodPressure,
	RecordOxygenSaturation,
	RecordBodyTemperature,
}

var recordMetrics = map[RecordType]health.Metric{
	RecordSteps:            health.MetricSteps,
	RecordDistance:         health.MetricDistance,
	RecordActiveCalories:   health.MetricActiveCalories,
	RecordTotalCalories:    health.MetricTotalCalories,
	RecordHeartRate:        health.MetricHeartRate,
	RecordWeight:           health.MetricWeight,
	RecordHeight:           health.MetricHeight,
	RecordSleepSession:     health.MetricSleepSession,
	RecordBloodPressure:    health.MetricBloodPressure,
	RecordOxygenSaturation: health.MetricBloodOxygen,
	RecordBodyTemperature:  health.MetricTemperature,
}

// Metric maps the record type to its canonical metric.
func (t RecordType) Metric() health.Metric {
	return recordMetrics[t]
}

// Known reports whether t is on the permission allow-list.
func (t RecordType) Known() bool {
	_, ok := recordMetrics[t]
	return ok
}

// TimeRange bounds a record query. End is exclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Provider is the transport to the platform aggregator. The production
// implementation talks JSON over a local bridge; tests substitute a mock.
type Provider interface {
	// Availability returns nil when the aggregator is installed and
	// reachable, and an error describing why not otherwise.
	Availability(ctx context.Context) error

	// GrantedPermissions returns the record types the user has granted.
	GrantedPermissions(ctx context.Context) ([]RecordType, error)

	// RequestPermissions asks the user to grant the given types and returns
	// the set actually granted, which may be smaller.
	RequestPermissions(ctx context.Context, types []RecordType) ([]RecordType, error)

	// ReadRecords returns raw measurements of one type inside the range.
	ReadRecords(ctx context.Context, t RecordType, r TimeRange) ([]health.RawMeasurement, error)
}
