package radio

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/gatt"
	"github.com/vitalsync/vitalsync/internal/health"
)

// Standard service/characteristic pairs, plus the Nordic UART pair many
// vendor bands reuse for their step counter stream.
const (
	svcBattery       = "180f"
	chrBatteryLevel  = "2a19"
	svcHeartRate     = "180d"
	chrHeartRateMeas = "2a37"
	svcThermometer   = "1809"
	chrTempMeas      = "2a1c"
	svcBloodPressure = "1810"
	chrBPMeas        = "2a35"
	svcPulseOximeter = "1822"
	chrSpotCheck     = "2a5e"
	svcWeightScale   = "181d"
	chrWeightMeas    = "2a9d"

	svcVendorSteps = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	chrVendorSteps = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// readFunc reads the current value of one characteristic. Production code
// passes Manager.ReadCharacteristic; tests pass a fake.
type readFunc func(serviceUUID, charUUID string) ([]byte, error)

// gattPoint binds one metric to the characteristic that carries it and the
// decoder for its value layout.
type gattPoint struct {
	metric  health.Metric
	service string
	char    string
	decode  func([]byte) (health.RawMeasurement, bool)
}

func scalar(metric health.Metric, fn func([]byte) (float64, bool)) func([]byte) (health.RawMeasurement, bool) {
	return func(buf []byte) (health.RawMeasurement, bool) {
		v, ok := fn(buf)
		if !ok {
			return health.RawMeasurement{}, false
		}
		return health.RawMeasurement{Metric: metric, Value: v, HasValue: true}, true
	}
}

func intScalar(metric health.Metric, fn func([]byte) (int, bool)) func([]byte) (health.RawMeasurement, bool) {
	return scalar(metric, func(buf []byte) (float64, bool) {
		v, ok := fn(buf)
		return float64(v), ok
	})
}

var gattPoints = []gattPoint{
	{health.MetricBattery, svcBattery, chrBatteryLevel, intScalar(health.MetricBattery, gatt.DecodeBattery)},
	{health.MetricHeartRate, svcHeartRate, chrHeartRateMeas, intScalar(health.MetricHeartRate, gatt.DecodeHeartRate)},
	{health.MetricTemperature, svcThermometer, chrTempMeas, scalar(health.MetricTemperature, gatt.DecodeTemperature)},
	{health.MetricBloodPressure, svcBloodPressure, chrBPMeas, decodeBP},
	{health.MetricBloodOxygen, svcPulseOximeter, chrSpotCheck, intScalar(health.MetricBloodOxygen, gatt.DecodeBloodOxygen)},
	{health.MetricWeight, svcWeightScale, chrWeightMeas, scalar(health.MetricWeight, gatt.DecodeWeight)},
	{health.MetricSteps, svcVendorSteps, chrVendorSteps, scalar(health.MetricSteps, func(buf []byte) (float64, bool) {
		v, ok := gatt.DecodeSteps(buf)
		return float64(v), ok
	})},
}

func decodeBP(buf []byte) (health.RawMeasurement, bool) {
	sys, dia, ok := gatt.DecodeBloodPressure(buf)
	if !ok {
		return health.RawMeasurement{}, false
	}
	return health.RawMeasurement{Metric: health.MetricBloodPressure, Systolic: sys, Diastolic: dia}, true
}

// CollectMeasurements reads every metric the active peer exposes and returns
// the decoded measurements. A failed or malformed read of one metric never
// blocks the others; peers rarely expose the whole table.
func (m *Manager) CollectMeasurements() []health.RawMeasurement {
	device, ok := m.ConnectedDevice()
	if !ok {
		return nil
	}
	return collectMeasurements(m.ReadCharacteristic, device.Name, time.Now(), m.logger)
}

func collectMeasurements(read readFunc, sourceLabel string, now time.Time, logger *logrus.Logger) []health.RawMeasurement {
	var out []health.RawMeasurement
	for _, p := range gattPoints {
		buf, err := read(p.service, p.char)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"metric": p.metric,
				"error":  err,
			}).Debug("Characteristic read skipped")
			continue
		}
		raw, ok := p.decode(buf)
		if !ok {
			logger.WithFields(logrus.Fields{
				"metric": p.metric,
				"bytes":  len(buf),
			}).Warn("Malformed characteristic value dropped")
			continue
		}
		raw.StartTime = now
		raw.EndTime = now
		raw.Source = health.SourceRadioLink
		raw.SourceLabel = sourceLabel
		out = append(out, raw)
	}
	return out
}
