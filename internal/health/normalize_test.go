package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(metric Metric, payload map[string]any) RawMeasurement {
	return RawMeasurement{
		Metric:      metric,
		Payload:     payload,
		StartTime:   time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC),
		Source:      SourceAggregator,
		SourceLabel: "Samsung Health",
	}
}

// One regression case per calorie payload shape seen in the wild. Vendor apps
// disagree on where the kilocalorie figure lives.
func TestNormalize_CaloriePayloadShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    float64
	}{
		{"nested inKilocalories", map[string]any{"energy": map[string]any{"inKilocalories": 320.5}}, 320.5},
		{"nested value", map[string]any{"energy": map[string]any{"value": 280.0}}, 280},
		{"bare value", map[string]any{"value": 150.0}, 150},
		{"bare energy number", map[string]any{"energy": 90.0}, 90},
		{"kilocalories", map[string]any{"kilocalories": 210.0}, 210},
		{"calories", map[string]any{"calories": 60.0}, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := Normalize("u1", raw(MetricTotalCalories, tc.payload))
			require.True(t, ok)
			assert.Equal(t, tc.want, rec.Value)
		})
	}
}

func TestNormalize_ExtractionOrder(t *testing.T) {
	// The specific nested shape wins over the generic fallback field.
	rec, ok := Normalize("u1", raw(MetricTotalCalories, map[string]any{
		"energy": map[string]any{"inKilocalories": 320.0},
		"value":  999.0,
	}))
	require.True(t, ok)
	assert.Equal(t, 320.0, rec.Value)
}

func TestNormalize_HeartRateSamples(t *testing.T) {
	rec, ok := Normalize("u1", raw(MetricHeartRate, map[string]any{
		"samples": []any{
			map[string]any{"beatsPerMinute": 71.0},
			map[string]any{"beatsPerMinute": 68.0},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, 68.0, rec.Value, "last sample of the record wins")
}

func TestNormalize_Distance(t *testing.T) {
	rec, ok := Normalize("u1", raw(MetricDistance, map[string]any{
		"distance": map[string]any{"inMeters": 1200.0},
	}))
	require.True(t, ok)
	assert.Equal(t, 1200.0, rec.Value)
}

func TestNormalize_BloodPressure(t *testing.T) {
	rec, ok := Normalize("u1", raw(MetricBloodPressure, map[string]any{
		"systolic":  map[string]any{"inMillimetersOfMercury": 121.0},
		"diastolic": map[string]any{"inMillimetersOfMercury": 79.0},
	}))
	require.True(t, ok)
	assert.Equal(t, 121, rec.Systolic)
	assert.Equal(t, 79, rec.Diastolic)
}

func TestNormalize_SleepDuration(t *testing.T) {
	m := RawMeasurement{
		Metric:    MetricSleepSession,
		StartTime: time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC),
		Source:    SourceAggregator,
	}
	rec, ok := Normalize("u1", m)
	require.True(t, ok)
	assert.Equal(t, 7.5, rec.Value)
	assert.Equal(t, m.EndTime, rec.CollectedAt)
}

func TestNormalize_Discards(t *testing.T) {
	t.Run("missing end time", func(t *testing.T) {
		m := raw(MetricSteps, map[string]any{"count": 100.0})
		m.EndTime = time.Time{}
		_, ok := Normalize("u1", m)
		assert.False(t, ok)
	})

	t.Run("end before start", func(t *testing.T) {
		m := raw(MetricSteps, map[string]any{"count": 100.0})
		m.EndTime = m.StartTime.Add(-time.Minute)
		_, ok := Normalize("u1", m)
		assert.False(t, ok)
	})

	t.Run("no matching field shape", func(t *testing.T) {
		_, ok := Normalize("u1", raw(MetricSteps, map[string]any{"unrelated": "x"}))
		assert.False(t, ok)
	})

	t.Run("blood pressure with one side missing", func(t *testing.T) {
		_, ok := Normalize("u1", raw(MetricBloodPressure, map[string]any{
			"systolic": map[string]any{"inMillimetersOfMercury": 120.0},
		}))
		assert.False(t, ok)
	})
}

func TestNormalize_PreDecodedValue(t *testing.T) {
	m := RawMeasurement{
		Metric:      MetricHeartRate,
		Value:       75,
		HasValue:    true,
		EndTime:     time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Source:      SourceRadioLink,
		SourceLabel: "Galaxy Watch",
	}
	rec, ok := Normalize("u1", m)
	require.True(t, ok)
	assert.Equal(t, 75.0, rec.Value)
	assert.Equal(t, SourceRadioLink, rec.Source)
}

func TestNormalizeAll_DropsInvalid(t *testing.T) {
	good := raw(MetricSteps, map[string]any{"count": 500.0})
	bad := raw(MetricSteps, nil)
	out := NormalizeAll("u1", []RawMeasurement{good, bad})
	require.Len(t, out, 1)
	assert.Equal(t, 500.0, out[0].Value)
}
