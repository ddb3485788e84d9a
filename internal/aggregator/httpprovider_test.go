package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/health"
)

func TestHTTPProvider_Availability(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/status", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			w.Write([]byte(`{"available": true}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, quietLogger())
		assert.NoError(t, p.Availability(context.Background()))
	})

	t.Run("unavailable with reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"available": false, "reason": "provider not installed"}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, time.Second, quietLogger())
		err := p.Availability(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider not installed")
	})

	t.Run("bridge down", func(t *testing.T) {
		p := NewHTTPProvider("http://127.0.0.1:1", 200*time.Millisecond, quietLogger())
		assert.Error(t, p.Availability(context.Background()))
	})
}

func TestHTTPProvider_ReadRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/records", r.URL.Path)
		assert.Equal(t, "Steps", r.URL.Query().Get("type"))
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		assert.NotEmpty(t, r.URL.Query().Get("end"))
		w.Write([]byte(`{"records": [
			{
				"recordType": "Steps",
				"count": 4200,
				"startTime": "2025-06-10T08:00:00Z",
				"endTime": "2025-06-10T09:00:00Z",
				"metadata": {"dataOrigin": {"packageName": "com.sec.android.app.shealth"}}
			},
			{"recordType": "Steps", "count": 100}
		]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, quietLogger())
	records, err := p.ReadRecords(context.Background(), RecordSteps, testRange())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, health.MetricSteps, first.Metric)
	assert.Equal(t, "Samsung Health", first.SourceLabel)
	assert.Equal(t, health.SourceAggregator, first.Source)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), first.EndTime)
	assert.Equal(t, 4200.0, first.Payload["count"])

	// The timeless record survives parsing; normalization drops it later.
	assert.True(t, records[1].EndTime.IsZero())
}

func TestHTTPProvider_Permissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/permissions", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"record_types": ["Steps", "HeartRate"]}`))
		case http.MethodPost:
			w.Write([]byte(`{"record_types": ["Steps"]}`))
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, quietLogger())

	granted, err := p.GrantedPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RecordType{RecordSteps, RecordHeartRate}, granted)

	granted, err = p.RequestPermissions(context.Background(), []RecordType{RecordSteps, RecordHeartRate})
	require.NoError(t, err)
	assert.Equal(t, []RecordType{RecordSteps}, granted)
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "Samsung Health", SourceName("com.sec.android.app.shealth"))
	assert.Equal(t, "Garmin Connect", SourceName("com.garmin.android.apps.connectmobile"))
	assert.Equal(t, "someapp", SourceName("io.vendor.someapp"))
	assert.Equal(t, "Unknown", SourceName(""))
}
