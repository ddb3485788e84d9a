package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/health"
)

// sourceNames maps aggregator data-origin package names to the vendor labels
// shown to users. Unlisted packages fall back to their last path segment.
var sourceNames = map[string]string{
	"com.sec.android.app.shealth":           "Samsung Health",
	"com.google.android.apps.fitness":       "Google Fit",
	"com.fitbit.FitbitMobile":               "Fitbit",
	"com.xiaomi.wearable":                   "Mi Fitness",
	"com.mi.health":                         "Mi Health",
	"com.huawei.health":                     "Huawei Health",
	"com.garmin.android.apps.connectmobile": "Garmin Connect",
	"com.polar.polarflow":                   "Polar Flow",
	"com.huami.watch.hmwatchmanager":        "Zepp",
}

// SourceName resolves a data-origin package name to its display label.
func SourceName(packageName string) string {
	if label, ok := sourceNames[packageName]; ok {
		return label
	}
	if packageName == "" {
		return "Unknown"
	}
	parts := strings.Split(packageName, ".")
	return parts[len(parts)-1]
}

// HTTPProvider talks to the local aggregator bridge over JSON:
//
//	GET  /v1/status
//	GET  /v1/permissions
//	POST /v1/permissions
//	GET  /v1/records?type=<RecordType>&start=<RFC3339>&end=<RFC3339>
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewHTTPProvider(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type statusResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type permissionsPayload struct {
	RecordTypes []RecordType `json:"record_types"`
}

type recordsResponse struct {
	Records []json.RawMessage `json:"records"`
}

func (p *HTTPProvider) Availability(ctx context.Context) error {
	var status statusResponse
	if err := p.get(ctx, "/v1/status", nil, &status); err != nil {
		return err
	}
	if !status.Available {
		if status.Reason != "" {
			return fmt.Errorf("bridge reports aggregator unavailable: %s", status.Reason)
		}
		return fmt.Errorf("bridge reports aggregator unavailable")
	}
	return nil
}

func (p *HTTPProvider) GrantedPermissions(ctx context.Context) ([]RecordType, error) {
	var perms permissionsPayload
	if err := p.get(ctx, "/v1/permissions", nil, &perms); err != nil {
		return nil, err
	}
	return perms.RecordTypes, nil
}

func (p *HTTPProvider) RequestPermissions(ctx context.Context, types []RecordType) ([]RecordType, error) {
	var granted permissionsPayload
	if err := p.post(ctx, "/v1/permissions", permissionsPayload{RecordTypes: types}, &granted); err != nil {
		return nil, err
	}
	return granted.RecordTypes, nil
}

func (p *HTTPProvider) ReadRecords(ctx context.Context, t RecordType, r TimeRange) ([]health.RawMeasurement, error) {
	query := url.Values{
		"type":  {string(t)},
		"start": {r.Start.Format(time.RFC3339)},
		"end":   {r.End.Format(time.RFC3339)},
	}
	var resp recordsResponse
	if err := p.get(ctx, "/v1/records", query, &resp); err != nil {
		return nil, err
	}

	out := make([]health.RawMeasurement, 0, len(resp.Records))
	for _, rawJSON := range resp.Records {
		m, ok := parseRecord(t, rawJSON)
		if !ok {
			p.logger.WithField("record_type", t).Warn("Unparseable record skipped")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// parseRecord converts one bridge record into a raw measurement. The whole
// decoded object becomes the payload so metric-specific field extraction can
// happen during normalization, not here.
func parseRecord(t RecordType, rawJSON json.RawMessage) (health.RawMeasurement, bool) {
	var payload map[string]any
	if err := json.Unmarshal(rawJSON, &payload); err != nil {
		return health.RawMeasurement{}, false
	}

	start := parseRecordTime(payload, "startTime")
	end := parseRecordTime(payload, "endTime")
	if end.IsZero() {
		// Instantaneous records carry a single "time" field.
		end = parseRecordTime(payload, "time")
		start = end
	}

	return health.RawMeasurement{
		Metric:      t.Metric(),
		Payload:     payload,
		StartTime:   start,
		EndTime:     end,
		Source:      health.SourceAggregator,
		SourceLabel: SourceName(originPackage(payload)),
	}, true
}

func parseRecordTime(payload map[string]any, key string) time.Time {
	s, ok := payload[key].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func originPackage(payload map[string]any) string {
	meta, ok := payload["metadata"].(map[string]any)
	if !ok {
		return ""
	}
	origin, ok := meta["dataOrigin"].(map[string]any)
	if !ok {
		// Some bridge versions flatten the origin to a string.
		if s, ok := meta["dataOrigin"].(string); ok {
			return s
		}
		return ""
	}
	name, _ := origin["packageName"].(string)
	return name
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return p.do(req, out)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(string(encoded)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *HTTPProvider) do(req *http.Request, out any) error {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     resp.StatusCode,
			"path":       req.URL.Path,
		}).Warn("Bridge returned non-OK status")
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bridge response decode failed: %w", err)
	}
	return nil
}
