// Package store persists normalized records and daily summaries in a local
// sqlite database. Records are append-only with duplicate rejection; daily
// summaries are last-writer-wins per (user, day).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"

	"github.com/vitalsync/vitalsync/internal/health"
)

// schema is applied on every Open. Statements are idempotent so upgrading a
// binary against an existing database is safe.
const schema = `
CREATE TABLE IF NOT EXISTS vitals_records (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id                  TEXT NOT NULL,
	metric                   TEXT NOT NULL,
	source                   TEXT NOT NULL,
	source_label             TEXT NOT NULL DEFAULT '',
	collected_at             INTEGER NOT NULL,
	heart_rate               REAL,
	steps                    REAL,
	calories                 REAL,
	distance                 REAL,
	sleep_hours              REAL,
	weight                   REAL,
	height                   REAL,
	blood_oxygen             REAL,
	body_temperature         REAL,
	body_fat                 REAL,
	lean_mass                REAL,
	bone_mass                REAL,
	body_water               REAL,
	basal_metabolic_rate     REAL,
	battery                  REAL,
	blood_pressure_systolic  INTEGER,
	blood_pressure_diastolic INTEGER,
	UNIQUE (user_id, metric, collected_at, source_label)
);

CREATE INDEX IF NOT EXISTS idx_vitals_records_user_time
	ON vitals_records (user_id, collected_at);

CREATE TABLE IF NOT EXISTS daily_summaries (
	user_id          TEXT NOT NULL,
	day              TEXT NOT NULL,
	steps            INTEGER NOT NULL DEFAULT 0,
	heart_rate       INTEGER NOT NULL DEFAULT 0,
	calories         INTEGER NOT NULL DEFAULT 0,
	distance_km      REAL NOT NULL DEFAULT 0,
	sleep_hours      REAL NOT NULL DEFAULT 0,
	weight_kg        REAL NOT NULL DEFAULT 0,
	water_l          REAL NOT NULL DEFAULT 0,
	oxygen_pct       INTEGER NOT NULL DEFAULT 0,
	oxygen_estimated INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL,
	PRIMARY KEY (user_id, day)
);
`

// sparseColumns lists the per-metric value columns in query order. Each
// record populates exactly one of them (blood pressure uses the two
// dedicated integer columns instead).
var sparseColumns = []string{
	"heart_rate", "steps", "calories", "distance", "sleep_hours",
	"weight", "height", "blood_oxygen", "body_temperature", "body_fat",
	"lean_mass", "bone_mass", "body_water", "basal_metabolic_rate", "battery",
}

// metricColumns maps each metric to the sparse column carrying its value.
// Active and total calories share one column; the metric field keeps them
// distinguishable when records are read back for recomputation.
var metricColumns = map[health.Metric]string{
	health.MetricHeartRate:          "heart_rate",
	health.MetricSteps:              "steps",
	health.MetricActiveCalories:     "calories",
	health.MetricTotalCalories:      "calories",
	health.MetricDistance:           "distance",
	health.MetricSleepSession:       "sleep_hours",
	health.MetricWeight:             "weight",
	health.MetricHeight:             "height",
	health.MetricBloodOxygen:        "blood_oxygen",
	health.MetricTemperature:        "body_temperature",
	health.MetricBodyFat:            "body_fat",
	health.MetricLeanMass:           "lean_mass",
	health.MetricBoneMass:           "bone_mass",
	health.MetricBodyWater:          "body_water",
	health.MetricBasalMetabolicRate: "basal_metabolic_rate",
	health.MetricBattery:            "battery",
}

// Store wraps the sqlite database. Safe for concurrent use; sqlite
// serializes writers internally.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.WithField("path", path).Debug("Database opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRecords appends a batch of normalized records, silently skipping
// exact duplicates of already persisted rows. Returns the number actually
// inserted.
func (s *Store) InsertRecords(ctx context.Context, records []health.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, rec := range records {
		query, args, err := insertStatement(rec)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"metric": rec.Metric,
				"error":  err,
			}).Warn("Unpersistable record skipped")
			continue
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert %s record: %w", rec.Metric, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit record batch: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batch":    len(records),
		"inserted": inserted,
	}).Debug("Record batch persisted")
	return inserted, nil
}

func insertStatement(rec health.NormalizedRecord) (string, []any, error) {
	base := []string{"user_id", "metric", "source", "source_label", "collected_at"}
	args := []any{rec.UserID, string(rec.Metric), string(rec.Source), rec.SourceLabel, rec.CollectedAt.UnixMicro()}

	if rec.Metric == health.MetricBloodPressure {
		base = append(base, "blood_pressure_systolic", "blood_pressure_diastolic")
		args = append(args, rec.Systolic, rec.Diastolic)
	} else {
		col, ok := metricColumns[rec.Metric]
		if !ok {
			return "", nil, fmt.Errorf("no column for metric %q", rec.Metric)
		}
		base = append(base, col)
		args = append(args, rec.Value)
	}

	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO vitals_records (%s) VALUES (%s)",
		strings.Join(base, ", "),
		strings.TrimRight(strings.Repeat("?, ", len(base)), ", "),
	)
	return query, args, nil
}

// RecordsForDay returns every record of one user inside the calendar day
// containing t, in collection order.
func (s *Store) RecordsForDay(ctx context.Context, userID string, t time.Time) ([]health.NormalizedRecord, error) {
	start, end := health.DayWindow(t)

	query := fmt.Sprintf(`
		SELECT metric, source, source_label, collected_at, %s,
		       blood_pressure_systolic, blood_pressure_diastolic
		  FROM vitals_records
		 WHERE user_id = ? AND collected_at >= ? AND collected_at < ?
		 ORDER BY collected_at`,
		strings.Join(sparseColumns, ", "))

	rows, err := s.db.QueryContext(ctx, query, userID, start.UnixMicro(), end.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	colIndex := make(map[string]int, len(sparseColumns))
	for i, c := range sparseColumns {
		colIndex[c] = i
	}

	var out []health.NormalizedRecord
	for rows.Next() {
		var (
			metric, source, label string
			collectedAt           int64
			vals                  = make([]sql.NullFloat64, len(sparseColumns))
			sys, dia              sql.NullInt64
		)
		dest := []any{&metric, &source, &label, &collectedAt}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &sys, &dia)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec := health.NormalizedRecord{
			UserID:      userID,
			Metric:      health.Metric(metric),
			CollectedAt: time.UnixMicro(collectedAt).UTC(),
			Source:      health.Source(source),
			SourceLabel: label,
		}
		if rec.Metric == health.MetricBloodPressure {
			rec.Systolic, rec.Diastolic = int(sys.Int64), int(dia.Int64)
		} else if col, ok := metricColumns[rec.Metric]; ok {
			rec.Value = vals[colIndex[col]].Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastCollectedAt returns the newest collection time across all of a user's
// records. ok is false when the user has no records at all.
func (s *Store) LastCollectedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(collected_at) FROM vitals_records WHERE user_id = ?", userID,
	).Scan(&max)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last collection time: %w", err)
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMicro(max.Int64).UTC(), true, nil
}

const dayFormat = "2006-01-02"

// UpsertSummary writes the summary for its (user, day), replacing any
// earlier computation for that day.
func (s *Store) UpsertSummary(ctx context.Context, sum health.DailySummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (
			user_id, day, steps, heart_rate, calories, distance_km,
			sleep_hours, weight_kg, water_l, oxygen_pct, oxygen_estimated, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET
			steps = excluded.steps,
			heart_rate = excluded.heart_rate,
			calories = excluded.calories,
			distance_km = excluded.distance_km,
			sleep_hours = excluded.sleep_hours,
			weight_kg = excluded.weight_kg,
			water_l = excluded.water_l,
			oxygen_pct = excluded.oxygen_pct,
			oxygen_estimated = excluded.oxygen_estimated,
			updated_at = excluded.updated_at`,
		sum.UserID, sum.Day.Format(dayFormat), sum.Steps, sum.HeartRate,
		sum.Calories, sum.DistanceKm, sum.SleepHours, sum.WeightKg, sum.WaterL,
		sum.OxygenPct, boolToInt(sum.OxygenEstimated), time.Now().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

// SummaryForDay returns the stored summary for the calendar day containing t.
func (s *Store) SummaryForDay(ctx context.Context, userID string, t time.Time) (health.DailySummary, bool, error) {
	return s.querySummary(ctx,
		"SELECT user_id, day, steps, heart_rate, calories, distance_km, sleep_hours, weight_kg, water_l, oxygen_pct, oxygen_estimated FROM daily_summaries WHERE user_id = ? AND day = ?",
		userID, t.Format(dayFormat))
}

// LatestSummary returns the most recent summary of a user.
func (s *Store) LatestSummary(ctx context.Context, userID string) (health.DailySummary, bool, error) {
	return s.querySummary(ctx,
		"SELECT user_id, day, steps, heart_rate, calories, distance_km, sleep_hours, weight_kg, water_l, oxygen_pct, oxygen_estimated FROM daily_summaries WHERE user_id = ? ORDER BY day DESC LIMIT 1",
		userID)
}

func (s *Store) querySummary(ctx context.Context, query string, args ...any) (health.DailySummary, bool, error) {
	var (
		sum       health.DailySummary
		day       string
		estimated int
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.UserID, &day, &sum.Steps, &sum.HeartRate, &sum.Calories,
		&sum.DistanceKm, &sum.SleepHours, &sum.WeightKg, &sum.WaterL,
		&sum.OxygenPct, &estimated,
	)
	if err == sql.ErrNoRows {
		return health.DailySummary{}, false, nil
	}
	if err != nil {
		return health.DailySummary{}, false, fmt.Errorf("failed to query summary: %w", err)
	}

	sum.Day, err = time.Parse(dayFormat, day)
	if err != nil {
		return health.DailySummary{}, false, fmt.Errorf("failed to parse summary day %q: %w", day, err)
	}
	sum.OxygenEstimated = estimated != 0
	return sum, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
