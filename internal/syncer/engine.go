// Package syncer orchestrates acquisition cycles: it pulls raw measurements
// from the radio link and the platform aggregator, normalizes and persists
// them, recomputes the day's summary and pushes the result to subscribers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/aggregator"
	"github.com/vitalsync/vitalsync/internal/groutine"
	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/store"
)

// ConnectivityCode summarizes how fresh the acquisition pipeline is.
type ConnectivityCode string

const (
	// Connected means a live peer link is up or data arrived recently.
	Connected ConnectivityCode = "CONNECTED"
	// SyncStale means data exists but nothing arrived within the freshness
	// window.
	SyncStale ConnectivityCode = "SYNC_STALE"
	// NoDevice means no link and no data at all.
	NoDevice ConnectivityCode = "NO_DEVICE"
)

// DefaultStaleWindow is how long after the last record a sync still counts
// as fresh.
const DefaultStaleWindow = 10 * time.Minute

// Default cycle cadences. Realtime covers only what a wrist device updates
// second to second; the full cycle re-reads the whole day from every source.
const (
	DefaultRealtimeInterval = 45 * time.Second
	DefaultFullInterval     = 3 * time.Minute
)

// ErrNoUser is returned by sync cycles running before a user is known.
// Measurements collected in that state are buffered, not dropped.
var ErrNoUser = errors.New("no active user")

// DeviceSource supplies live measurements over the radio link.
type DeviceSource interface {
	CollectMeasurements() []health.RawMeasurement
	Connected() bool
}

// RecordSource supplies historical records from the platform aggregator.
type RecordSource interface {
	ReadAll(ctx context.Context, r aggregator.TimeRange) ([]health.RawMeasurement, error)
}

// Store is the slice of the persistence layer the engine needs.
type Store interface {
	InsertRecords(ctx context.Context, records []health.NormalizedRecord) (int, error)
	RecordsForDay(ctx context.Context, userID string, t time.Time) ([]health.NormalizedRecord, error)
	LastCollectedAt(ctx context.Context, userID string) (time.Time, bool, error)
	UpsertSummary(ctx context.Context, sum health.DailySummary) error
}

// Engine runs the acquisition cycles. All methods are safe for concurrent
// use; cycles of the two cadences may overlap without corrupting state
// because every cycle recomputes the summary from scratch.
type Engine struct {
	device  DeviceSource
	records RecordSource
	store   Store
	offline *store.OfflineCache[health.NormalizedRecord]
	logger  *logrus.Logger

	staleWindow time.Duration
	now         func() time.Time

	mu          sync.Mutex
	userID      string
	subscribers []func(health.DailySummary)
	loops       map[string]context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithStaleWindow overrides the freshness window used by connectivity
// reporting.
func WithStaleWindow(d time.Duration) Option {
	return func(e *Engine) { e.staleWindow = d }
}

// WithClock overrides the time source. Tests use it to pin cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the acquisition sources to the persistence layer. device
// and records may each be nil when that source is not configured.
func NewEngine(device DeviceSource, records RecordSource, st Store, logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		device:      device,
		records:     records,
		store:       st,
		offline:     store.NewOfflineCache[health.NormalizedRecord](store.DefaultOfflineCapacity, logger),
		logger:      logger,
		staleWindow: DefaultStaleWindow,
		now:         time.Now,
		loops:       make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetUser switches the active user. Cycles before the first SetUser buffer
// their measurements; the first cycle after it drains the buffer.
func (e *Engine) SetUser(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = userID
}

// Subscribe registers a callback invoked with the recomputed summary after
// every successful cycle. Callbacks must not block.
func (e *Engine) Subscribe(fn func(health.DailySummary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// SyncOnce runs one full acquisition cycle: collect from every source,
// normalize, persist, recompute the day summary and notify subscribers.
// A persistence failure does not void the computation; the summary is still
// returned alongside the error.
func (e *Engine) SyncOnce(ctx context.Context) (health.DailySummary, error) {
	return e.cycle(ctx, true)
}

// syncRealtime runs the cheap cycle: live device measurements only.
func (e *Engine) syncRealtime(ctx context.Context) (health.DailySummary, error) {
	return e.cycle(ctx, false)
}

func (e *Engine) cycle(ctx context.Context, full bool) (health.DailySummary, error) {
	now := e.now()
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()

	var raws []health.RawMeasurement
	if e.device != nil {
		raws = append(raws, e.device.CollectMeasurements()...)
	}
	if full && e.records != nil {
		start, end := health.DayWindow(now)
		recs, err := e.records.ReadAll(ctx, aggregator.TimeRange{Start: start, End: end})
		if err != nil {
			// Aggregator trouble never blocks device data.
			e.logger.WithField("error", err).Warn("Aggregator read failed, continuing with device data")
		} else {
			raws = append(raws, recs...)
		}
	}

	if userID == "" {
		buffered := health.NormalizeAll("", raws)
		e.offline.Add(buffered...)
		e.logger.WithField("buffered", len(buffered)).Debug("No active user, measurements buffered")
		return health.DailySummary{}, ErrNoUser
	}

	normalized := health.NormalizeAll(userID, raws)
	normalized = append(normalized, e.claimOffline(userID)...)

	// Nothing is persisted until the whole day has been reduced.
	summary := health.ReduceDay(userID, e.unionForDay(ctx, userID, normalized, now), now)

	var storeErr error
	if _, err := e.store.InsertRecords(ctx, normalized); err != nil {
		storeErr = fmt.Errorf("persist records: %w", err)
		e.logger.WithField("error", err).Error("Record persistence failed")
		// Keep the batch for the next cycle.
		e.offline.Add(normalized...)
	}

	if err := e.store.UpsertSummary(ctx, summary); err != nil {
		if storeErr == nil {
			storeErr = fmt.Errorf("persist summary: %w", err)
		}
		e.logger.WithField("error", err).Error("Summary persistence failed")
	}

	e.notify(summary)

	e.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"records": len(normalized),
		"full":    full,
		"steps":   summary.Steps,
	}).Debug("Sync cycle completed")
	return summary, storeErr
}

// unionForDay merges this cycle's records with everything already persisted
// for the day, deduplicated by record key, so the reduction always sees the
// complete picture even when persistence just failed.
func (e *Engine) unionForDay(ctx context.Context, userID string, fresh []health.NormalizedRecord, day time.Time) []health.NormalizedRecord {
	persisted, err := e.store.RecordsForDay(ctx, userID, day)
	if err != nil {
		e.logger.WithField("error", err).Warn("Persisted record read failed, reducing fresh records only")
		return fresh
	}

	seen := make(map[string]bool, len(persisted))
	union := persisted
	for _, rec := range persisted {
		seen[rec.Key()] = true
	}
	for _, rec := range fresh {
		if !seen[rec.Key()] {
			seen[rec.Key()] = true
			union = append(union, rec)
		}
	}
	return union
}

// claimOffline drains the offline buffer, rewriting ownerless records to the
// now-known user.
func (e *Engine) claimOffline(userID string) []health.NormalizedRecord {
	drained := e.offline.Drain()
	for i := range drained {
		if drained[i].UserID == "" {
			drained[i].UserID = userID
		}
	}
	if len(drained) > 0 {
		e.logger.WithField("records", len(drained)).Info("Draining offline measurement buffer")
	}
	return drained
}

func (e *Engine) notify(summary health.DailySummary) {
	e.mu.Lock()
	subs := make([]func(health.DailySummary), len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(summary)
	}
}

// ConnectivityStatus reports how fresh the pipeline is for the active user.
func (e *Engine) ConnectivityStatus(ctx context.Context) ConnectivityCode {
	if e.device != nil && e.device.Connected() {
		return Connected
	}

	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()

	last, ok, err := e.store.LastCollectedAt(ctx, userID)
	if err != nil {
		e.logger.WithField("error", err).Warn("Connectivity check could not read last collection time")
		return NoDevice
	}
	if !ok {
		return NoDevice
	}
	if e.now().Sub(last) <= e.staleWindow {
		return Connected
	}
	return SyncStale
}

// StartRealtime launches the realtime loop. A previous realtime loop is
// cancelled first; full loops are unaffected.
func (e *Engine) StartRealtime(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRealtimeInterval
	}
	e.startLoop(ctx, "realtime", interval, e.syncRealtime)
}

// StartFull launches the full-cycle loop. A previous full loop is cancelled
// first; realtime loops are unaffected.
func (e *Engine) StartFull(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFullInterval
	}
	e.startLoop(ctx, "full", interval, e.SyncOnce)
}

func (e *Engine) startLoop(ctx context.Context, kind string, interval time.Duration, run func(context.Context) (health.DailySummary, error)) {
	e.mu.Lock()
	if cancel, ok := e.loops[kind]; ok {
		cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.loops[kind] = cancel
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"loop":     kind,
		"interval": interval,
	}).Info("Sync loop started")

	groutine.Go(loopCtx, "sync-loop-"+kind, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// First cycle immediately, then on cadence.
		if _, err := run(ctx); err != nil && !errors.Is(err, ErrNoUser) {
			e.logger.WithFields(logrus.Fields{"loop": kind, "error": err}).Warn("Sync cycle failed")
		}
		for {
			select {
			case <-ctx.Done():
				e.logger.WithField("loop", kind).Info("Sync loop stopped")
				return
			case <-ticker.C:
				if _, err := run(ctx); err != nil && !errors.Is(err, ErrNoUser) {
					e.logger.WithFields(logrus.Fields{"loop": kind, "error": err}).Warn("Sync cycle failed")
				}
			}
		}
	})
}

// Stop cancels every running loop. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for kind, cancel := range e.loops {
		cancel()
		delete(e.loops, kind)
	}
}
