package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/health"
)

// State tracks the aggregator readiness lifecycle. Transitions only move
// forward except that Unavailable may recover to Ready on a later
// EnsureInitialized once the platform side comes back.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateUnavailable   State = "unavailable"
)

var (
	// ErrUnavailable means the platform aggregator is missing or unreachable.
	ErrUnavailable = errors.New("aggregator unavailable")
	// ErrUnknownRecordType means a permission request named a type outside
	// the allow-list.
	ErrUnknownRecordType = errors.New("unknown record type")
)

// Client wraps a Provider with initialization caching, permission tracking
// and fan-out reads. Safe for concurrent use.
type Client struct {
	provider Provider
	logger   *logrus.Logger

	mu      sync.Mutex
	state   State
	granted map[RecordType]bool
}

func NewClient(provider Provider, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		provider: provider,
		logger:   logger,
		state:    StateUninitialized,
		granted:  make(map[RecordType]bool),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureInitialized checks aggregator availability. The successful result is
// cached: once Ready, later calls return immediately. A failed probe parks
// the client in Unavailable but does not pin it there; the next call probes
// again.
func (c *Client) EnsureInitialized(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	err := c.provider.Availability(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateUnavailable
		c.logger.WithField("error", err).Warn("Aggregator unavailable")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.state = StateReady
	c.logger.Info("Aggregator ready")
	return nil
}

// RequestPermissions asks for the given record types after validating them
// against the allow-list, and records what was actually granted. Requesting
// an unknown type fails the whole call before anything reaches the provider.
func (c *Client) RequestPermissions(ctx context.Context, types []RecordType) ([]RecordType, error) {
	for _, t := range types {
		if !t.Known() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, t)
		}
	}

	if err := c.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	granted, err := c.provider.RequestPermissions(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("permission request failed: %w", err)
	}

	c.mu.Lock()
	for _, t := range granted {
		c.granted[t] = true
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"requested": len(types),
		"granted":   len(granted),
	}).Info("Aggregator permissions updated")
	return granted, nil
}

// ReadRecords reads one record type. The aggregator must be Ready.
func (c *Client) ReadRecords(ctx context.Context, t RecordType, r TimeRange) ([]health.RawMeasurement, error) {
	if err := c.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	records, err := c.provider.ReadRecords(ctx, t, r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t, err)
	}
	return records, nil
}

// ReadAll fans out one read per currently granted record type and fans the
// results back in. Permissions are re-fetched on every call: a grant revoked
// between cycles silently drops that type instead of erroring. A failed read
// of one type never discards the others.
func (c *Client) ReadAll(ctx context.Context, r TimeRange) ([]health.RawMeasurement, error) {
	if err := c.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	granted, err := c.provider.GrantedPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("permission check failed: %w", err)
	}

	c.mu.Lock()
	c.granted = make(map[RecordType]bool, len(granted))
	for _, t := range granted {
		c.granted[t] = true
	}
	c.mu.Unlock()

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		results []health.RawMeasurement
	)
	for _, t := range granted {
		if !t.Known() {
			continue
		}
		wg.Add(1)
		go func(t RecordType) {
			defer wg.Done()
			records, err := c.provider.ReadRecords(ctx, t, r)
			if err != nil {
				c.logger.WithFields(logrus.Fields{
					"record_type": t,
					"error":       err,
				}).Warn("Record read failed, continuing with other types")
				return
			}
			resMu.Lock()
			results = append(results, records...)
			resMu.Unlock()
		}(t)
	}
	wg.Wait()

	c.logger.WithFields(logrus.Fields{
		"types":   len(granted),
		"records": len(results),
	}).Debug("Aggregator read completed")
	return results, nil
}
