// Package radio owns the short-range link to wearable peripherals: adapter
// permission checks, filtered discovery, a single peer connection, and
// characteristic reads and notification streams over it.
package radio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/classify"
)

// DeviceInfo describes a discovered or connected peripheral.
type DeviceInfo struct {
	Address  string         `json:"address"`
	Name     string         `json:"name"`
	RSSI     int            `json:"rssi"`
	Brand    classify.Brand `json:"brand"`
	Services []string       `json:"services,omitempty"`
	LastSeen time.Time      `json:"last_seen"`
}

// ScanOptions configures discovery behavior.
type ScanOptions struct {
	Duration time.Duration
	// AllFilter disables the wearable plausibility filter and reports every
	// advertiser. Used by diagnostic commands.
	AllFilter bool
	AllowList []string
	BlockList []string
}

// DefaultScanOptions returns default discovery options.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{Duration: 15 * time.Second}
}

// Manager handles peripheral discovery and the single active connection.
// All methods are safe for concurrent use.
type Manager struct {
	logger     *logrus.Logger
	classifier *classify.Classifier

	mu        sync.Mutex
	adapter   ble.Device
	client    ble.Client
	profile   *ble.Profile
	connected DeviceInfo
	scanStop  context.CancelFunc
	scanSeq   uint64
}

// beginScan installs the cancel func for a new scan and returns its sequence
// number; the number identifies the slot's owner to endScan.
func (m *Manager) beginScan(cancel context.CancelFunc) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanSeq++
	m.scanStop = cancel
	return m.scanSeq
}

// endScan clears the cancel slot, unless a newer scan has taken it over.
func (m *Manager) endScan(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanSeq == seq {
		m.scanStop = nil
	}
}

// cancelScan stops the in-flight scan, if any.
func (m *Manager) cancelScan() {
	m.mu.Lock()
	stop := m.scanStop
	m.scanStop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// NewManager creates a connection manager with the built-in classifier tables.
func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		logger:     logger,
		classifier: classify.Default(),
	}
}

// EnsurePermissions verifies the radio adapter is present, powered and
// authorized. It is called before every discovery or connection attempt so
// that a toggled adapter is noticed immediately, not just at startup.
func (m *Manager) EnsurePermissions() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureAdapterLocked()
}

func (m *Manager) ensureAdapterLocked() error {
	if m.adapter != nil {
		return nil
	}
	dev, err := AdapterFactory()
	if err != nil {
		return fmt.Errorf("radio adapter unavailable: %w", NormalizeError(err))
	}
	m.adapter = dev
	ble.SetDefaultDevice(dev)
	return nil
}

// Scan performs filtered discovery and returns the deduplicated device list
// sorted by signal strength. Non-wearable advertisers are dropped unless
// opts.AllFilter is set. fn, when non-nil, is invoked once per device on its
// first sighting so callers can stream results before the scan completes.
func (m *Manager) Scan(ctx context.Context, opts *ScanOptions, fn func(DeviceInfo)) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	m.mu.Lock()
	if err := m.ensureAdapterLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	adapter := m.adapter
	m.mu.Unlock()

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	seq := m.beginScan(cancel)
	defer func() {
		cancel()
		m.endScan(seq)
	}()

	m.logger.WithField("duration", opts.Duration).Info("Starting device discovery...")

	devices := hashmap.New[string, DeviceInfo]()
	err := adapter.Scan(scanCtx, true, func(adv ble.Advertisement) {
		info, ok := m.evaluateAdvertisement(adv, opts)
		if !ok {
			return
		}
		if _, seen := devices.Get(info.Address); !seen {
			m.logger.WithFields(logrus.Fields{
				"device":  info.Name,
				"address": info.Address,
				"rssi":    info.RSSI,
				"brand":   info.Brand,
			}).Info("Discovered device")
			if fn != nil {
				fn(info)
			}
		}
		devices.Set(info.Address, info)
	})
	if err != nil && scanCtx.Err() == nil {
		return nil, fmt.Errorf("discovery failed: %w", NormalizeError(err))
	}

	result := make([]DeviceInfo, 0, devices.Len())
	devices.Range(func(_ string, info DeviceInfo) bool {
		result = append(result, info)
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].RSSI > result[j].RSSI })

	m.logger.WithField("device_count", len(result)).Info("Device discovery completed")
	return result, nil
}

// evaluateAdvertisement applies allow/block lists and the wearable filter,
// returning the device info when the advertiser should be reported.
func (m *Manager) evaluateAdvertisement(adv ble.Advertisement, opts *ScanOptions) (DeviceInfo, bool) {
	addr := adv.Addr().String()

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return DeviceInfo{}, false
		}
	}
	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return DeviceInfo{}, false
		}
	}

	name := adv.LocalName()
	services := make([]string, 0, len(adv.Services()))
	for _, u := range adv.Services() {
		services = append(services, u.String())
	}
	mfr := adv.ManufacturerData()

	if !opts.AllFilter && !m.classifier.IsPlausibleWearable(name, services, mfr) {
		return DeviceInfo{}, false
	}

	return DeviceInfo{
		Address:  addr,
		Name:     name,
		RSSI:     adv.RSSI(),
		Brand:    m.classifier.GuessBrand(name, mfr),
		Services: services,
		LastSeen: time.Now(),
	}, true
}

// Connect dials the peripheral at address, discovers its full GATT profile
// and makes it the active peer. Any in-flight scan is cancelled and any
// previous connection is torn down first. Returns ErrNoStandardServices
// (with the link left up) when the peer exposes none of the standard health
// services.
func (m *Manager) Connect(ctx context.Context, address string, timeout time.Duration) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("connect: device address is not set")
	}

	m.cancelScan()

	// One active peer at a time.
	if err := m.Disconnect(); err != nil {
		m.logger.WithField("error", err).Warn("Disconnect before reconnect reported errors")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureAdapterLocked(); err != nil {
		return err
	}

	m.logger.WithField("address", address).Info("Connecting to device...")

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return fmt.Errorf("failed to connect to device %q: %w", address, NormalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	m.client = client
	m.profile = profile
	m.connected = DeviceInfo{
		Address:  address,
		Name:     client.Name(),
		Services: profileServiceIDs(profile),
		LastSeen: time.Now(),
	}
	m.connected.Brand = m.classifier.GuessBrand(m.connected.Name, nil)

	m.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Info("Device connected")

	if !m.classifier.HasStandardHealthService(m.connected.Services) {
		return ErrNoStandardServices
	}
	return nil
}

// Disconnect tears down the active connection. Idempotent: the peer slot is
// cleared even when the underlying cancel reports an error.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.profile = nil
	m.connected = DeviceInfo{}
	m.mu.Unlock()

	if client == nil {
		return nil
	}

	m.logger.Info("Disconnecting device...")
	if err := client.CancelConnection(); err != nil {
		m.logger.WithField("error", err).Warn("Device disconnected with errors")
		return NormalizeError(err)
	}
	m.logger.Info("Device disconnected")
	return nil
}

// Connected reports whether a peer link is up.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// ConnectedDevice returns the active peer, if any.
func (m *Manager) ConnectedDevice() (DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, m.client != nil
}

// ReadCharacteristic reads the current value of a characteristic on the
// active peer. UUIDs accept both dashed and short forms.
func (m *Manager) ReadCharacteristic(serviceUUID, charUUID string) ([]byte, error) {
	m.mu.Lock()
	client := m.client
	char, err := m.findCharacteristicLocked(serviceUUID, charUUID)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	data, err := client.ReadCharacteristic(char)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", charUUID, NormalizeError(err))
	}
	return data, nil
}

// Monitor subscribes to notifications on a characteristic of the active peer
// and invokes fn for every value. The returned cancel function unsubscribes;
// it is safe to call more than once.
func (m *Manager) Monitor(serviceUUID, charUUID string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	client := m.client
	char, err := m.findCharacteristicLocked(serviceUUID, charUUID)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if char.Property&ble.CharNotify == 0 && char.Property&ble.CharIndicate == 0 {
		return nil, fmt.Errorf("characteristic %s does not support notifications: %w", charUUID, ErrUnsupported)
	}

	if err := client.Subscribe(char, false, fn); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", charUUID, NormalizeError(err))
	}

	m.logger.WithFields(logrus.Fields{
		"service_uuid": serviceUUID,
		"char_uuid":    charUUID,
	}).Info("Subscribed to characteristic notifications")

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := client.Unsubscribe(char, false); err != nil {
				m.logger.WithFields(logrus.Fields{
					"char_uuid": charUUID,
					"error":     err,
				}).Warn("Failed to unsubscribe from characteristic")
			}
		})
	}
	return cancel, nil
}

// findCharacteristicLocked resolves a characteristic in the discovered
// profile. Caller holds m.mu.
func (m *Manager) findCharacteristicLocked(serviceUUID, charUUID string) (*ble.Characteristic, error) {
	if m.client == nil || m.profile == nil {
		return nil, fmt.Errorf("no active peer: %w", ErrNotConnected)
	}

	wantSvc := normalizeUUID(serviceUUID)
	wantChar := normalizeUUID(charUUID)
	for _, svc := range m.profile.Services {
		if normalizeUUID(svc.UUID.String()) != wantSvc {
			continue
		}
		for _, char := range svc.Characteristics {
			if normalizeUUID(char.UUID.String()) == wantChar {
				return char, nil
			}
		}
		return nil, fmt.Errorf("characteristic %q not found in service %q", charUUID, serviceUUID)
	}
	return nil, fmt.Errorf("service %q not found", serviceUUID)
}

func profileServiceIDs(p *ble.Profile) []string {
	ids := make([]string, 0, len(p.Services))
	for _, svc := range p.Services {
		ids = append(ids, svc.UUID.String())
	}
	return ids
}

// normalizeUUID converts a UUID string to the internal radio library format
// (lowercase, no dashes).
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
