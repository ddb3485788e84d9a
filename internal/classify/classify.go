// Package classify decides whether a discovered radio device is a plausible
// wearable and guesses its brand. Classification is table-driven so vendor
// signatures can be extended without touching scan control flow.
package classify

import (
	"encoding/binary"
	"strings"
)

// Brand labels the best-effort vendor guess for a device. The guess picks a
// fallback integration path (some vendors expose no standard GATT health
// services); it never rejects a device on its own.
type Brand string

const (
	BrandUnknown Brand = "unknown"
	BrandSamsung Brand = "samsung"
	BrandXiaomi  Brand = "xiaomi"
	BrandHuawei  Brand = "huawei"
	BrandFitbit  Brand = "fitbit"
	BrandGarmin  Brand = "garmin"
	BrandPolar   Brand = "polar"
	BrandAmazfit Brand = "amazfit"
)

// Standard GATT health service UUIDs (16-bit short form, lowercase).
const (
	ServiceHeartRate      = "180d"
	ServiceBattery        = "180f"
	ServiceDeviceInfo     = "180a"
	ServiceThermometer    = "1809"
	ServiceBloodPressure  = "1810"
	ServiceRunningSpeed   = "1814"
	ServiceCyclingPower   = "1818"
	ServiceWeightScale    = "181d"
	ServicePulseOximeter  = "1822"
	ServiceFitnessMachine = "1826"
)

// Signature matches a brand by advertised-name substrings and/or the
// Bluetooth SIG company identifier in manufacturer data.
type Signature struct {
	Brand        Brand
	NamePatterns []string
	CompanyIDs   []uint16
}

// Classifier holds the matching tables. The zero value matches nothing; use
// Default for the built-in tables.
type Classifier struct {
	// Vocabulary of generic wearable name keywords.
	Vocabulary []string
	// HealthServices is the set of service UUIDs that mark a health device.
	HealthServices map[string]struct{}
	Signatures     []Signature
}

// Default returns the built-in classifier tables.
func Default() *Classifier {
	return &Classifier{
		Vocabulary: []string{
			"watch", "band", "fit", "health", "tracker", "wear",
			"bracelet", "gear", "hrm", "pulse", "scale",
		},
		HealthServices: map[string]struct{}{
			ServiceHeartRate:      {},
			ServiceThermometer:    {},
			ServiceBloodPressure:  {},
			ServiceRunningSpeed:   {},
			ServiceCyclingPower:   {},
			ServiceWeightScale:    {},
			ServicePulseOximeter:  {},
			ServiceFitnessMachine: {},
		},
		Signatures: []Signature{
			{BrandSamsung, []string{"galaxy watch", "galaxy fit", "galaxy buds", "gear", "sm-r", "samsung"}, []uint16{0x0075}},
			{BrandXiaomi, []string{"mi band", "mi smart band", "xiaomi", "redmi"}, []uint16{0x038F}},
			{BrandHuawei, []string{"huawei", "honor band"}, []uint16{0x027D}},
			{BrandFitbit, []string{"fitbit", "charge", "versa", "inspire"}, []uint16{0x0224}},
			{BrandGarmin, []string{"garmin", "forerunner", "vivoactive", "fenix"}, []uint16{0x0087}},
			{BrandPolar, []string{"polar"}, []uint16{0x006B}},
			{BrandAmazfit, []string{"amazfit", "zepp"}, []uint16{0x0157}},
		},
	}
}

// IsPlausibleWearable reports whether a device looks like a health wearable:
// its name contains a wearable keyword, or it advertises a known health
// service, or it matches a brand signature. Only devices failing all three
// checks are dropped.
func (c *Classifier) IsPlausibleWearable(name string, serviceIDs []string, manufacturerData []byte) bool {
	lower := strings.ToLower(name)
	for _, kw := range c.Vocabulary {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, id := range serviceIDs {
		if _, ok := c.HealthServices[shortUUID(id)]; ok {
			return true
		}
	}
	return c.GuessBrand(name, manufacturerData) != BrandUnknown
}

// GuessBrand matches the brand signature table against the advertised name
// and the company identifier carried in manufacturer data. Best-effort.
func (c *Classifier) GuessBrand(name string, manufacturerData []byte) Brand {
	lower := strings.ToLower(name)
	companyID := companyIDFrom(manufacturerData)

	for _, sig := range c.Signatures {
		for _, pattern := range sig.NamePatterns {
			if pattern != "" && strings.Contains(lower, pattern) {
				return sig.Brand
			}
		}
		for _, id := range sig.CompanyIDs {
			if companyID != 0 && companyID == id {
				return sig.Brand
			}
		}
	}
	return BrandUnknown
}

// HasStandardHealthService reports whether any of the advertised or
// enumerated service UUIDs is a known health service.
func (c *Classifier) HasStandardHealthService(serviceIDs []string) bool {
	for _, id := range serviceIDs {
		if _, ok := c.HealthServices[shortUUID(id)]; ok {
			return true
		}
	}
	return false
}

// companyIDFrom extracts the SIG company identifier from the first two bytes
// of manufacturer data, per BLE convention. Returns 0 when absent.
func companyIDFrom(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(data[0:2])
}

// shortUUID normalizes a UUID to its lowercase 16-bit short form when the
// UUID is a standard base-UUID expansion, e.g.
// "0000180d-0000-1000-8000-00805f9b34fb" -> "180d".
func shortUUID(uuid string) string {
	u := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, "00001000800000805f9b34fb") {
		return u[4:8]
	}
	return u
}
