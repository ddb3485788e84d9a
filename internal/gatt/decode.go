// Package gatt decodes fixed-layout characteristic value buffers into typed
// measurements, following the standard short-range health-profile layouts.
// Every function is pure and returns ok=false on truncated or out-of-range
// input instead of a partial value.
package gatt

import (
	"encoding/binary"
	"math"
)

// DecodeHeartRate reads a heart-rate measurement in bpm. Monitors that send
// the flags byte put the rate in the second byte; bare single-byte payloads
// carry it in the first.
func DecodeHeartRate(buf []byte) (int, bool) {
	switch {
	case len(buf) >= 2:
		return int(buf[1]), true
	case len(buf) == 1:
		return int(buf[0]), true
	default:
		return 0, false
	}
}

// DecodeBattery reads a battery level percentage from the first byte.
func DecodeBattery(buf []byte) (int, bool) {
	if len(buf) < 1 || buf[0] > 100 {
		return 0, false
	}
	return int(buf[0]), true
}

// DecodeSteps reads a step count as a 4-byte little-endian unsigned integer.
func DecodeSteps(buf []byte) (uint32, bool) {
	if len(buf) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:4]), true
}

// DecodeTemperature reads a body temperature in °C, transmitted as a 2-byte
// little-endian integer in tenths of a degree.
func DecodeTemperature(buf []byte) (float64, bool) {
	if len(buf) < 2 {
		return 0, false
	}
	return round1(float64(binary.LittleEndian.Uint16(buf[:2])) / 10), true
}

// DecodeBloodPressure reads systolic and diastolic mmHg as two 2-byte
// little-endian integers at offsets 0 and 2.
func DecodeBloodPressure(buf []byte) (systolic, diastolic int, ok bool) {
	if len(buf) < 4 {
		return 0, 0, false
	}
	return int(binary.LittleEndian.Uint16(buf[0:2])), int(binary.LittleEndian.Uint16(buf[2:4])), true
}

// DecodeBloodOxygen reads an SpO2 percentage from the first byte.
func DecodeBloodOxygen(buf []byte) (int, bool) {
	if len(buf) < 1 || buf[0] > 100 {
		return 0, false
	}
	return int(buf[0]), true
}

// DecodeWeight reads a weight in kg, transmitted as a 2-byte little-endian
// integer in tenths of a kilogram.
func DecodeWeight(buf []byte) (float64, bool) {
	if len(buf) < 2 {
		return 0, false
	}
	return round1(float64(binary.LittleEndian.Uint16(buf[:2])) / 10), true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
