package main

import (
	"errors"

	"github.com/vitalsync/vitalsync/internal/aggregator"
	"github.com/vitalsync/vitalsync/internal/radio"
)

// FormatUserError converts internal errors into actionable messages for the
// terminal.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, radio.ErrAdapterOff):
		return "Bluetooth is turned off - enable Bluetooth and retry"
	case errors.Is(err, radio.ErrUnauthorized):
		return "Bluetooth access denied - grant Bluetooth permission to this application and retry"
	case errors.Is(err, radio.ErrUnsupported):
		return "no usable Bluetooth adapter was found on this machine"
	case errors.Is(err, radio.ErrNotConnected):
		return "no device is connected - run 'vitalsync scan' and connect first"
	case errors.Is(err, radio.ErrNoStandardServices):
		return "device connected but exposes no standard health services; data may be limited"
	case errors.Is(err, aggregator.ErrUnavailable):
		return "health aggregator is unavailable - check that the bridge is running"
	default:
		return err.Error()
	}
}
