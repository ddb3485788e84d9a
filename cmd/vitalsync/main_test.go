package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalsync/vitalsync/internal/aggregator"
	"github.com/vitalsync/vitalsync/internal/radio"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"adapter off", fmt.Errorf("wrapped: %w", radio.ErrAdapterOff), "Bluetooth is turned off - enable Bluetooth and retry"},
		{"unauthorized", radio.ErrUnauthorized, "Bluetooth access denied - grant Bluetooth permission to this application and retry"},
		{"not connected", radio.ErrNotConnected, "no device is connected - run 'vitalsync scan' and connect first"},
		{"no standard services", radio.ErrNoStandardServices, "device connected but exposes no standard health services; data may be limited"},
		{"aggregator down", fmt.Errorf("cycle: %w", aggregator.ErrUnavailable), "health aggregator is unavailable - check that the bridge is running"},
		{"passthrough", errors.New("boom"), "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatUserError(tc.err))
		})
	}
}
