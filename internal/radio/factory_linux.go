//go:build linux

package radio

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// AdapterFactory creates ble.Device instances (can be overridden in tests).
var AdapterFactory = func() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
