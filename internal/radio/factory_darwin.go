//go:build darwin

package radio

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// AdapterFactory creates ble.Device instances (can be overridden in tests).
var AdapterFactory = func() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
