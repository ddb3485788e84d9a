package radio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"powered off by state code", errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), ErrAdapterOff},
		{"powered off by message", errors.New("Bluetooth is turned off"), ErrAdapterOff},
		{"unauthorized by state code", errors.New("central manager has invalid state: have=3 want=5"), ErrUnauthorized},
		{"unauthorized by message", errors.New("operation not permitted"), ErrUnauthorized},
		{"unsupported by state code", errors.New("central manager has invalid state: have=2 want=5"), ErrUnsupported},
		{"unsupported adapter", errors.New("can't init hci: no such device"), ErrUnsupported},
		{"link dropped", errors.New("device not connected"), ErrNotConnected},
		{"disconnected mid-read", errors.New("peer disconnected"), ErrNotConnected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeError(tc.in)
			assert.True(t, errors.Is(got, tc.want), "got %v", got)
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		err := errors.New("something else entirely")
		assert.Equal(t, err, NormalizeError(err))
	})
}

func TestRadioError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RadioError{State: AdapterOff, Msg: "details"})
	assert.True(t, errors.Is(err, ErrAdapterOff))
	assert.False(t, errors.Is(err, ErrNotConnected))
	assert.True(t, IsAdapterState(err, AdapterOff))
	assert.False(t, IsAdapterState(err, Unauthorized))
}
