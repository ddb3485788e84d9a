package gatt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeHeartRate(t *testing.T) {
	t.Run("flagged layout uses second byte", func(t *testing.T) {
		hr, ok := DecodeHeartRate([]byte{0x00, 0x4B})
		assert.True(t, ok)
		assert.Equal(t, 75, hr)
	})

	t.Run("single byte payload", func(t *testing.T) {
		hr, ok := DecodeHeartRate([]byte{0x48})
		assert.True(t, ok)
		assert.Equal(t, 72, hr)
	})

	t.Run("empty buffer", func(t *testing.T) {
		_, ok := DecodeHeartRate(nil)
		assert.False(t, ok)
	})
}

func TestDecodeBattery(t *testing.T) {
	lvl, ok := DecodeBattery([]byte{87})
	assert.True(t, ok)
	assert.Equal(t, 87, lvl)

	_, ok = DecodeBattery([]byte{101})
	assert.False(t, ok, "battery above 100% is malformed")

	_, ok = DecodeBattery(nil)
	assert.False(t, ok)
}

func TestDecodeSteps(t *testing.T) {
	steps, ok := DecodeSteps([]byte{0x10, 0x27, 0x00, 0x00})
	assert.True(t, ok)
	assert.Equal(t, uint32(10000), steps)

	_, ok = DecodeSteps([]byte{0x10, 0x27, 0x00})
	assert.False(t, ok)
}

func TestDecodeTemperature(t *testing.T) {
	temp, ok := DecodeTemperature([]byte{0x6F, 0x01}) // 367 -> 36.7
	assert.True(t, ok)
	assert.Equal(t, 36.7, temp)

	_, ok = DecodeTemperature([]byte{0x6F})
	assert.False(t, ok)
}

func TestDecodeBloodPressure(t *testing.T) {
	sys, dia, ok := DecodeBloodPressure([]byte{0x78, 0x00, 0x50, 0x00})
	assert.True(t, ok)
	assert.Equal(t, 120, sys)
	assert.Equal(t, 80, dia)

	_, _, ok = DecodeBloodPressure([]byte{0x78, 0x00, 0x50})
	assert.False(t, ok)
}

func TestDecodeBloodOxygen(t *testing.T) {
	pct, ok := DecodeBloodOxygen([]byte{97})
	assert.True(t, ok)
	assert.Equal(t, 97, pct)

	_, ok = DecodeBloodOxygen([]byte{130})
	assert.False(t, ok)
}

func TestDecodeWeight(t *testing.T) {
	// (b[0] + b[1]*256) / 10, one decimal place.
	cases := []struct {
		buf  []byte
		want float64
	}{
		{[]byte{0x2A, 0x03}, 81.0},  // 810
		{[]byte{0xFF, 0x02}, 76.7},  // 767
		{[]byte{0x01, 0x00}, 0.1},   // 1
		{[]byte{0xFF, 0xFF}, 6553.5}, // 65535, nonsense but well-formed
	}
	for _, tc := range cases {
		got, ok := DecodeWeight(tc.buf)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got)
	}

	_, ok := DecodeWeight([]byte{0x2A})
	assert.False(t, ok)
}

// Every decoder must reject all buffers shorter than its minimum length
// without panicking.
func TestDecode_ShortBuffers(t *testing.T) {
	short := [][]byte{nil, {}, {0x01}, {0x01, 0x02}, {0x01, 0x02, 0x03}}
	for _, buf := range short {
		if len(buf) < 1 {
			_, ok := DecodeBattery(buf)
			assert.False(t, ok)
			_, ok = DecodeBloodOxygen(buf)
			assert.False(t, ok)
		}
		if len(buf) < 2 {
			_, ok := DecodeTemperature(buf)
			assert.False(t, ok)
			_, ok2 := DecodeWeight(buf)
			assert.False(t, ok2)
		}
		if len(buf) < 4 {
			_, ok := DecodeSteps(buf)
			assert.False(t, ok)
			_, _, ok2 := DecodeBloodPressure(buf)
			assert.False(t, ok2)
		}
	}
}
