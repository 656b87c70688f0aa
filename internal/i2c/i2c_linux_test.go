//go:build linux

package i2c

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openNullBus(t *testing.T) *Bus {
	t.Helper()
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	require.NoError(t, err)
	b := &Bus{f: f, path: "/dev/null"}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestTransfer_InvalidAddr(t *testing.T) {
	b := openNullBus(t)
	for _, addr := range []uint16{0, 0x80} {
		err := b.Dev(addr).WriteReg(0x00, 0x01)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid addr")
	}
}

func TestTransfer_EmptyIsNoop(t *testing.T) {
	b := openNullBus(t)
	n, err := b.Dev(0x68).transfer(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTransfer_ClosedBus(t *testing.T) {
	b := openNullBus(t)
	d := b.Dev(0x68)
	require.NoError(t, b.Close())
	_, err := d.ReadRegU8(0x00)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus is closed")
}

func TestDev_NilBus(t *testing.T) {
	var b *Bus
	assert.Nil(t, b.Dev(0x68))
	assert.NoError(t, b.Close())
	assert.Equal(t, "", b.Path())
}
