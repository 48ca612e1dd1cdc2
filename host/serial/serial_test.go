package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = Open(&Config{})
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = Open(DefaultConfig(t.TempDir() + "/missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
