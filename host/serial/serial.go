// Package serial opens the UART the gateway writes its report lines to.
package serial

import (
	"io"
	"time"
)

// Port is an open serial connection. The bridge only needs the
// io.ReadWriteCloser part; tests substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything the driver still buffers.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud must match the gateway UART (115200 in every firmware build)
	Baud int

	// ReadTimeout bounds each Read so the reader can notice Close.
	// Zero blocks.
	ReadTimeout time.Duration
}

// DefaultBaud is the gateway UART rate.
const DefaultBaud = 115200

// DefaultConfig returns the gateway settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 500 * time.Millisecond,
	}
}
