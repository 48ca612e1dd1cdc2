//go:build nrf

package nrf52

import (
	"machine"

	"sensornet/core"
)

var debugUART *machine.UART

// InitDebugUART configures the default UART at 115200 baud and routes
// core debug output to it. Pins are the board's UART_TX_PIN/UART_RX_PIN.
func InitDebugUART(enabled bool) *machine.UART {
	debugUART = machine.DefaultUART
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART_TX_PIN,
		RX:       machine.UART_RX_PIN,
	})
	if err != nil {
		debugUART = nil
		return nil
	}

	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(enabled)
	return debugUART
}

// DebugUART returns the UART configured by InitDebugUART, or nil. The
// gateway writes its report lines to it.
func DebugUART() *machine.UART {
	return debugUART
}

// DebugPrintln writes a line to the debug UART.
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
