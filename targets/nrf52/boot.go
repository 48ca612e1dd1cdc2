//go:build nrf

package nrf52

import (
	"device/arm"

	"sensornet/core"
	"sensornet/periph"
	"sensornet/protocol"
)

// Boot brings up the debug UART and interrupt handlers, then reads the
// factory identity and the board configuration word.
func Boot(name string, debug bool) (protocol.Identity, protocol.ConfigWord) {
	InitDebugUART(debug)
	EnableIRQs()

	id := periph.ReadIdentity(FICR{})
	word := periph.ReadConfigWord(UICR{})
	core.DebugPrintln("[" + name + "] " + id.MCUID() + " " + word.String())
	return id, word
}

// LoadCodec builds the packet codec from a hex key, or the development key
// when keyHex is empty.
func LoadCodec(keyHex string) (*protocol.Codec, error) {
	key := protocol.DefaultKey()
	if keyHex != "" {
		k, err := protocol.ParseKey(keyHex)
		if err != nil {
			return nil, err
		}
		key = k
	}
	return protocol.NewCodec(key)
}

// Halt logs msg, dumps the event ring and sleeps forever.
func Halt(msg string) {
	core.DebugPrintln("[HALT] " + msg)
	core.DumpEventRing()
	for {
		arm.Asm("wfi")
	}
}
