//go:build nrf

package main

import (
	"sensornet/core"
	"sensornet/gateway"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/sensor"
	"sensornet/targets/nrf52"
)

// Set with -ldflags "-X main.keyHex=... -X main.debugBuild=true
// -X main.localSensor=true".
var (
	keyHex      string
	debugBuild  string
	localSensor string
)

const (
	pinSCL = 13
	pinSDA = 15
)

func main() {
	debug := debugBuild == "true"
	id, word := nrf52.Boot("GW", debug)
	if word.Programmed() && word.Board() != protocol.BoardGateway {
		core.DebugPrintln("[GW] warning: board word is not a gateway")
	}

	codec, err := nrf52.LoadCodec(keyHex)
	if err != nil {
		nrf52.Halt("key: " + err.Error())
	}

	out := nrf52.DebugUART()
	if out == nil {
		nrf52.Halt("uart")
	}

	cfg := gateway.Config{AllowPlaintext: debug, ForwardRaw: debug}
	gw := gateway.New(radio.NewLink(nrf52.Radio{}), codec, out, cfg, id)

	if localSensor == "true" {
		rtc, err := periph.NewRTC(nrf52.RTC{}, core.DefaultRTCPrescaler)
		if err != nil {
			nrf52.Halt("rtc: " + err.Error())
		}
		twim := periph.NewTWIM(nrf52.TWIM{}, periph.TWIMConfig{SCL: pinSCL, SDA: pinSDA, Frequency: periph.K400})
		gw.WithLocalSensor(sensor.NewSHTC3(sensor.NewBus(twim)), rtc)
	}

	gw.Run()
}
