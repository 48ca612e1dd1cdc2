//go:build nrf

package main

import (
	"sensornet/core"
	"sensornet/node"
	"sensornet/periph"
	"sensornet/protocol"
	"sensornet/radio"
	"sensornet/targets/nrf52"
)

// Set with -ldflags "-X main.keyHex=... -X main.debugBuild=true".
var (
	keyHex     string
	debugBuild string
)

const (
	pinSCL     = 23
	pinSDA     = 22
	batteryAIN = 1 // P0.03
)

func main() {
	debug := debugBuild == "true"
	id, word := nrf52.Boot("NODE", debug)
	if word.Programmed() && word.Board() != protocol.BoardSensorNode {
		core.DebugPrintln("[NODE] warning: board word is not a sensor node")
	}

	codec, err := nrf52.LoadCodec(keyHex)
	if err != nil {
		nrf52.Halt("key: " + err.Error())
	}

	rtc, err := periph.NewRTC(nrf52.RTC{}, core.DefaultRTCPrescaler)
	if err != nil {
		nrf52.Halt("rtc: " + err.Error())
	}

	p := node.Peripherals{
		Link:    radio.NewLink(nrf52.Radio{}),
		RTC:     rtc,
		TWIM:    periph.NewTWIM(nrf52.TWIM{}, periph.TWIMConfig{SCL: pinSCL, SDA: pinSDA, Frequency: periph.K400}),
		Timer:   periph.NewTimer(nrf52.Timer{}),
		RNG:     periph.NewRNG(nrf52.RNG{}),
		Clock:   periph.NewClock(nrf52.Clock{}),
		Battery: periph.NewBattery(nrf52.NewSAADC(), batteryAIN),
		Power:   periph.NewPower(nrf52.Power{}),
	}

	n, err := node.New(node.DefaultConfig(debug), p, id, codec)
	if err != nil {
		nrf52.Halt("node: " + err.Error())
	}
	n.Run()
}
