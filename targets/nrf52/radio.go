//go:build nrf

package nrf52

import (
	"device/nrf"
	"runtime/volatile"
	"unsafe"

	"sensornet/radio"
)

// Radio is the RADIO peripheral.
type Radio struct{}

var _ radio.Regs = Radio{}

// radioEvents lists the event registers in radio.Event bit order.
var radioEvents = [...]*volatile.Register32{
	&nrf.RADIO.EVENTS_READY,
	&nrf.RADIO.EVENTS_ADDRESS,
	&nrf.RADIO.EVENTS_PAYLOAD,
	&nrf.RADIO.EVENTS_END,
	&nrf.RADIO.EVENTS_DISABLED,
	&nrf.RADIO.EVENTS_DEVMATCH,
	&nrf.RADIO.EVENTS_DEVMISS,
	&nrf.RADIO.EVENTS_RSSIEND,
	&nrf.RADIO.EVENTS_BCMATCH,
	&nrf.RADIO.EVENTS_CRCOK,
	&nrf.RADIO.EVENTS_CRCERROR,
}

// radioIntMasks lists the INTEN bits in radio.Event bit order.
var radioIntMasks = [...]uint32{
	nrf.RADIO_INTENSET_READY_Msk,
	nrf.RADIO_INTENSET_ADDRESS_Msk,
	nrf.RADIO_INTENSET_PAYLOAD_Msk,
	nrf.RADIO_INTENSET_END_Msk,
	nrf.RADIO_INTENSET_DISABLED_Msk,
	nrf.RADIO_INTENSET_DEVMATCH_Msk,
	nrf.RADIO_INTENSET_DEVMISS_Msk,
	nrf.RADIO_INTENSET_RSSIEND_Msk,
	nrf.RADIO_INTENSET_BCMATCH_Msk,
	nrf.RADIO_INTENSET_CRCOK_Msk,
	nrf.RADIO_INTENSET_CRCERROR_Msk,
}

func radioIntMask(ev radio.Event) uint32 {
	var m uint32
	for i, bit := range radioIntMasks {
		if ev&(1<<uint(i)) != 0 {
			m |= bit
		}
	}
	return m
}

func (Radio) SetPower(on bool) {
	if on {
		nrf.RADIO.POWER.Set(nrf.RADIO_POWER_POWER_Enabled)
	} else {
		nrf.RADIO.POWER.Set(nrf.RADIO_POWER_POWER_Disabled)
	}
}

func (Radio) Configure(cfg *radio.Config) {
	r := nrf.RADIO
	r.MODE.Set(nrf.RADIO_MODE_MODE_Ble_1Mbit)
	r.FREQUENCY.Set(uint32(cfg.Frequency))
	r.BASE0.Set(cfg.Base0)
	r.BASE1.Set(cfg.Base1)
	r.PREFIX0.Set(cfg.Prefix0)
	r.TXADDRESS.Set(uint32(cfg.TxAddress))
	r.RXADDRESSES.Set(uint32(cfg.RxAddresses))

	r.PCNF0.Set(uint32(cfg.LengthBits) << nrf.RADIO_PCNF0_LFLEN_Pos)
	pcnf1 := uint32(cfg.MaxLength)<<nrf.RADIO_PCNF1_MAXLEN_Pos |
		uint32(cfg.BaseLength)<<nrf.RADIO_PCNF1_BALEN_Pos
	if cfg.BigEndian {
		pcnf1 |= nrf.RADIO_PCNF1_ENDIAN_Big << nrf.RADIO_PCNF1_ENDIAN_Pos
	}
	r.PCNF1.Set(pcnf1)

	r.CRCCNF.Set(uint32(cfg.CRCLength) << nrf.RADIO_CRCCNF_LEN_Pos)
	r.CRCPOLY.Set(cfg.CRCPoly)
	r.CRCINIT.Set(cfg.CRCInit)
	r.TXPOWER.Set(uint32(uint8(cfg.TxPowerDBm)))

	var shorts uint32
	if cfg.Shorts&radio.ShortReadyStart != 0 {
		shorts |= nrf.RADIO_SHORTS_READY_START_Msk
	}
	if cfg.Shorts&radio.ShortEndDisable != 0 {
		shorts |= nrf.RADIO_SHORTS_END_DISABLE_Msk
	}
	if cfg.Shorts&radio.ShortAddressRSSIStart != 0 {
		shorts |= nrf.RADIO_SHORTS_ADDRESS_RSSISTART_Msk
	}
	r.SHORTS.Set(shorts)
}

func (Radio) SetPacketPtr(buf *[radio.BufferSize]byte) {
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
}

func (Radio) EnableInterrupts(ev radio.Event) {
	nrf.RADIO.INTENSET.Set(radioIntMask(ev))
}

func (Radio) DisableInterrupts(ev radio.Event) {
	nrf.RADIO.INTENCLR.Set(radioIntMask(ev))
}

func (Radio) Events() radio.Event {
	var ev radio.Event
	for i, reg := range radioEvents {
		if reg.Get() != 0 {
			ev |= 1 << uint(i)
		}
	}
	return ev
}

func (Radio) ClearEvents(ev radio.Event) {
	for i, reg := range radioEvents {
		if ev&(1<<uint(i)) != 0 {
			reg.Set(0)
		}
	}
}

func (Radio) TriggerTxEn() {
	nrf.RADIO.TASKS_TXEN.Set(1)
}

func (Radio) TriggerRxEn() {
	nrf.RADIO.TASKS_RXEN.Set(1)
}

func (Radio) TriggerDisable() {
	nrf.RADIO.TASKS_DISABLE.Set(1)
}

func (Radio) RSSISample() uint8 {
	return uint8(nrf.RADIO.RSSISAMPLE.Get())
}

func (Radio) RxMatch() uint8 {
	return uint8(nrf.RADIO.RXMATCH.Get())
}
