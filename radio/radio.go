// Package radio is the link layer of the sensor network: a fixed PHY
// configuration, one shared packet buffer, and the transmit/receive event
// state machine of the nRF52 RADIO peripheral.
package radio

// Buffer geometry
const (
	BufferSize = 258            // shared TX/RX packet buffer
	MaxFields  = BufferSize - 1 // bytes StartTransmission accepts
	MaxLength  = 255            // PCNF1.MAXLEN, on-air length field limit
)

// PHY parameters. They are fixed for the whole network.
const (
	Frequency   = 90         // 2490 MHz
	BaseAddress = 0xABCDABCD // BASE0 and BASE1
	TxPrefix    = 0xEF       // AP0 on transmitters
	RxPrefix0   = 0xDA       // AP0 on receivers
	RxPrefix1   = 0xEF       // AP1 on receivers
	CRCLength   = 3
	CRCPoly     = 0x00065B // x^24+x^10+x^9+x^6+x^4+x^3+x+1
	CRCInit     = 0x000000
	TxPowerDBm  = 4
	BaseLength  = 4
	LengthBits  = 8
)

// Event is a bitset of RADIO events.
type Event uint16

// RADIO events
const (
	EventReady Event = 1 << iota
	EventAddress
	EventPayload
	EventEnd
	EventDisabled
	EventDevMatch
	EventDevMiss
	EventRSSIEnd
	EventBCMatch
	EventCRCOK
	EventCRCError

	EventAll = EventReady | EventAddress | EventPayload | EventEnd | EventDisabled |
		EventDevMatch | EventDevMiss | EventRSSIEnd | EventBCMatch | EventCRCOK | EventCRCError

	// rxComplete is the set a fully received, CRC-valid packet raises.
	rxComplete = EventAddress | EventPayload | EventEnd | EventCRCOK | EventRSSIEnd
)

// Short is a bitset of hardware event→task shortcuts.
type Short uint8

const (
	ShortReadyStart Short = 1 << iota
	ShortEndDisable
	ShortAddressRSSIStart
)

// Config is the full register configuration written by InitTransmission
// and InitReception.
type Config struct {
	Frequency   uint8
	Base0       uint32
	Base1       uint32
	Prefix0     uint32 // AP3..AP0, one byte each
	TxAddress   uint8
	RxAddresses uint8 // bit n enables logical address n
	LengthBits  uint8
	MaxLength   uint8
	BaseLength  uint8
	BigEndian   bool
	CRCLength   uint8
	CRCPoly     uint32
	CRCInit     uint32
	TxPowerDBm  int8
	Shorts      Short
}

// TxConfig is the transmitter configuration.
func TxConfig() Config {
	return Config{
		Frequency:   Frequency,
		Base0:       BaseAddress,
		Prefix0:     TxPrefix,
		TxAddress:   0,
		LengthBits:  LengthBits,
		MaxLength:   MaxLength,
		BaseLength:  BaseLength,
		BigEndian:   true,
		CRCLength:   CRCLength,
		CRCPoly:     CRCPoly,
		CRCInit:     CRCInit,
		TxPowerDBm:  TxPowerDBm,
		Shorts:      ShortReadyStart | ShortEndDisable,
	}
}

// RxConfig is the receiver configuration: logical addresses 0 and 1.
func RxConfig() Config {
	return Config{
		Frequency:   Frequency,
		Base0:       BaseAddress,
		Base1:       BaseAddress,
		Prefix0:     RxPrefix1<<8 | RxPrefix0,
		RxAddresses: 1<<0 | 1<<1,
		LengthBits:  LengthBits,
		MaxLength:   MaxLength,
		BaseLength:  BaseLength,
		BigEndian:   true,
		CRCLength:   CRCLength,
		CRCPoly:     CRCPoly,
		CRCInit:     CRCInit,
		TxPowerDBm:  TxPowerDBm,
		Shorts:      ShortReadyStart | ShortEndDisable | ShortAddressRSSIStart,
	}
}

// Regs is the RADIO register set.
type Regs interface {
	SetPower(on bool)
	Configure(cfg *Config)

	// SetPacketPtr points PACKETPTR at buf. The radio reads and writes buf
	// by DMA until the next call.
	SetPacketPtr(buf *[BufferSize]byte)

	EnableInterrupts(ev Event)
	DisableInterrupts(ev Event)
	Events() Event
	ClearEvents(ev Event)

	TriggerTxEn()
	TriggerRxEn()
	TriggerDisable()

	RSSISample() uint8
	RxMatch() uint8
}
