package periph

import "sensornet/protocol"

// FICRRegs exposes the factory information words.
type FICRRegs interface {
	DeviceID() [2]uint32
	Part() uint32
}

// UICRRegs exposes the customer configuration words.
type UICRRegs interface {
	Customer(i int) uint32
}

// ReadIdentity returns the device identity burned in at the factory.
func ReadIdentity(r FICRRegs) protocol.Identity {
	id := r.DeviceID()
	return protocol.Identity{
		DeviceID: uint64(id[1])<<32 | uint64(id[0]),
		PartID:   r.Part(),
	}
}

// ReadConfigWord returns the board configuration word (CUSTOMER[0]).
func ReadConfigWord(r UICRRegs) protocol.ConfigWord {
	return protocol.ConfigWord(r.Customer(0))
}
