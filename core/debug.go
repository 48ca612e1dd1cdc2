package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventKind identifies a cycle event kept in the post-mortem ring.
type EventKind uint8

// Event kinds recorded by the node and gateway loops
const (
	EvtWake         EventKind = 1  // RTC compare match serviced
	EvtSampled      EventKind = 2  // sensor read ok, value = index
	EvtSensorError  EventKind = 3  // bus or sensor failure, cycle skipped
	EvtLowBattery   EventKind = 4  // value = millivolts
	EvtSent         EventKind = 5  // packet on air, value = index
	EvtReceived     EventKind = 6  // value = payload length
	EvtForwarded    EventKind = 7  // value = index
	EvtAuthFailure  EventKind = 8  // tag mismatch, packet dropped
	EvtMalformed    EventKind = 9  // short/unknown/oversized, dropped
	EvtCRCError     EventKind = 10 // radio CRC failure
	EvtRejected     EventKind = 11 // plaintext refused by policy
	EvtLocalSampled EventKind = 12 // gateway-local sensor read
)

// Event is one entry of the event ring.
type Event struct {
	Kind  EventKind
	Seq   uint32 // monotonic record number
	Value uint32
}

const (
	EventRingSize = 32 // Keep the last 32 events
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventSeq      uint32
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, RTT, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent appends an event to the ring, overwriting the oldest.
func RecordEvent(kind EventKind, value uint32) {
	eventSeq++
	idx := eventRingHead
	eventRing[idx] = Event{Kind: kind, Seq: eventSeq, Value: value}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Kind == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// LastEvent returns the most recent event of the given kind.
func LastEvent(kind EventKind) (Event, bool) {
	for i := uint8(1); i <= EventRingSize; i++ {
		evt := eventRing[(eventRingHead+EventRingSize-i)%EventRingSize]
		if evt.Kind == kind {
			return evt, true
		}
	}
	return Event{}, false
}

// EventName returns a short label for an event kind.
func EventName(kind EventKind) string {
	switch kind {
	case EvtWake:
		return "WAKE"
	case EvtSampled:
		return "SAMPLED"
	case EvtSensorError:
		return "SENSOR_ERR"
	case EvtLowBattery:
		return "LOW_BATT"
	case EvtSent:
		return "SENT"
	case EvtReceived:
		return "RECEIVED"
	case EvtForwarded:
		return "FORWARDED"
	case EvtAuthFailure:
		return "AUTH_FAIL"
	case EvtMalformed:
		return "MALFORMED"
	case EvtCRCError:
		return "CRC_ERR"
	case EvtRejected:
		return "REJECTED"
	case EvtLocalSampled:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing writes the ring through the debug writer regardless of
// the enabled flag (call after a failure).
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] #" + utoa(evt.Seq) + " " + EventName(evt.Kind) +
			" v=" + utoa(evt.Value))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	eventSeq = 0
}
