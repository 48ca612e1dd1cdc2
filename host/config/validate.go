//go:build !tinygo

package config

import (
	"fmt"

	"sensornet/host/forward"
	"sensornet/host/store"
	"sensornet/protocol"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if _, err := protocol.ParseKey(cfg.Key); err != nil {
		return fmt.Errorf("key: %w", err)
	}

	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial: baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeoutMs < 0 {
		return fmt.Errorf("serial: read_timeout_ms must not be negative")
	}

	switch cfg.Store.Driver {
	case "":
	case store.DriverSQLite, store.DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store: driver %q needs a dsn", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unsupported driver %q", cfg.Store.Driver)
	}

	if err := validateModbus(&cfg.Modbus); err != nil {
		return err
	}

	if cfg.Sim.Nodes < 1 || cfg.Sim.Nodes > 64 {
		return fmt.Errorf("sim: nodes must be 1..64, got %d", cfg.Sim.Nodes)
	}
	if cfg.Sim.Rounds < 0 || cfg.Sim.IntervalMs < 0 {
		return fmt.Errorf("sim: rounds and interval_ms must not be negative")
	}
	return nil
}

func validateModbus(m *ModbusConfig) error {
	if len(m.Targets) == 0 {
		return nil
	}
	if m.Endpoint == "" {
		return fmt.Errorf("modbus: targets are set but no endpoint is defined")
	}

	type span struct {
		start, end uint32
		mcu        string
	}
	seen := make(map[string]bool)
	spans := make(map[uint8][]span)

	for _, t := range m.Targets {
		if !validMCUID(t.MCUID) {
			return fmt.Errorf("modbus: target %q: mcu_id must look like pppppppp-dddddddddddddddd", t.MCUID)
		}
		if seen[t.MCUID] {
			return fmt.Errorf("modbus: target %q listed twice", t.MCUID)
		}
		seen[t.MCUID] = true

		s := span{start: uint32(t.Address), end: uint32(t.Address) + forward.BlockSize, mcu: t.MCUID}
		if s.end > 0x10000 {
			return fmt.Errorf("modbus: target %q: block at %d runs past register 65535", t.MCUID, t.Address)
		}
		for _, o := range spans[t.UnitID] {
			if s.start < o.end && o.start < s.end {
				return fmt.Errorf(
					"modbus: unit %d: blocks of %q and %q overlap",
					t.UnitID, o.mcu, t.MCUID,
				)
			}
		}
		spans[t.UnitID] = append(spans[t.UnitID], s)
	}
	return nil
}

func validMCUID(s string) bool {
	if len(s) != 25 || s[8] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 8 {
			continue
		}
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ForwardTargets converts the Modbus targets for the forwarder.
func (m *ModbusConfig) ForwardTargets() []forward.Target {
	out := make([]forward.Target, 0, len(m.Targets))
	for _, t := range m.Targets {
		out = append(out, forward.Target{MCUID: t.MCUID, UnitID: t.UnitID, Address: t.Address})
	}
	return out
}
