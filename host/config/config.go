//go:build !tinygo

// Package config loads the host tool configuration from a YAML file and
// the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sensornet/protocol"
)

// EnvPrefix prefixes every environment override, e.g.
// SENSORNET_SERIAL_DEVICE. The shared key is also read from KEY.
const EnvPrefix = "SENSORNET"

type Config struct {
	Key    string       `mapstructure:"key" yaml:"key"`
	Serial SerialConfig `mapstructure:"serial" yaml:"serial"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Modbus ModbusConfig `mapstructure:"modbus" yaml:"modbus"`
	Sim    SimConfig    `mapstructure:"sim" yaml:"sim"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device        string `mapstructure:"device" yaml:"device"`
	Baud          int    `mapstructure:"baud" yaml:"baud"`
	ReadTimeoutMs int    `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
}

// ---- STORE ----

// StoreConfig selects the database. An empty driver disables storage.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite | pgx
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// ---- MODBUS ----

// ModbusConfig selects the Modbus TCP server. No targets disables
// forwarding.
type ModbusConfig struct {
	Endpoint  string         `mapstructure:"endpoint" yaml:"endpoint"`
	TimeoutMs int            `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Targets   []TargetConfig `mapstructure:"targets" yaml:"targets"`
}

type TargetConfig struct {
	MCUID   string `mapstructure:"mcu_id" yaml:"mcu_id"`
	UnitID  uint8  `mapstructure:"unit_id" yaml:"unit_id"`
	Address uint16 `mapstructure:"address" yaml:"address"`
}

// ---- SIMULATOR ----

type SimConfig struct {
	Nodes       int  `mapstructure:"nodes" yaml:"nodes"`
	Rounds      int  `mapstructure:"rounds" yaml:"rounds"` // 0 runs forever
	IntervalMs  int  `mapstructure:"interval_ms" yaml:"interval_ms"`
	Plaintext   bool `mapstructure:"plaintext" yaml:"plaintext"`
	LocalSensor bool `mapstructure:"local_sensor" yaml:"local_sensor"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Key: protocol.DefaultKeyHex,
		Serial: SerialConfig{
			Device:        "/dev/ttyACM0",
			Baud:          115200,
			ReadTimeoutMs: 500,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "sensornet.db",
		},
		Modbus: ModbusConfig{
			TimeoutMs: 1000,
		},
		Sim: SimConfig{
			Nodes:      3,
			IntervalMs: 1000,
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("key", d.Key)
	v.SetDefault("serial.device", d.Serial.Device)
	v.SetDefault("serial.baud", d.Serial.Baud)
	v.SetDefault("serial.read_timeout_ms", d.Serial.ReadTimeoutMs)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("modbus.endpoint", d.Modbus.Endpoint)
	v.SetDefault("modbus.timeout_ms", d.Modbus.TimeoutMs)
	v.SetDefault("sim.nodes", d.Sim.Nodes)
	v.SetDefault("sim.rounds", d.Sim.Rounds)
	v.SetDefault("sim.interval_ms", d.Sim.IntervalMs)
	v.SetDefault("sim.plaintext", d.Sim.Plaintext)
	v.SetDefault("sim.local_sensor", d.Sim.LocalSensor)
}

// Load reads path (optional) over the defaults, then applies environment
// overrides. The result is not validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("key", EnvPrefix+"_KEY", "KEY"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML. The file holds the key, so it is private.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
