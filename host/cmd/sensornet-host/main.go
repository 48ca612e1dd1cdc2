// Command sensornet-host reads gateway report lines from a serial port,
// stores every reading and forwards mapped nodes to Modbus TCP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"sensornet/host/bridge"
	"sensornet/host/config"
	"sensornet/host/forward"
	"sensornet/host/serial"
	"sensornet/host/store"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	initPath   = flag.String("init", "", "Write the default configuration to this path and exit")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if *initPath != "" {
		if err := config.Save(*initPath, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", *initPath)
		return
	}

	if err := run(); err != nil {
		glog.Errorf("sensornet-host: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var sinks []bridge.Sink

	if cfg.Store.Driver != "" {
		st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
		glog.Infof("storing readings in %s (%s)", cfg.Store.DSN, cfg.Store.Driver)
	}

	if len(cfg.Modbus.Targets) > 0 {
		client, err := forward.Dial(forward.ClientConfig{
			Endpoint: cfg.Modbus.Endpoint,
			Timeout:  time.Duration(cfg.Modbus.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("modbus %s: %w", cfg.Modbus.Endpoint, err)
		}
		defer client.Close()
		sinks = append(sinks, forward.New(client, cfg.Modbus.ForwardTargets()))
		glog.Infof("forwarding %d nodes to %s", len(cfg.Modbus.Targets), cfg.Modbus.Endpoint)
	}

	sinks = append(sinks, bridge.SinkFunc(logReading))

	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	// drop whatever the gateway wrote before we attached
	if err := port.Flush(); err != nil {
		glog.Warningf("flush %s: %v", cfg.Serial.Device, err)
	}
	glog.Infof("listening on %s at %d baud", cfg.Serial.Device, cfg.Serial.Baud)

	b := bridge.New(port, sinks...)
	b.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		glog.Infof("received %v, shutting down", s)
	case <-b.Done():
		glog.Warning("serial port closed")
	}

	if err := b.Close(); err != nil {
		glog.V(1).Infof("close serial: %v", err)
	}
	st := b.Stats()
	glog.Infof("lines=%d readings=%d skipped=%d invalid=%d sink_errors=%d",
		st.Lines, st.Readings, st.Skipped, st.Invalid, st.SinkErrors)
	return nil
}

func logReading(_ context.Context, r bridge.Reading) error {
	if !glog.V(1) {
		return nil
	}
	src := "radio"
	if r.Local() {
		src = "local"
	}
	glog.Infof("%s %s #%d", src, r.MCUID(), r.Index())
	return nil
}
