//go:build !tinygo

// Command sensornet-sim runs simulated sensor nodes and a gateway on a
// shared simulated air interface. Gateway report lines go through the
// same bridge and sinks as sensornet-host, or to stdout when no sink is
// configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"sensornet/core"
	"sensornet/host/bridge"
	"sensornet/host/config"
	"sensornet/host/forward"
	"sensornet/host/store"
	"sensornet/protocol"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	nodes      = flag.Int("nodes", 0, "Number of simulated nodes (overrides config)")
	rounds     = flag.Int("rounds", 0, "Rounds to run, 0 runs until interrupted (overrides config)")
	interval   = flag.Duration("interval", 0, "Wall time between rounds (overrides config)")
	plaintext  = flag.Bool("plaintext", false, "Send unencrypted packets and let the gateway accept them")
	local      = flag.Bool("local", false, "Give the gateway a local SHTC3")
)

type simOptions struct {
	Nodes       int
	Rounds      int
	Interval    time.Duration
	Plaintext   bool
	LocalSensor bool
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Errorf("sensornet-sim: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	key, err := protocol.ParseKey(cfg.Key)
	if err != nil {
		return err
	}

	core.SetDebugWriter(func(s string) { glog.V(2).Info(s) })
	core.SetDebugEnabled(bool(glog.V(2)))

	sinks, closeSinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	var (
		out io.Writer = os.Stdout
		pw  *io.PipeWriter
		b   *bridge.Bridge
	)
	if len(sinks) > 0 {
		var pr *io.PipeReader
		pr, pw = io.Pipe()
		b = bridge.New(pr, append(sinks, bridge.SinkFunc(logReading))...)
		b.Start()
		out = pw
	}

	opts := simOptions{
		Nodes:       cfg.Sim.Nodes,
		Rounds:      cfg.Sim.Rounds,
		Interval:    time.Duration(cfg.Sim.IntervalMs) * time.Millisecond,
		Plaintext:   cfg.Sim.Plaintext,
		LocalSensor: cfg.Sim.LocalSensor,
	}
	s, err := newSimulation(opts, key, out)
	if err != nil {
		return err
	}
	glog.Infof("simulating %d nodes (plaintext=%v local=%v)", opts.Nodes, opts.Plaintext, opts.LocalSensor)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

loop:
	for opts.Rounds == 0 || s.round < opts.Rounds {
		for _, err := range s.step() {
			glog.Warningf("round %d: %v", s.round-1, err)
		}
		select {
		case <-sig:
			break loop
		case <-time.After(opts.Interval):
		}
	}

	if b != nil {
		pw.Close()
		<-b.Done()
		st := b.Stats()
		glog.Infof("bridge: lines=%d readings=%d skipped=%d invalid=%d sink_errors=%d",
			st.Lines, st.Readings, st.Skipped, st.Invalid, st.SinkErrors)
		b.Close()
	}
	gs := s.gw.Stats()
	glog.Infof("gateway: received=%d forwarded=%d auth_failures=%d malformed=%d local=%d",
		gs.Received, gs.Forwarded, gs.AuthFailures, gs.Malformed, gs.LocalSamples)
	if glog.V(1) {
		core.DumpEventRing()
	}
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nodes":
			cfg.Sim.Nodes = *nodes
		case "rounds":
			cfg.Sim.Rounds = *rounds
		case "interval":
			cfg.Sim.IntervalMs = int(*interval / time.Millisecond)
		case "plaintext":
			cfg.Sim.Plaintext = *plaintext
		case "local":
			cfg.Sim.LocalSensor = *local
		}
	})
}

func openSinks(cfg *config.Config) ([]bridge.Sink, func(), error) {
	var (
		sinks  []bridge.Sink
		closer []func() error
	)
	closeAll := func() {
		for i := len(closer) - 1; i >= 0; i-- {
			if err := closer[i](); err != nil {
				glog.Warningf("close: %v", err)
			}
		}
	}

	if cfg.Store.Driver != "" {
		st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, st)
		closer = append(closer, st.Close)
	}

	if len(cfg.Modbus.Targets) > 0 {
		client, err := forward.Dial(forward.ClientConfig{
			Endpoint: cfg.Modbus.Endpoint,
			Timeout:  time.Duration(cfg.Modbus.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("modbus %s: %w", cfg.Modbus.Endpoint, err)
		}
		sinks = append(sinks, forward.New(client, cfg.Modbus.ForwardTargets()))
		closer = append(closer, client.Close)
	}
	return sinks, closeAll, nil
}

func logReading(_ context.Context, r bridge.Reading) error {
	if glog.V(1) {
		glog.Infof("%s #%d", r.MCUID(), r.Index())
	}
	return nil
}
