//go:build !tinygo

// Package bridge turns the gateway's serial output into readings and hands
// each one to a set of sinks.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// maxLine bounds a buffered partial line; longer input is dropped.
const maxLine = 4096

// Sink receives readings. Write is called from the bridge's read loop, one
// reading at a time.
type Sink interface {
	Write(ctx context.Context, r Reading) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Reading) error

func (f SinkFunc) Write(ctx context.Context, r Reading) error {
	return f(ctx, r)
}

// Stats counts lines handled by the bridge.
type Stats struct {
	Lines      uint64
	Readings   uint64
	Skipped    uint64 // non-report lines
	Invalid    uint64
	SinkErrors uint64
}

// Bridge reads report lines from a port and fans them out to sinks.
type Bridge struct {
	port  io.ReadCloser
	sinks []Sink
	now   func() time.Time

	mu    sync.Mutex
	stats Stats

	pending []byte

	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// New creates a bridge over port. Nothing is read until Start.
func New(port io.ReadCloser, sinks ...Sink) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		port:     port,
		sinks:    sinks,
		now:      time.Now,
		pending:  make([]byte, 0, 512),
		ctx:      ctx,
		cancel:   cancel,
		doneChan: make(chan struct{}),
	}
}

// Start launches the background read loop.
func (b *Bridge) Start() {
	go b.readLoop()
}

// Done is closed when the read loop has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.doneChan
}

// Close stops the read loop and closes the port.
func (b *Bridge) Close() error {
	b.cancel()
	err := b.port.Close()
	<-b.doneChan
	return err
}

func (b *Bridge) readLoop() {
	defer close(b.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		n, err := b.port.Read(buffer)
		if n > 0 {
			b.Feed(buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || b.ctx.Err() != nil {
				b.flush()
				return
			}
			glog.Warningf("bridge: read: %v", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// Feed splits data into lines and handles every complete one. A trailing
// partial line is kept for the next call.
func (b *Bridge) Feed(data []byte) {
	b.pending = append(b.pending, data...)
	start := 0
	for {
		i := bytes.IndexByte(b.pending[start:], '\n')
		if i < 0 {
			break
		}
		b.HandleLine(b.pending[start : start+i])
		start += i + 1
	}
	n := copy(b.pending, b.pending[start:])
	b.pending = b.pending[:n]

	if len(b.pending) > maxLine {
		glog.Warningf("bridge: dropping %d bytes without newline", len(b.pending))
		b.pending = b.pending[:0]
	}
}

func (b *Bridge) flush() {
	if len(b.pending) > 0 {
		b.HandleLine(b.pending)
		b.pending = b.pending[:0]
	}
}

// HandleLine parses one line and writes the reading to every sink. Sink
// failures are logged and counted; the other sinks still get the reading.
func (b *Bridge) HandleLine(line []byte) {
	b.count(func(s *Stats) { s.Lines++ })

	r, err := ParseLine(line, b.now())
	switch {
	case errors.Is(err, ErrNotReport):
		b.count(func(s *Stats) { s.Skipped++ })
		if len(bytes.TrimSpace(line)) > 0 && glog.V(1) {
			glog.Infof("gateway: %s", bytes.TrimSpace(line))
		}
		return
	case err != nil:
		b.count(func(s *Stats) { s.Invalid++ })
		glog.Warningf("bridge: %v", err)
		return
	}

	b.count(func(s *Stats) { s.Readings++ })
	for _, sink := range b.sinks {
		if err := sink.Write(b.ctx, r); err != nil {
			b.count(func(s *Stats) { s.SinkErrors++ })
			glog.Errorf("bridge: sink: %v", err)
		}
	}
}

func (b *Bridge) count(fn func(*Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
