//go:build !tinygo

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensornet/host/bridge"
	"sensornet/host/store"
	"sensornet/protocol"
)

func readings(t *testing.T, out *bytes.Buffer) []bridge.Reading {
	t.Helper()
	var rs []bridge.Reading
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		r, err := bridge.ParseLine(sc.Bytes(), time.Now())
		require.NoError(t, err, "line %q", sc.Text())
		rs = append(rs, r)
	}
	return rs
}

func TestSimulationRounds(t *testing.T) {
	out := &bytes.Buffer{}
	s, err := newSimulation(simOptions{Nodes: 3, LocalSensor: true}, protocol.DefaultKey(), out)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.Empty(t, s.step())
	}

	rs := readings(t, out)
	require.Len(t, rs, 4*4)

	perNode := make(map[string][]uint32)
	local := 0
	for _, r := range rs {
		if r.Local() {
			local++
			assert.Equal(t, "00052840-5e4a0000000000ff", r.MCUID())
			continue
		}
		assert.True(t, r.Line.Encrypted)
		require.NotNil(t, r.Record)
		perNode[r.MCUID()] = append(perNode[r.MCUID()], r.Index())
	}
	assert.Equal(t, 4, local)
	assert.Len(t, perNode, 3)
	assert.Equal(t, []uint32{0, 1, 2, 3}, perNode["00052810-5e4a000000000001"])

	st := s.gw.Stats()
	assert.Equal(t, uint32(12), st.Forwarded)
	assert.Equal(t, uint32(4), st.LocalSamples)
	assert.False(t, s.local.Awake(), "local sensor is put back to sleep")
}

func TestSimulationPlaintext(t *testing.T) {
	out := &bytes.Buffer{}
	s, err := newSimulation(simOptions{Nodes: 2, Plaintext: true}, protocol.DefaultKey(), out)
	require.NoError(t, err)
	assert.Empty(t, s.step())

	rs := readings(t, out)
	require.Len(t, rs, 2)
	for _, r := range rs {
		assert.False(t, r.Line.Encrypted)
	}
	assert.Equal(t, "climate-ext", rs[0].Line.Message.PacketType)
	assert.Equal(t, "climate", rs[1].Line.Message.PacketType)
}

func TestSimulationIntoStore(t *testing.T) {
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	defer st.Close()

	pr, pw := io.Pipe()
	b := bridge.New(pr, st)
	b.Start()

	s, err := newSimulation(simOptions{Nodes: 2}, protocol.DefaultKey(), pw)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Empty(t, s.step())
	}
	require.NoError(t, pw.Close())
	<-b.Done()
	assert.Equal(t, bridge.Stats{Lines: 10, Readings: 10}, b.Stats())

	ctx := context.Background()
	row, err := st.Latest(ctx, "00052810-5e4a000000000002")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), row.Seq)

	gaps, err := st.Gaps(ctx, "00052810-5e4a000000000001")
	require.NoError(t, err)
	assert.Empty(t, gaps)
}
