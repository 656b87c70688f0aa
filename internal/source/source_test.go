package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiltmatrix/internal/config"
	"tiltmatrix/internal/firmata"
	"tiltmatrix/internal/record"
	"tiltmatrix/internal/sensors/icm20948"
)

type fakeAccel struct {
	reads []icm20948.Accel
	err   error
}

func (f *fakeAccel) ReadAccel() (icm20948.Accel, error) {
	if f.err != nil {
		return icm20948.Accel{}, f.err
	}
	a := f.reads[0]
	f.reads = f.reads[1:]
	return a, nil
}

func TestIMU_ReadsOnDataReady(t *testing.T) {
	ready := make(chan struct{}, 1)
	now := time.Now()
	s := &IMU{dev: &fakeAccel{reads: []icm20948.Accel{{Time: now, X: 0.1, Y: 0.2, Z: -0.9}}}, ready: ready}

	ready <- struct{}{}
	smp, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sample{Time: now, X: 0.1, Y: 0.2, Z: -0.9}, smp)
	require.NoError(t, s.Close())
}

func TestIMU_ContextCancelled(t *testing.T) {
	s := &IMU{dev: &fakeAccel{}, ready: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIMU_ReadError(t *testing.T) {
	ready := make(chan struct{}, 1)
	ready <- struct{}{}
	s := &IMU{dev: &fakeAccel{err: errors.New("nack")}, ready: ready}
	_, err := s.Next(context.Background())
	assert.EqualError(t, err, "nack")
}

type fakePort struct {
	r *io.PipeReader

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *fakePort) bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func split16(v int) []byte {
	lo := v & 0xFF
	hi := (v >> 8) & 0xFF
	return []byte{byte(lo & 0x7F), byte(lo >> 7), byte(hi & 0x7F), byte(hi >> 7)}
}

func accelFrame(id byte, x, y, z int16) []byte {
	out := []byte{firmata.StartSysex, id}
	for _, v := range []int16{x, y, z} {
		out = append(out, split16(int(uint16(v)))...)
	}
	return append(out, firmata.EndSysex)
}

func firmataCfg() config.FirmataConfig {
	return config.FirmataConfig{AccelID: firmata.DefaultAccelID, PulseID: firmata.DefaultPulseID, CountsPerG: firmata.DefaultCountsPerG}
}

func TestFirmata_DecodesAccelAndPulse(t *testing.T) {
	pr, pw := io.Pipe()
	port := &fakePort{r: pr}
	s, err := newFirmata(port, firmataCfg())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF0, 0x0D, 0x01, 0xF7, 0xF0, 0x0E, 0x01, 0xF7}, port.bytes())

	go func() {
		pulse := append([]byte{firmata.StartSysex, firmata.DefaultPulseID, firmata.BPMID, 0x00}, split16(64)...)
		_, _ = pw.Write(append(pulse, firmata.EndSysex))
		// Short accel report is counted and skipped.
		_, _ = pw.Write([]byte{firmata.StartSysex, firmata.DefaultAccelID, 0x01, firmata.EndSysex})
		_, _ = pw.Write(accelFrame(firmata.DefaultAccelID, 0, 4096, -8192))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	smp, err := s.Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0, smp.X, 1e-12)
	assert.InDelta(t, 0.5, smp.Y, 1e-12)
	assert.InDelta(t, -1, smp.Z, 1e-12)

	p, n := s.LastPulse()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, firmata.PulseReading{Type: firmata.BPMID, Value: 64}, p)
	assert.Equal(t, uint64(1), s.DecodeErrors())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, port.closed)
	assert.True(t, bytes.HasSuffix(port.bytes(), []byte{0xF0, 0x0D, 0x02, 0xF7, 0xF0, 0x0E, 0x02, 0xF7}))

	_, err = s.Next(ctx)
	assert.Error(t, err)
}

func TestFirmata_ReadErrorEndsStream(t *testing.T) {
	pr, pw := io.Pipe()
	s, err := newFirmata(&fakePort{r: pr}, firmataCfg())
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	_, err = s.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
	_ = s.Close()
}

func TestReplay_DeliversThenExhausts(t *testing.T) {
	recs := []record.Record{
		{Start: true},
		{At: 0, X: 0.1, Y: 0.2, Z: -1},
		{At: time.Millisecond, X: 0.3, Y: 0.4, Z: -1},
	}
	s, err := newReplay(recs, "abc", 1000, false)
	require.NoError(t, err)
	assert.Equal(t, "abc", s.Session())

	ctx := context.Background()
	smp, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.1, smp.X)
	smp, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.3, smp.X)

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.NoError(t, s.Close())
}

func TestReplay_CancelledWhileWaiting(t *testing.T) {
	recs := []record.Record{{At: 0}, {At: time.Hour}}
	s, err := newReplay(recs, "", 1, false)
	require.NoError(t, err)
	_, err = s.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGravity_MatchesAngleConvention(t *testing.T) {
	for _, a := range [][2]float64{{0, 0}, {10, -5}, {-30, 20}, {45, 45}} {
		x, y, z := Gravity(a[0], a[1])
		assert.InDelta(t, 1, math.Sqrt(x*x+y*y+z*z), 1e-12)
		assert.InDelta(t, a[0], math.Atan2(y, -z)*180/math.Pi, 1e-9)
		assert.InDelta(t, a[1], math.Atan2(x, -z)*180/math.Pi, 1e-9)
	}
}

func TestSim_DeterministicWithSeed(t *testing.T) {
	cfg := config.SimConfig{RateHz: 50, TiltDeg: 20, Period: 10 * time.Second, NoiseG: 0.02, Seed: 42}
	tick := make(chan time.Time, 10)
	a := newSim(cfg, tick)
	b := newSim(cfg, tick)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		tick <- time.Time{}
		sa, err := a.Next(ctx)
		require.NoError(t, err)
		tick <- time.Time{}
		sb, err := b.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, [3]float64{sa.X, sa.Y, sa.Z}, [3]float64{sb.X, sb.Y, sb.Z})
	}
	assert.NoError(t, a.Close())
}

func TestSim_NoiselessFollowsAngles(t *testing.T) {
	cfg := config.SimConfig{RateHz: 10, TiltDeg: 20, Period: 4 * time.Second, Seed: 1}
	tick := make(chan time.Time, 1)
	s := newSim(cfg, tick)

	for n := int64(0); n < 12; n++ {
		tick <- time.Time{}
		smp, err := s.Next(context.Background())
		require.NoError(t, err)
		pitch, roll := s.Angles(n)
		assert.InDelta(t, pitch, math.Atan2(smp.Y, -smp.Z)*180/math.Pi, 1e-9)
		assert.InDelta(t, roll, math.Atan2(smp.X, -smp.Z)*180/math.Pi, 1e-9)
	}
	// A quarter period in, pitch peaks at the configured tilt.
	pitch, _ := s.Angles(10)
	assert.InDelta(t, 20, pitch, 1e-9)
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(config.SourceConfig{Kind: "gps"})
	assert.Error(t, err)
}

func TestOpen_Replay(t *testing.T) {
	_, err := Open(config.SourceConfig{Kind: config.SourceReplay, Replay: config.ReplayConfig{Path: "/nonexistent/samples.log", Speed: 1}})
	assert.Error(t, err)
}
