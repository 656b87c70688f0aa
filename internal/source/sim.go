package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"tiltmatrix/internal/config"
)

// Sim produces a 1 g vector slowly tilting in pitch and roll, plus
// gaussian noise. The signal depends only on the sample index, so a fixed
// seed gives a reproducible stream.
type Sim struct {
	cfg    config.SimConfig
	rng    *rand.Rand
	ticker *time.Ticker
	tick   <-chan time.Time
	n      int64
}

func NewSim(cfg config.SimConfig) *Sim {
	s := newSim(cfg, nil)
	s.ticker = time.NewTicker(time.Second / time.Duration(cfg.RateHz))
	s.tick = s.ticker.C
	return s
}

func newSim(cfg config.SimConfig, tick <-chan time.Time) *Sim {
	return &Sim{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), tick: tick}
}

// Angles returns the true pitch and roll (degrees) of sample n.
func (s *Sim) Angles(n int64) (pitchDeg, rollDeg float64) {
	t := float64(n) / float64(s.cfg.RateHz)
	w := 2 * math.Pi * t / s.cfg.Period.Seconds()
	return s.cfg.TiltDeg * math.Sin(w), 0.5 * s.cfg.TiltDeg * math.Sin(2*w)
}

// Gravity returns the unit vector a level-mounted sensor would read with
// the given attitude, matching pitch = atan2(y, -z) and roll = atan2(x, -z).
func Gravity(pitchDeg, rollDeg float64) (x, y, z float64) {
	tp := math.Tan(pitchDeg * math.Pi / 180)
	tr := math.Tan(rollDeg * math.Pi / 180)
	z = -1 / math.Sqrt(1+tp*tp+tr*tr)
	return -z * tr, -z * tp, z
}

func (s *Sim) Next(ctx context.Context) (Sample, error) {
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case <-s.tick:
	}
	pitch, roll := s.Angles(s.n)
	s.n++
	x, y, z := Gravity(pitch, roll)
	if s.cfg.NoiseG > 0 {
		x += s.rng.NormFloat64() * s.cfg.NoiseG
		y += s.rng.NormFloat64() * s.cfg.NoiseG
		z += s.rng.NormFloat64() * s.cfg.NoiseG
	}
	return Sample{Time: time.Now(), X: x, Y: y, Z: z}, nil
}

func (s *Sim) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
