// Package source delivers raw accelerometer samples (in g) from hardware,
// a serial Firmata board, a recorded log or a simulator.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiltmatrix/internal/config"
)

// ErrExhausted is returned by finite sources once every sample was
// delivered.
var ErrExhausted = errors.New("source: exhausted")

type Sample struct {
	Time    time.Time
	X, Y, Z float64
}

// Source yields one sample per call, blocking until it is available or ctx
// is done.
type Source interface {
	Next(ctx context.Context) (Sample, error)
	Close() error
}

// Open builds the source selected by cfg.Kind.
func Open(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceIMU:
		return OpenIMU(cfg.IMU)
	case config.SourceFirmata:
		return OpenFirmata(cfg.Firmata)
	case config.SourceReplay:
		return OpenReplay(cfg.Replay)
	case config.SourceSim:
		return NewSim(cfg.Sim), nil
	}
	return nil, fmt.Errorf("source: unknown kind %q", cfg.Kind)
}
