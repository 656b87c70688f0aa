package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"tiltmatrix/internal/config"
	"tiltmatrix/internal/i2c"
	"tiltmatrix/internal/sensors/icm20948"
)

type accelReader interface {
	ReadAccel() (icm20948.Accel, error)
}

// IMU reads an ICM-20948 either on a fixed ticker or, when a data-ready
// line is configured, on each interrupt edge.
type IMU struct {
	dev   accelReader
	bus   io.Closer
	tick  *time.Ticker
	ready <-chan struct{}
	drdy  io.Closer
}

func OpenIMU(cfg config.IMUConfig) (*IMU, error) {
	bus, err := i2c.OpenNumber(cfg.Bus())
	if err != nil {
		return nil, err
	}
	dev, err := icm20948.New(bus.Dev(cfg.Addr), icm20948.Config{
		FullScaleG:         cfg.FullScaleG,
		RateHz:             cfg.RateHz,
		DataReadyInterrupt: cfg.DataReady.Enable,
	})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	s := &IMU{dev: dev, bus: bus}
	if cfg.DataReady.Enable {
		ready, closer, err := watchDataReady(cfg.DataReady.Chip, cfg.DataReady.Line)
		if err != nil {
			_ = bus.Close()
			return nil, err
		}
		s.ready = ready
		s.drdy = closer
		return s, nil
	}
	s.tick = time.NewTicker(time.Second / time.Duration(cfg.RateHz))
	return s, nil
}

func (s *IMU) Next(ctx context.Context) (Sample, error) {
	var wake <-chan time.Time
	if s.tick != nil {
		wake = s.tick.C
	}
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case <-wake:
	case <-s.ready:
	}
	a, err := s.dev.ReadAccel()
	if err != nil {
		return Sample{}, err
	}
	return Sample{Time: a.Time, X: a.X, Y: a.Y, Z: a.Z}, nil
}

func (s *IMU) Close() error {
	if s.tick != nil {
		s.tick.Stop()
	}
	var firstErr error
	if s.drdy != nil {
		if err := s.drdy.Close(); err != nil {
			firstErr = fmt.Errorf("source: data-ready line: %w", err)
		}
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
