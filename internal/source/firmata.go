package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"tiltmatrix/internal/config"
	"tiltmatrix/internal/firmata"
)

// Firmata reads accelerometer sysex reports from a board on a serial port.
// Pulse sensor reports sharing the link are decoded and kept as the latest
// reading.
type Firmata struct {
	port io.ReadWriteCloser
	cfg  config.FirmataConfig

	samples chan Sample
	stop    chan struct{}
	done    chan struct{}
	err     error // set before done is closed

	mu        sync.Mutex
	lastPulse firmata.PulseReading
	pulses    uint64
	decodeErr uint64

	closeOnce sync.Once
}

func OpenFirmata(cfg config.FirmataConfig) (*Firmata, error) {
	port, err := firmata.OpenSerial(cfg.Port, cfg.Serial)
	if err != nil {
		return nil, err
	}
	return newFirmata(port, cfg)
}

func newFirmata(port io.ReadWriteCloser, cfg config.FirmataConfig) (*Firmata, error) {
	if err := firmata.StartReading(port, cfg.AccelID); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("source: start accel reports: %w", err)
	}
	if err := firmata.StartReading(port, cfg.PulseID); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("source: start pulse reports: %w", err)
	}
	s := &Firmata{
		port:    port,
		cfg:     cfg,
		samples: make(chan Sample),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Firmata) readLoop() {
	defer close(s.done)
	sc := firmata.NewScanner(s.port)
	for {
		msg, err := sc.Next()
		if err != nil {
			s.err = fmt.Errorf("source: firmata read: %w", err)
			return
		}
		id, _ := firmata.SensorID(msg)
		switch id {
		case s.cfg.AccelID:
			x, y, z, err := firmata.DecodeAccel(msg, s.cfg.AccelID, s.cfg.CountsPerG)
			if err != nil {
				s.countDecodeErr()
				continue
			}
			select {
			case s.samples <- Sample{Time: time.Now(), X: x, Y: y, Z: z}:
			case <-s.stop:
				return
			}
		case s.cfg.PulseID:
			p, err := firmata.DecodePulse(msg, s.cfg.PulseID)
			if err != nil {
				s.countDecodeErr()
				continue
			}
			s.mu.Lock()
			s.lastPulse = p
			s.pulses++
			s.mu.Unlock()
		}
	}
}

func (s *Firmata) countDecodeErr() {
	s.mu.Lock()
	s.decodeErr++
	s.mu.Unlock()
}

func (s *Firmata) Next(ctx context.Context) (Sample, error) {
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case smp := <-s.samples:
		return smp, nil
	case <-s.done:
		if s.err == nil {
			return Sample{}, errors.New("source: firmata closed")
		}
		return Sample{}, s.err
	}
}

// LastPulse returns the most recent pulse report and how many were seen.
func (s *Firmata) LastPulse() (firmata.PulseReading, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPulse, s.pulses
}

// DecodeErrors counts reports addressed to a known sensor that failed to
// decode.
func (s *Firmata) DecodeErrors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodeErr
}

func (s *Firmata) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = firmata.StopReading(s.port, s.cfg.AccelID)
		_ = firmata.StopReading(s.port, s.cfg.PulseID)
		err = s.port.Close()
	})
	return err
}
