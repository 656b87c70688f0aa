// Package ahrs runs the live attitude loop: it pulls accelerometer samples
// from a source, feeds the orientation estimator and publishes GDL90
// attitude frames at a fixed rate.
package ahrs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tiltmatrix/internal/gdl90"
	"tiltmatrix/internal/orient"
	"tiltmatrix/internal/source"
)

// Publisher receives encoded GDL90 frames, one datagram per frame.
type Publisher interface {
	Send(frames ...[]byte) error
}

// Recorder persists raw samples for later replay.
type Recorder interface {
	WriteSample(now time.Time, x, y, z float64) error
}

type Config struct {
	// Nil means the estimator default; an explicit 0 disables smoothing.
	ForceSmoothing       *float64
	OrientationSmoothing *float64
	GuardZeroZ           bool

	// PublishInterval paces AHRS frames. Defaults to 200ms.
	PublishInterval time.Duration
	DeviceName      string

	Publisher Publisher
	Recorder  Recorder
}

type Snapshot struct {
	Estimate orient.Snapshot
	Attitude gdl90.Attitude

	Samples      uint64
	Published    uint64
	LastSampleAt time.Time
	Exhausted    bool

	LastError string
	UpdatedAt time.Time
}

var (
	now        = time.Now
	retryDelay = 100 * time.Millisecond
)

const heartbeatEvery = time.Second

type Service struct {
	cfg Config
	src source.Source
	est *orient.Locked

	mu   sync.RWMutex
	snap Snapshot

	rollOffsetDeg  float64
	pitchOffsetDeg float64

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	wg        sync.WaitGroup
}

func New(cfg Config, src source.Source) *Service {
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 200 * time.Millisecond
	}
	force, orientation := orient.DefaultForceSmoothing, orient.DefaultOrientationSmoothing
	if cfg.ForceSmoothing != nil {
		force = *cfg.ForceSmoothing
	}
	if cfg.OrientationSmoothing != nil {
		orientation = *cfg.OrientationSmoothing
	}
	opts := []orient.Option{orient.WithSmoothing(force, orientation)}
	if cfg.GuardZeroZ {
		opts = append(opts, orient.WithZeroZGuard())
	}
	return &Service{
		cfg:    cfg,
		src:    src,
		est:    orient.NewLocked(opts...),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the sample and publish loops. It returns immediately.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	if s.src == nil {
		return fmt.Errorf("ahrs: source is nil")
	}
	started := false
	s.startOnce.Do(func() {
		started = true
		ctx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-ctx.Done():
			case <-s.stopCh:
			}
			cancel()
		}()
		s.wg.Add(1)
		go s.readLoop(ctx)
		if s.cfg.Publisher != nil {
			s.wg.Add(1)
			go s.publishLoop(ctx)
		}
	})
	if !started {
		return fmt.Errorf("ahrs: already started")
	}
	return nil
}

// Done is closed once the source stops producing samples, either because
// it was exhausted or because the service was stopped.
func (s *Service) Done() <-chan struct{} { return s.doneCh }

// Close stops both loops, waits for them and closes the source.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if s.src != nil {
			err = s.src.Close()
		}
	})
	return err
}

// Snapshot recomputes the attitude from the current estimate and returns
// the service state. It does not depend on the publish loop running.
func (s *Service) Snapshot() Snapshot {
	s.refresh(now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Estimate returns the current estimator state without waiting for the
// next publish tick.
func (s *Service) Estimate() orient.Snapshot { return s.est.Snapshot() }

func (s *Service) SetSmoothing(force, orientation float64) {
	s.est.SetForceSmoothing(force)
	s.est.SetOrientationSmoothing(orientation)
}

// SetLevel re-zeros published roll/pitch so the current attitude becomes
// (0,0). The estimator itself is untouched.
func (s *Service) SetLevel() error {
	est := s.est.Snapshot()
	if !est.TransformValid {
		return fmt.Errorf("ahrs: attitude not valid")
	}
	att := gdl90.AttitudeFromSnapshot(est)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollOffsetDeg = -att.RollDeg
	s.pitchOffsetDeg = -att.PitchDeg
	return nil
}

func (s *Service) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.doneCh)

	for {
		smp, err := s.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, source.ErrExhausted) {
				s.mu.Lock()
				s.snap.Exhausted = true
				s.mu.Unlock()
				return
			}
			s.setErr("source: " + err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		s.est.Update(smp.X, smp.Y, smp.Z)

		at := smp.Time
		if at.IsZero() {
			at = now()
		}
		if s.cfg.Recorder != nil {
			if err := s.cfg.Recorder.WriteSample(at, smp.X, smp.Y, smp.Z); err != nil {
				s.setErr("record: " + err.Error())
			}
		}

		s.mu.Lock()
		s.snap.Samples++
		s.snap.LastSampleAt = at
		s.mu.Unlock()
	}
}

func (s *Service) publishLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.PublishInterval)
	defer t.Stop()

	var lastHeartbeat time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ts := now()
		att := s.refresh(ts)

		frames := [][]byte{gdl90.AHRSLEFrame(att), gdl90.ForeFlightAHRSFrame(att)}
		if lastHeartbeat.IsZero() || ts.Sub(lastHeartbeat) >= heartbeatEvery {
			lastHeartbeat = ts
			frames = append(frames,
				gdl90.HeartbeatFrame(ts),
				gdl90.StratuxHeartbeatFrame(att.Valid),
				gdl90.ForeFlightIDFrame("", s.cfg.DeviceName),
			)
		}
		if err := s.cfg.Publisher.Send(frames...); err != nil {
			s.setErr("publish: " + err.Error())
			continue
		}
		s.mu.Lock()
		s.snap.Published++
		s.mu.Unlock()
	}
}

// refresh takes an estimator snapshot, applies the level offsets and
// stores the result.
func (s *Service) refresh(ts time.Time) gdl90.Attitude {
	est := s.est.Snapshot()
	att := gdl90.AttitudeFromSnapshot(est)

	s.mu.Lock()
	defer s.mu.Unlock()
	if att.Valid {
		att.RollDeg += s.rollOffsetDeg
		att.PitchDeg += s.pitchOffsetDeg
	}
	s.snap.Estimate = est
	s.snap.Attitude = att
	s.snap.UpdatedAt = ts
	return att
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	s.snap.LastError = msg
	s.mu.Unlock()
}
