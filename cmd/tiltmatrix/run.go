package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tiltmatrix/internal/ahrs"
	"tiltmatrix/internal/config"
	"tiltmatrix/internal/firmata"
	"tiltmatrix/internal/record"
	"tiltmatrix/internal/source"
	"tiltmatrix/internal/udp"
)

type RunCmd struct {
	Config string `help:"Path to YAML config. SIGHUP reloads its estimator smoothing." default:"./tiltmatrix.yaml" type:"path"`
	Level  bool   `help:"Re-zero roll and pitch once the attitude first becomes valid."`
}

func (c *RunCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	return run(ctx, cfg, runOptions{configPath: c.Config, level: c.Level, reload: hup})
}

type runOptions struct {
	configPath string
	level      bool
	reload     <-chan os.Signal
}

var levelPoll = 100 * time.Millisecond

func run(ctx context.Context, cfg config.Config, opts runOptions) error {
	svcCfg := ahrs.Config{
		ForceSmoothing:       cfg.Estimator.ForceSmoothing,
		OrientationSmoothing: cfg.Estimator.OrientationSmoothing,
		GuardZeroZ:           cfg.Estimator.GuardZeroZ,
		PublishInterval:      cfg.GDL90.Interval,
		DeviceName:           "tiltmatrix",
	}

	if cfg.Record.Enable {
		w, err := record.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record init failed: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("record close: %v", err)
			}
		}()
		svcCfg.Recorder = w
		log.Printf("recording to %s session=%s", cfg.Record.Path, w.Session())
	}

	if cfg.GDL90.Enable {
		b, err := udp.NewBroadcaster(cfg.GDL90.Dest)
		if err != nil {
			return fmt.Errorf("udp broadcaster init failed: %w", err)
		}
		defer b.Close()
		svcCfg.Publisher = b
		log.Printf("gdl90 dest=%s interval=%s", cfg.GDL90.Dest, cfg.GDL90.Interval)
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		return fmt.Errorf("source open failed: %w", err)
	}

	svc := ahrs.New(svcCfg, src)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("source close: %v", err)
		}
	}()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	log.Printf("tiltmatrix starting source=%s", cfg.Source.Kind)

	var status <-chan time.Time
	if cfg.StatusInterval > 0 {
		t := time.NewTicker(cfg.StatusInterval)
		defer t.Stop()
		status = t.C
	}

	// Polled until the first successful level, then disabled.
	var levelTick <-chan time.Time
	if opts.level {
		t := time.NewTicker(levelPoll)
		defer t.Stop()
		levelTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("tiltmatrix stopping")
			return nil
		case <-svc.Done():
			log.Printf("source finished: %s", statusLine(svc.Snapshot(), src))
			return nil
		case <-status:
			log.Printf("status: %s", statusLine(svc.Snapshot(), src))
		case <-levelTick:
			if levelWhenValid(svc) {
				levelTick = nil
				log.Printf("attitude leveled")
			}
		case <-opts.reload:
			if err := reloadSmoothing(svc, opts.configPath); err != nil {
				log.Printf("reload failed: %v", err)
			}
		}
	}
}

// levelWhenValid re-zeros the published attitude if the estimate is valid.
func levelWhenValid(svc *ahrs.Service) bool {
	if !svc.Estimate().TransformValid {
		return false
	}
	return svc.SetLevel() == nil
}

// reloadSmoothing re-reads the config file and applies its estimator
// smoothing to the running service. Other settings need a restart.
func reloadSmoothing(svc *ahrs.Service, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	svc.SetSmoothing(cfg.Estimator.Smoothing())
	est := svc.Estimate()
	log.Printf("smoothing reloaded force=%g orientation=%g", est.ForceSmoothing, est.OrientationSmoothing)
	return nil
}

type firmataStats interface {
	LastPulse() (firmata.PulseReading, uint64)
	DecodeErrors() uint64
}

func statusLine(snap ahrs.Snapshot, src source.Source) string {
	a := snap.Attitude
	line := fmt.Sprintf("samples=%d published=%d valid=%t pitch=%.1f roll=%.1f g=%.2f",
		snap.Samples, snap.Published, a.Valid, a.PitchDeg, a.RollDeg, a.GLoad)
	if f, ok := src.(firmataStats); ok {
		if r, n := f.LastPulse(); n > 0 {
			line += " pulse=" + r.String()
		}
		line += fmt.Sprintf(" decode_errors=%d", f.DecodeErrors())
	}
	if snap.LastError != "" {
		line += " last_error=" + snap.LastError
	}
	return line
}
