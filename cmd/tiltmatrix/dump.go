package main

import (
	"fmt"
	"io"
	"time"

	"tiltmatrix/internal/orient"
	"tiltmatrix/internal/record"
)

type DumpCmd struct {
	Log string `arg:"" type:"existingfile" help:"Sample log to replay."`

	Every                int     `help:"Print every Nth sample." default:"1"`
	ForceSmoothing       float64 `help:"Force smoothing in [0,1]." default:"0.1"`
	OrientationSmoothing float64 `help:"Orientation smoothing in [0,1]." default:"0.9"`
	GuardZeroZ           bool    `help:"Use a fallback axis when the vertical component is zero."`
	Speed                float64 `help:"Replay at this multiple of real time; 0 runs unpaced."`
}

type noSleep struct{}

func (noSleep) Sleep(time.Duration) {}

func (c *DumpCmd) Run(out io.Writer) error {
	if c.Every < 1 {
		return fmt.Errorf("dump: --every must be >= 1")
	}
	if c.Speed < 0 {
		return fmt.Errorf("dump: --speed must be >= 0")
	}
	recs, session, err := record.ReadFile(c.Log)
	if err != nil {
		return err
	}
	if session != "" {
		fmt.Fprintf(out, "# session %s\n", session)
	}

	opts := []orient.Option{orient.WithSmoothing(c.ForceSmoothing, c.OrientationSmoothing)}
	if c.GuardZeroZ {
		opts = append(opts, orient.WithZeroZGuard())
	}
	e := orient.New(opts...)

	var sleeper record.Sleeper = noSleep{}
	speed := c.Speed
	if speed > 0 {
		sleeper = nil
	} else {
		speed = 1
	}

	n := 0
	return record.Play(recs, speed, false, sleeper, func(r record.Record) error {
		e.Update(r.X, r.Y, r.Z)
		n++
		if (n-1)%c.Every != 0 {
			return nil
		}
		_, err := fmt.Fprintln(out, dumpLine(n, r.At, e.Snapshot()))
		return err
	})
}

func dumpLine(n int, at time.Duration, s orient.Snapshot) string {
	line := fmt.Sprintf("%d t=%s force=%s pitch=%.2f roll=%.2f",
		n, at, fmtVec(s.Force), s.Orientation.X, s.Orientation.Y)
	if !s.TransformValid {
		return line + " basis=invalid"
	}
	m := s.Transform
	return line + fmt.Sprintf(" basis=%s|%s|%s", fmtVec(m.Col(0)), fmtVec(m.Col(1)), fmtVec(m.Col(2)))
}

func fmtVec(v orient.Vec4) string {
	return fmt.Sprintf("%.4f,%.4f,%.4f", v.X, v.Y, v.Z)
}
