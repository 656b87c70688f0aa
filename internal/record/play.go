package record

import (
	"errors"
	"fmt"
	"time"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Cursor walks records in order, yielding each sample with the wait that
// should precede it. START markers reset the origin.
type Cursor struct {
	recs  []Record
	speed float64
	loop  bool

	i        int
	origin   time.Duration
	lastAt   time.Duration
	haveLast bool
}

// NewCursor validates playback parameters. speed: 1.0 = real time,
// 2.0 = twice as fast.
func NewCursor(recs []Record, speed float64, loop bool) (*Cursor, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("record: speed must be > 0")
	}
	samples := 0
	for _, r := range recs {
		if !r.Start {
			samples++
		}
	}
	if samples == 0 {
		return nil, errors.New("record: no samples")
	}
	return &Cursor{recs: recs, speed: speed, loop: loop}, nil
}

// Next returns the next sample and how long to wait before delivering it.
// ok is false once a non-looping cursor is exhausted.
func (c *Cursor) Next() (rec Record, wait time.Duration, ok bool) {
	for {
		if c.i >= len(c.recs) {
			if !c.loop {
				return Record{}, 0, false
			}
			c.i = 0
			c.origin = 0
			c.haveLast = false
		}
		r := c.recs[c.i]
		c.i++
		if r.Start {
			c.origin = r.At
			c.lastAt = 0
			c.haveLast = false
			continue
		}

		at := r.At - c.origin
		if at < 0 {
			at = 0
		}
		if c.haveLast {
			wait = at - c.lastAt
			if wait < 0 {
				wait = 0
			}
			wait = time.Duration(float64(wait) / c.speed)
		}
		c.lastAt = at
		c.haveLast = true
		return r, wait, true
	}
}

// Play replays records with their relative timing, invoking cb for every
// sample.
func Play(recs []Record, speed float64, loop bool, sleeper Sleeper, cb func(Record) error) error {
	if cb == nil {
		return errors.New("record: callback is nil")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	c, err := NewCursor(recs, speed, loop)
	if err != nil {
		return err
	}
	for {
		r, wait, ok := c.Next()
		if !ok {
			return nil
		}
		if wait > 0 {
			sleeper.Sleep(wait)
		}
		if err := cb(r); err != nil {
			return err
		}
	}
}
