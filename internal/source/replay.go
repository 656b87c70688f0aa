package source

import (
	"context"
	"time"

	"tiltmatrix/internal/config"
	"tiltmatrix/internal/record"
)

// Replay plays back a recorded sample log with its original spacing.
type Replay struct {
	cur     *record.Cursor
	session string
}

func OpenReplay(cfg config.ReplayConfig) (*Replay, error) {
	recs, session, err := record.ReadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return newReplay(recs, session, cfg.Speed, cfg.Loop)
}

func newReplay(recs []record.Record, session string, speed float64, loop bool) (*Replay, error) {
	cur, err := record.NewCursor(recs, speed, loop)
	if err != nil {
		return nil, err
	}
	return &Replay{cur: cur, session: session}, nil
}

// Session is the id of the recording being played.
func (s *Replay) Session() string { return s.session }

func (s *Replay) Next(ctx context.Context) (Sample, error) {
	r, wait, ok := s.cur.Next()
	if !ok {
		return Sample{}, ErrExhausted
	}
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	return Sample{Time: time.Now(), X: r.X, Y: r.Y, Z: r.Z}, nil
}

func (s *Replay) Close() error { return nil }
