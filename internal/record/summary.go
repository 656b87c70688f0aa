package record

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Summary struct {
	Segments    int
	Samples     int
	MaxDuration time.Duration

	MinMagnitude  float64
	MaxMagnitude  float64
	MeanMagnitude float64
}

func Summarize(recs []Record) Summary {
	var s Summary
	var origin time.Duration
	var sum float64
	segments := 0
	for _, r := range recs {
		if r.Start {
			segments++
			origin = r.At
			continue
		}
		at := r.At - origin
		if at > s.MaxDuration {
			s.MaxDuration = at
		}
		mag := math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
		if s.Samples == 0 || mag < s.MinMagnitude {
			s.MinMagnitude = mag
		}
		if mag > s.MaxMagnitude {
			s.MaxMagnitude = mag
		}
		sum += mag
		s.Samples++
	}
	if segments == 0 && s.Samples > 0 {
		segments = 1
	}
	s.Segments = segments
	if s.Samples > 0 {
		s.MeanMagnitude = sum / float64(s.Samples)
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "segments=%d samples=%d max_duration=%s\n", s.Segments, s.Samples, s.MaxDuration)
	if s.Samples > 0 {
		fmt.Fprintf(&b, "magnitude_g min=%.4f max=%.4f mean=%.4f\n", s.MinMagnitude, s.MaxMagnitude, s.MeanMagnitude)
	}
	return b.String()
}
