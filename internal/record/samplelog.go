// Package record stores accelerometer samples in a line-oriented log and
// plays them back with their original timing.
package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - "# session <id>" names the recording session; other '#' lines are comments.
// - Line "START" resets the origin (next sample time is relative to 0 again).
// - Data lines are: <t_ns>,<x>,<y>,<z>
//   where t_ns is nanoseconds since START and x/y/z are in g.

const sessionPrefix = "# session "

type Record struct {
	At time.Duration
	// Start marks a START line; the axis fields are unused.
	Start   bool
	X, Y, Z float64
}

type Reader struct {
	r       io.Reader
	session string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Session is the most recent session id seen by ReadAll.
func (rr *Reader) Session() string { return rr.session }

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, sessionPrefix) {
			rr.session = strings.TrimSpace(line[len(sessionPrefix):])
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("record: line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile reads a whole log from disk.
func ReadFile(path string) ([]Record, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	rr := NewReader(f)
	recs, err := rr.ReadAll()
	if err != nil {
		return nil, "", err
	}
	return recs, rr.Session(), nil
}

func parseLine(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return Record{}, fmt.Errorf("invalid sample line (want 4 fields, got %d): %q", len(fields), line)
	}
	tsStr := strings.TrimSpace(fields[0])
	tsNs, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", tsStr, err)
	}
	if tsNs < 0 {
		return Record{}, fmt.Errorf("invalid timestamp (negative): %d", tsNs)
	}
	var axes [3]float64
	for i := range axes {
		v := strings.TrimSpace(fields[i+1])
		axes[i], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid axis value %q: %w", v, err)
		}
	}
	return Record{At: time.Duration(tsNs), X: axes[0], Y: axes[1], Z: axes[2]}, nil
}

type Writer struct {
	f       *os.File
	w       *bufio.Writer
	start   time.Time
	session string
	closed  bool
}

// CreateWriter starts a new log with a fresh session id.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	session := uuid.NewString()
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(bw, "%s%s\nSTART\n", sessionPrefix, session); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now(), session: session}, nil
}

func (ww *Writer) Session() string { return ww.session }

func (ww *Writer) WriteSample(now time.Time, x, y, z float64) error {
	if ww.closed {
		return errors.New("record: writer is closed")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s,%s,%s\n", d.Nanoseconds(),
		strconv.FormatFloat(x, 'g', -1, 64),
		strconv.FormatFloat(y, 'g', -1, 64),
		strconv.FormatFloat(z, 'g', -1, 64))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
