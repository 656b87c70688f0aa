// Package firmata decodes sensor reports delivered as Firmata sysex
// messages over a serial link.
//
// Firmata is MIDI based: every data byte carries 7 bits, so wider values
// arrive split over several bytes and are reassembled here.
package firmata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	StartSysex = 0xF0
	EndSysex   = 0xF7

	// MaxSysexLen bounds the body of one sysex message. Longer frames are
	// dropped as line noise.
	MaxSysexLen = 64

	cmdStartReading = 0x01
	cmdStopReading  = 0x02
)

var (
	ErrShortMessage = errors.New("firmata: insufficient data received")
	ErrOtherSensor  = errors.New("firmata: message for another sensor")
)

// Value14 joins two 7-bit bytes, least significant first.
func Value14(lsb, msb byte) int {
	return int(lsb&0x7F) | int(msb&0x7F)<<7
}

// Value16 joins an LSB pair and an MSB pair of 7-bit bytes into 16 bits.
// b must hold at least four bytes.
func Value16(b []byte) int {
	lo := Value14(b[0], b[1])
	hi := Value14(b[2], b[3])
	return hi<<8 + lo
}

// Scanner splits a byte stream into sysex bodies (without the F0/F7
// delimiters). Bytes outside a sysex frame are skipped.
type Scanner struct {
	r   *bufio.Reader
	buf []byte

	dropped int
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r), buf: make([]byte, 0, MaxSysexLen)}
}

// Dropped counts frames discarded for being oversized or malformed.
func (s *Scanner) Dropped() int { return s.dropped }

// Next returns the next complete sysex body. The slice is only valid until
// the following call.
func (s *Scanner) Next() ([]byte, error) {
	inFrame := false
	s.buf = s.buf[:0]
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch {
		case b == StartSysex:
			if inFrame {
				s.dropped++
			}
			inFrame = true
			s.buf = s.buf[:0]
		case !inFrame:
			// Non-sysex traffic (analog/digital reports) is ignored.
		case b == EndSysex:
			return s.buf, nil
		case b&0x80 != 0:
			// A status byte mid-frame means the frame was cut short.
			s.dropped++
			inFrame = false
		case len(s.buf) >= MaxSysexLen:
			s.dropped++
			inFrame = false
		default:
			s.buf = append(s.buf, b)
		}
	}
}

func writeCommand(w io.Writer, sensorID, cmd byte) error {
	if sensorID&0x80 != 0 {
		return fmt.Errorf("firmata: sensor id 0x%02X is not a 7-bit value", sensorID)
	}
	_, err := w.Write([]byte{StartSysex, sensorID, cmd, EndSysex})
	return err
}

// StartReading asks the board firmware to begin streaming reports for a
// sensor.
func StartReading(w io.Writer, sensorID byte) error {
	return writeCommand(w, sensorID, cmdStartReading)
}

func StopReading(w io.Writer, sensorID byte) error {
	return writeCommand(w, sensorID, cmdStopReading)
}
