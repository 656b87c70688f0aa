package firmata

import "fmt"

const (
	DefaultAccelID = 0x0D
	DefaultPulseID = 0x0E

	// DefaultCountsPerG matches a +/-4 g accelerometer at 16 bits.
	DefaultCountsPerG = 8192

	accelMsgLen = 13 // id + 3 axes * (LSB pair + MSB pair)
	pulseMsgLen = 7  // id + type pair + LSB pair + MSB pair
)

// Pulse report data types.
const (
	SignalID = 0x00
	BPMID    = 0x01
	IBIID    = 0x02
)

type PulseReading struct {
	Type  int
	Value int
}

func (p PulseReading) String() string {
	switch p.Type {
	case SignalID:
		return fmt.Sprintf("signal=%d", p.Value)
	case BPMID:
		return fmt.Sprintf("bpm=%d", p.Value)
	case IBIID:
		return fmt.Sprintf("ibi=%dms", p.Value)
	}
	return fmt.Sprintf("type%d=%d", p.Type, p.Value)
}

// SensorID returns the sensor a sysex body addresses.
func SensorID(msg []byte) (byte, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	return msg[0], true
}

// DecodeAccel decodes an accelerometer report: the sensor id followed by
// x, y and z, each a signed 16-bit count split into an LSB pair and an MSB
// pair of 7-bit bytes. Counts are converted to g.
func DecodeAccel(msg []byte, sensorID byte, countsPerG float64) (x, y, z float64, err error) {
	if id, ok := SensorID(msg); !ok || id != sensorID {
		return 0, 0, 0, ErrOtherSensor
	}
	if len(msg) != accelMsgLen {
		return 0, 0, 0, fmt.Errorf("%w: accel report len=%d want %d", ErrShortMessage, len(msg), accelMsgLen)
	}
	if countsPerG <= 0 {
		return 0, 0, 0, fmt.Errorf("firmata: counts per g must be > 0")
	}
	axis := func(off int) float64 {
		return float64(int16(uint16(Value16(msg[off:off+4])))) / countsPerG
	}
	return axis(1), axis(5), axis(9), nil
}

// DecodePulse decodes a pulse sensor report.
func DecodePulse(msg []byte, sensorID byte) (PulseReading, error) {
	if id, ok := SensorID(msg); !ok || id != sensorID {
		return PulseReading{}, ErrOtherSensor
	}
	if len(msg) != pulseMsgLen {
		return PulseReading{}, fmt.Errorf("%w: pulse report len=%d want %d", ErrShortMessage, len(msg), pulseMsgLen)
	}
	return PulseReading{
		Type:  Value14(msg[1], msg[2]),
		Value: Value16(msg[3:7]),
	}, nil
}
