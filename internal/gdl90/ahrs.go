package gdl90

import (
	"math"

	"tiltmatrix/internal/orient"
)

// Attitude is what an accelerometer-only estimator can report. Heading,
// airspeed, altitude and vertical speed are always sent as invalid.
//
// Scaling follows Stratux: roll/pitch in 0.1 degree units.
type Attitude struct {
	Valid    bool
	RollDeg  float64
	PitchDeg float64
	GLoad    float64
}

// AttitudeFromSnapshot maps estimator output onto an Attitude: pitch is
// orientation X, roll orientation Y, G-load the smoothed force magnitude.
// It is valid only once a basis could be built.
func AttitudeFromSnapshot(s orient.Snapshot) Attitude {
	return Attitude{
		Valid:    s.TransformValid,
		PitchDeg: s.Orientation.X,
		RollDeg:  s.Orientation.Y,
		GLoad:    s.Force.Len(),
	}
}

const (
	invalidI16 = int16(0x7FFF)
	invalidU16 = uint16(0xFFFF)
)

func putI16(b []byte, v int16) {
	b[0] = byte(uint16(v) >> 8)
	b[1] = byte(v)
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// ForeFlightAHRSFrame builds the 0x65/0x01 AHRS message.
func ForeFlightAHRSFrame(a Attitude) []byte {
	msg := make([]byte, 12)
	msg[0] = 0x65
	msg[1] = 0x01
	roll, pitch := invalidI16, invalidI16
	if a.Valid {
		roll, pitch = deg10(a.RollDeg), deg10(a.PitchDeg)
	}
	putI16(msg[2:], roll)
	putI16(msg[4:], pitch)
	putU16(msg[6:], invalidU16)  // heading
	putU16(msg[8:], invalidU16)  // IAS
	putU16(msg[10:], invalidU16) // TAS
	return Frame(msg)
}

// AHRSLEFrame builds the Stratux "LE" AHRS report (0x4C 0x45 0x01 0x01).
func AHRSLEFrame(a Attitude) []byte {
	msg := make([]byte, 24)
	copy(msg, []byte{0x4C, 0x45, 0x01, 0x01})
	roll, pitch, g := invalidI16, invalidI16, invalidI16
	if a.Valid {
		roll, pitch = deg10(a.RollDeg), deg10(a.PitchDeg)
		// Stratux scales G by 10 in this report.
		g = deg10(a.GLoad)
	}
	putI16(msg[4:], roll)
	putI16(msg[6:], pitch)
	putI16(msg[8:], invalidI16)  // heading
	putI16(msg[10:], invalidI16) // slip/skid
	putI16(msg[12:], invalidI16) // yaw rate
	putI16(msg[14:], g)
	putI16(msg[16:], invalidI16) // airspeed
	putU16(msg[18:], invalidU16) // pressure altitude
	putI16(msg[20:], invalidI16) // vertical speed
	msg[22], msg[23] = 0x7F, 0xFF
	return Frame(msg)
}

// deg10 rounds to 0.1 units, saturating at the int16 range. NaN maps to
// the invalid sentinel.
func deg10(v float64) int16 {
	if math.IsNaN(v) {
		return invalidI16
	}
	r := math.Round(v * 10)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}
