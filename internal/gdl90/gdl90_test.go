package gdl90

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiltmatrix/internal/orient"
)

func unframeOK(t *testing.T, frame []byte) []byte {
	t.Helper()
	msg, crcOK, err := Unframe(frame)
	require.NoError(t, err)
	require.True(t, crcOK, "crc mismatch for % X", frame)
	return msg
}

func TestFrame_StartEndFlags(t *testing.T) {
	got := Frame([]byte{0x00, 0x01})
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, byte(flagByte), got[0])
	assert.Equal(t, byte(flagByte), got[len(got)-1])
}

func TestFrame_EscapesControlBytes(t *testing.T) {
	in := []byte{0x00, flagByte, escapeByte}
	got := Frame(in)
	for i := 1; i < len(got)-1; i++ {
		assert.NotEqual(t, byte(flagByte), got[i], "unescaped flag at %d", i)
	}
	assert.Equal(t, in, unframeOK(t, got))
}

func TestUnframe_Errors(t *testing.T) {
	_, _, err := Unframe([]byte{0x7E, 0x7E})
	assert.Error(t, err)
	_, _, err = Unframe([]byte{0x00, 0x01, 0x02, 0x03, 0x7E})
	assert.Error(t, err)
	_, _, err = Unframe([]byte{0x7E, 0x01, 0x7D, 0x7E})
	assert.Error(t, err)

	f := Frame([]byte{0xCC, 0x05})
	f[1] ^= 0x01
	_, crcOK, err := Unframe(f)
	require.NoError(t, err)
	assert.False(t, crcOK)
}

func TestHeartbeat_TimestampPacking(t *testing.T) {
	now := time.Date(2020, time.January, 1, 1, 2, 3, 0, time.UTC) // 3723 s
	assert.Equal(t, []byte{0x00, 0x11, 0x00, 0x8B, 0x0E, 0x00, 0x00}, unframeOK(t, HeartbeatFrame(now)))

	late := time.Date(2020, time.January, 1, 23, 0, 0, 0, time.UTC) // 82800 s, bit 16 set
	msg := unframeOK(t, HeartbeatFrame(late))
	assert.Equal(t, byte(0x80), msg[2])
	assert.Equal(t, uint32(82800), uint32(msg[2]>>7)<<16|uint32(msg[4])<<8|uint32(msg[3]))
}

func TestStratuxHeartbeat(t *testing.T) {
	assert.Equal(t, []byte{0xCC, 0x05}, unframeOK(t, StratuxHeartbeatFrame(true)))
	assert.Equal(t, []byte{0xCC, 0x04}, unframeOK(t, StratuxHeartbeatFrame(false)))
}

func TestForeFlightID(t *testing.T) {
	msg := unframeOK(t, ForeFlightIDFrame("", "a-very-long-device-name"))
	require.Len(t, msg, 39)
	assert.Equal(t, []byte{0x65, 0x00, 0x01}, msg[:3])
	assert.Equal(t, "tiltmtx\x00", string(msg[11:19]))
	assert.Equal(t, "a-very-long-devi", string(msg[19:35]))
}

func TestAHRSLE_LevelVector(t *testing.T) {
	msg := unframeOK(t, AHRSLEFrame(Attitude{Valid: true, GLoad: 1}))
	want := []byte{
		0x4C, 0x45, 0x01, 0x01,
		0x00, 0x00, // roll
		0x00, 0x00, // pitch
		0x7F, 0xFF, // heading
		0x7F, 0xFF, // slip
		0x7F, 0xFF, // yaw rate
		0x00, 0x0A, // g
		0x7F, 0xFF, // airspeed
		0xFF, 0xFF, // palt
		0x7F, 0xFF, // vs
		0x7F, 0xFF,
	}
	assert.Equal(t, want, msg)
}

func TestAHRSLE_SignedAndInvalid(t *testing.T) {
	msg := unframeOK(t, AHRSLEFrame(Attitude{Valid: true, RollDeg: -12.34, PitchDeg: 5.06, GLoad: 1.26}))
	assert.Equal(t, []byte{0xFF, 0x85}, msg[4:6]) // -123
	assert.Equal(t, []byte{0x00, 0x33}, msg[6:8]) // 51
	assert.Equal(t, []byte{0x00, 0x0D}, msg[14:16])

	msg = unframeOK(t, AHRSLEFrame(Attitude{RollDeg: 10, PitchDeg: 10, GLoad: 1}))
	assert.Equal(t, []byte{0x7F, 0xFF, 0x7F, 0xFF}, msg[4:8])
	assert.Equal(t, []byte{0x7F, 0xFF}, msg[14:16])
}

func TestForeFlightAHRS(t *testing.T) {
	msg := unframeOK(t, ForeFlightAHRSFrame(Attitude{Valid: true, RollDeg: 1.5, PitchDeg: -2}))
	assert.Equal(t, []byte{0x65, 0x01, 0x00, 0x0F, 0xFF, 0xEC, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, msg)

	msg = unframeOK(t, ForeFlightAHRSFrame(Attitude{}))
	assert.Equal(t, []byte{0x7F, 0xFF, 0x7F, 0xFF}, msg[2:6])
}

func TestDeg10_Saturates(t *testing.T) {
	assert.Equal(t, int16(math.MaxInt16), deg10(1e6))
	assert.Equal(t, int16(math.MinInt16), deg10(-1e6))
	assert.Equal(t, invalidI16, deg10(math.NaN()))
}

func TestAttitudeFromSnapshot(t *testing.T) {
	e := orient.New(orient.WithSmoothing(0, 0))
	e.Update(0, 0.5, -1)
	a := AttitudeFromSnapshot(e.Snapshot())
	assert.True(t, a.Valid)
	assert.InDelta(t, math.Atan2(0.5, 1)*180/math.Pi, a.PitchDeg, 1e-9)
	assert.InDelta(t, 0, a.RollDeg, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), a.GLoad, 1e-9)

	assert.False(t, AttitudeFromSnapshot(orient.Snapshot{}).Valid)
}
