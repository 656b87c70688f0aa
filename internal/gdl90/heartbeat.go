package gdl90

import (
	"strings"
	"time"
)

// HeartbeatFrame builds the standard 0x00 heartbeat. This device has no
// GPS, so the UTC-OK and position bits stay clear; the timestamp is still
// filled from the local clock.
func HeartbeatFrame(now time.Time) []byte {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	secs := uint32(now.Sub(midnight) / time.Second)

	msg := make([]byte, 7)
	msg[0] = 0x00
	msg[1] = 0x01 | 0x10 // initialized, addr talkback
	msg[2] = byte((secs >> 16) << 7)
	msg[3] = byte(secs)
	msg[4] = byte(secs >> 8)
	return Frame(msg)
}

// StratuxHeartbeatFrame builds the 0xCC heartbeat apps use to detect an
// AHRS-capable receiver.
func StratuxHeartbeatFrame(ahrsValid bool) []byte {
	b := byte(1) << 2 // protocol version 1
	if ahrsValid {
		b |= 0x01
	}
	return Frame([]byte{0xCC, b})
}

// ForeFlightIDFrame builds the 0x65/0x00 device identification message.
func ForeFlightIDFrame(shortName, longName string) []byte {
	msg := make([]byte, 39)
	msg[0] = 0x65
	msg[1] = 0x00
	msg[2] = 0x01
	for i := 3; i <= 10; i++ {
		msg[i] = 0xFF // serial unknown
	}
	copy(msg[11:19], clip(shortName, "tiltmtx", 8))
	copy(msg[19:35], clip(longName, "tiltmatrix", 16))
	return Frame(msg)
}

func clip(s, fallback string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = fallback
	}
	if len(s) > n {
		s = s[:n]
	}
	return s
}
