// Package gdl90 encodes attitude output as GDL90 frames understood by
// EFB apps that accept Stratux-style AHRS.
package gdl90

import "fmt"

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20
)

// CRC-16 (poly 0x1021, init 0) as used by GDL90 framing.
var crcTable = buildCRCTable()

func buildCRCTable() (table [256]uint16) {
	for i := range table {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func checksum(msg []byte) uint16 {
	var crc uint16
	for _, b := range msg {
		crc = crcTable[crc>>8] ^ crc<<8 ^ uint16(b)
	}
	return crc
}

// Frame appends the CRC (low byte first) to a message, byte-stuffs flag
// and escape bytes, and wraps the result in 0x7E flags.
func Frame(msg []byte) []byte {
	crc := checksum(msg)
	out := make([]byte, 0, 4+2*len(msg))
	out = append(out, flagByte)
	put := func(b byte) {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXor)
			return
		}
		out = append(out, b)
	}
	for _, b := range msg {
		put(b)
	}
	put(byte(crc))
	put(byte(crc >> 8))
	return append(out, flagByte)
}

// Unframe reverses Frame. crcOK reports whether the trailing CRC matched.
func Unframe(frame []byte) (msg []byte, crcOK bool, err error) {
	if len(frame) < 4 {
		return nil, false, fmt.Errorf("gdl90: frame too short: %d", len(frame))
	}
	if frame[0] != flagByte || frame[len(frame)-1] != flagByte {
		return nil, false, fmt.Errorf("gdl90: missing start/end flags")
	}
	raw := make([]byte, 0, len(frame))
	body := frame[1 : len(frame)-1]
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == escapeByte {
			i++
			if i >= len(body) {
				return nil, false, fmt.Errorf("gdl90: truncated escape")
			}
			b = body[i] ^ escapeXor
		}
		raw = append(raw, b)
	}
	if len(raw) < 3 {
		return nil, false, fmt.Errorf("gdl90: payload too short: %d", len(raw))
	}
	msg = raw[:len(raw)-2]
	got := uint16(raw[len(raw)-2]) | uint16(raw[len(raw)-1])<<8
	return msg, got == checksum(msg), nil
}
