package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CRC-16/CCITT configuration.
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// ChecksumSize is the size of the trailing checksum in bytes.
const ChecksumSize = 2

// ErrChecksum indicates a CRC mismatch.
var ErrChecksum = errors.New("codec: checksum mismatch")

// Checksum computes the CRC-16/CCITT of data, one byte at a time.
func Checksum(data []byte) uint16 {
	return updateChecksum(crcInitial, data)
}

func updateChecksum(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// AppendChecksum appends the little-endian checksum of body to body.
func AppendChecksum(body []byte) []byte {
	return binary.LittleEndian.AppendUint16(body, Checksum(body))
}

// VerifyChecksum checks the trailing checksum of payload and returns the
// body without it.
func VerifyChecksum(payload []byte) ([]byte, error) {
	if len(payload) < ChecksumSize {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a checksum", ErrChecksum, len(payload))
	}
	n := len(payload) - ChecksumSize
	body := payload[:n]
	want := binary.LittleEndian.Uint16(payload[n:])
	if got := Checksum(body); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04X, carried 0x%04X", ErrChecksum, got, want)
	}
	return body, nil
}
