package codec

import (
	"errors"
	"testing"
)

func TestChecksumKnownValue(t *testing.T) {
	// CRC-16/CCITT-FALSE check value.
	if got := Checksum([]byte("123456789")); got != 0x29B1 {
		t.Errorf("Checksum(123456789) = 0x%04X, want 0x29B1", got)
	}
	if got := Checksum(nil); got != crcInitial {
		t.Errorf("Checksum(nil) = 0x%04X, want 0x%04X", got, crcInitial)
	}
}

func TestAppendVerifyChecksum(t *testing.T) {
	body := []byte{0x80, 0x01, 0x02, 0x03}
	payload := AppendChecksum(append([]byte(nil), body...))

	if len(payload) != len(body)+ChecksumSize {
		t.Fatalf("payload size = %d, want %d", len(payload), len(body)+ChecksumSize)
	}

	sum := Checksum(body)
	if payload[len(body)] != byte(sum) || payload[len(body)+1] != byte(sum>>8) {
		t.Errorf("checksum not little-endian: % X for 0x%04X", payload[len(body):], sum)
	}

	got, err := VerifyChecksum(payload)
	if err != nil {
		t.Fatalf("VerifyChecksum failed: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("body = % X, want % X", got, body)
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	payload := AppendChecksum([]byte{0x01, 0x02})
	payload[0] ^= 0x10

	if _, err := VerifyChecksum(payload); !errors.Is(err, ErrChecksum) {
		t.Errorf("error = %v, want ErrChecksum", err)
	}
	if _, err := VerifyChecksum([]byte{0x01}); !errors.Is(err, ErrChecksum) {
		t.Errorf("short payload error = %v, want ErrChecksum", err)
	}
}
