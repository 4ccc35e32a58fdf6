package codec

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"single zero", []byte{0x00}},
		{"two zeros", []byte{0x00, 0x00}},
		{"single byte", []byte{0x42}},
		{"leading zero", []byte{0x00, 0x11, 0x22}},
		{"trailing zero", []byte{0x11, 0x22, 0x00}},
		{"mixed", []byte{0x11, 0x00, 0x00, 0x22, 0x33, 0x00, 0x44}},
		{"253 non-zero", bytes.Repeat([]byte{0x01}, 253)},
		{"254 non-zero", bytes.Repeat([]byte{0x01}, 254)},
		{"255 non-zero", bytes.Repeat([]byte{0x01}, 255)},
		{"254 then zero", append(bytes.Repeat([]byte{0x7F}, 254), 0x00)},
		{"long", bytes.Repeat([]byte{0xAA, 0xBB, 0x00, 0xCC}, 300)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Encode(tt.payload)

			if frame[len(frame)-1] != Delimiter {
				t.Fatalf("frame does not end with delimiter: % X", frame)
			}
			if i := bytes.IndexByte(frame, Delimiter); i != len(frame)-1 {
				t.Fatalf("delimiter at offset %d inside frame of %d bytes", i, len(frame))
			}
			if len(frame) > MaxEncodedLen(len(tt.payload)) {
				t.Errorf("frame size = %d, exceeds MaxEncodedLen %d", len(frame), MaxEncodedLen(len(tt.payload)))
			}

			got, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("round trip mismatch:\n got % X\nwant % X", got, tt.payload)
			}
		})
	}
}

func TestEncodeRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		payload := make([]byte, rng.Intn(1200))
		for j := range payload {
			// Bias towards zeros to exercise short blocks.
			if rng.Intn(4) == 0 {
				continue
			}
			payload[j] = byte(rng.Intn(256))
		}

		got, err := Decode(Encode(payload))
		if err != nil {
			t.Fatalf("iteration %d: Decode failed: %v", i, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("iteration %d: round trip mismatch for %d-byte payload", i, len(payload))
		}
	}
}

func TestEncodeKnownVectors(t *testing.T) {
	tests := []struct {
		payload []byte
		want    []byte
	}{
		{[]byte{}, []byte{0x01, 0x00}},
		{[]byte{0x00}, []byte{0x01, 0x01, 0x00}},
		{[]byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33, 0x00}},
		{[]byte{0x11, 0x00, 0x00, 0x00}, []byte{0x02, 0x11, 0x01, 0x01, 0x01, 0x00}},
	}

	for _, tt := range tests {
		if got := Encode(tt.payload); !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(% X) = % X, want % X", tt.payload, got, tt.want)
		}
	}
}

func TestEncodeOverheadBound(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 254*4)
	frame := Encode(payload)

	// One code byte per 254-byte block, plus the final code and the delimiter.
	if want := len(payload) + 4 + 1 + 1; len(frame) != want {
		t.Errorf("frame size = %d, want %d", len(frame), want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", []byte{}},
		{"only delimiter", []byte{0x00}},
		{"code overruns", []byte{0x05, 0x11, 0x22, 0x00}},
		{"zero code", []byte{0x02, 0x11, 0x00, 0x22, 0x00}},
		{"delimiter inside block", []byte{0x04, 0x11, 0x00, 0x22, 0x00}},
		{"truncated long block", append([]byte{0xFF}, bytes.Repeat([]byte{0x01}, 100)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, ErrFrame) {
				t.Errorf("Decode(% X) error = %v, want ErrFrame", tt.frame, err)
			}
		})
	}
}

func TestSingleBitCorruptionDetected(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello, robot"),
		{0x20, 0x05, 0x01, 0x00, 0x00, 0x00, 0x02, 0x80},
		bytes.Repeat([]byte{0x00, 0x7E, 0xFF}, 20),
	}

	total, undetected := 0, 0
	for _, p := range payloads {
		frame := Encode(AppendChecksum(append([]byte(nil), p...)))

		// Every byte except the trailing delimiter, every bit.
		for i := 0; i < len(frame)-1; i++ {
			for bit := 0; bit < 8; bit++ {
				corrupt := append([]byte(nil), frame...)
				corrupt[i] ^= 1 << bit
				total++

				body, err := Decode(corrupt)
				if err == nil {
					_, err = VerifyChecksum(body)
				}
				switch {
				case errors.Is(err, ErrFrame), errors.Is(err, ErrChecksum):
				case err == nil:
					undetected++
				default:
					t.Fatalf("unexpected error class: %v", err)
				}
			}
		}
	}

	if undetected*100 > total {
		t.Errorf("%d of %d single-bit corruptions went undetected", undetected, total)
	}
}
