package codec

import (
	"errors"
	"fmt"
)

// Delimiter terminates every encoded frame.
const Delimiter byte = 0x00

// maxBlock is the largest COBS code value. A block with this code carries
// 254 data bytes and no implied delimiter.
const maxBlock = 0xFF

// ErrFrame indicates structurally invalid stuffing.
var ErrFrame = errors.New("codec: malformed frame")

// MaxEncodedLen returns the worst-case size of an encoded frame for a
// payload of n bytes, including the trailing delimiter.
func MaxEncodedLen(n int) int {
	return n + n/(maxBlock-1) + 2
}

// Encode stuffs payload and appends the frame delimiter.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, MaxEncodedLen(len(payload))), payload)
}

// AppendEncode appends the encoded frame for payload to dst.
func AppendEncode(dst, payload []byte) []byte {
	codeIdx := len(dst)
	dst = append(dst, 0)
	code := byte(1)

	for _, b := range payload {
		if b == Delimiter {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}

		dst = append(dst, b)
		code++
		if code == maxBlock {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}

	dst[codeIdx] = code
	return append(dst, Delimiter)
}

// Decode reverses Encode. The trailing delimiter is optional.
// A frame whose codes point past its end, or that contains a delimiter
// before its end, is rejected with ErrFrame.
func Decode(frame []byte) ([]byte, error) {
	if n := len(frame); n > 0 && frame[n-1] == Delimiter {
		frame = frame[:n-1]
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrFrame)
	}

	out := make([]byte, 0, len(frame))
	for i := 0; i < len(frame); {
		code := int(frame[i])
		if code == 0 {
			return nil, fmt.Errorf("%w: delimiter at offset %d", ErrFrame, i)
		}
		i++

		end := i + code - 1
		if end > len(frame) {
			return nil, fmt.Errorf("%w: code %d at offset %d overruns frame of %d bytes", ErrFrame, code, i-1, len(frame))
		}
		for j := i; j < end; j++ {
			if frame[j] == Delimiter {
				return nil, fmt.Errorf("%w: delimiter at offset %d", ErrFrame, j)
			}
		}
		out = append(out, frame[i:end]...)
		i = end

		if code < maxBlock && i < len(frame) {
			out = append(out, Delimiter)
		}
	}

	return out, nil
}
