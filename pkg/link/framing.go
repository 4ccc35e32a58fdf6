package link

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/devlink-robotics/devlink-go/pkg/codec"
)

const (
	// DefaultMaxFrameSize bounds one encoded frame, delimiter excluded.
	DefaultMaxFrameSize = 512

	// MaxLogFrameDataSize is the most frame bytes copied into a log event.
	MaxLogFrameDataSize = 256
)

// ErrFrameTooLarge indicates a frame longer than the reader's limit. The
// reader has already skipped to the next delimiter.
var ErrFrameTooLarge = errors.New("link: frame too large")

// FrameReader splits a byte stream at codec.Delimiter.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
}

// NewFrameReader returns a reader that rejects frames over maxSize bytes.
// maxSize <= 0 selects DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	// +1 so a maximal frame and its delimiter fit in one ReadSlice.
	return &FrameReader{r: bufio.NewReaderSize(r, maxSize+1), maxSize: maxSize}
}

// ReadFrame returns the next non-empty frame without its delimiter. The
// returned slice is owned by the caller. Bytes left over when the stream
// ends without a delimiter are dropped and io.EOF returned.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		line, err := fr.r.ReadSlice(codec.Delimiter)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if derr := fr.discard(); derr != nil {
				return nil, derr
			}
			return nil, ErrFrameTooLarge
		case err != nil:
			return nil, err
		}

		frame := line[:len(line)-1]
		if len(frame) == 0 {
			// Idle delimiters between frames.
			continue
		}
		if len(frame) > fr.maxSize {
			return nil, ErrFrameTooLarge
		}
		return append([]byte(nil), frame...), nil
	}
}

// discard drops input up to and including the next delimiter.
func (fr *FrameReader) discard() error {
	for {
		_, err := fr.r.ReadSlice(codec.Delimiter)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

// FrameWriter writes complete frames. Safe for concurrent use; frames
// from different goroutines never interleave.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes frame, which must already end in codec.Delimiter.
func (fw *FrameWriter) WriteFrame(frame []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	_, err := fw.w.Write(frame)
	return err
}
