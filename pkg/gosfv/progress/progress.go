// Package progress provides a byte-counting reader decorator that emits
// throttled percentage samples. A hot read loop on a fast device can call
// Read hundreds of thousands of times per second, so every emission is
// gated on both a byte-count resolution and a wall-clock interval; between
// emissions the decorator costs one addition and two comparisons.
package progress

import (
	"io"
	"time"
)

const (
	// minByteStep floors the byte-count gate so tiny files do not emit a
	// sample on every read.
	minByteStep = 64 * 1024

	// resolutionSteps targets ~0.1% granularity on large files.
	resolutionSteps = 1000

	// minInterval caps emission at ~10 samples per second.
	minInterval = 100 * time.Millisecond
)

// Func receives throttled progress samples for one file. percent is in
// [0, 100] and non-decreasing over a file's read sequence.
type Func func(path string, percent float64)

// Reader decorates an io.Reader with progress emission. It never alters
// the bytes passed through. Not safe for concurrent use, matching the
// underlying reader.
type Reader struct {
	r     io.Reader
	path  string
	total int64
	sink  Func

	read      int64
	sinceLast int64
	byteStep  int64
	lastEmit  time.Time
}

// NewReader wraps r, reporting progress against total bytes to sink.
// A nil sink or non-positive total disables emission entirely.
func NewReader(r io.Reader, path string, total int64, sink Func) *Reader {
	step := total / resolutionSteps
	if step < minByteStep {
		step = minByteStep
	}
	return &Reader{
		r:        r,
		path:     path,
		total:    total,
		sink:     sink,
		byteStep: step,
	}
}

// Read passes through to the underlying reader, accumulating the byte
// count and emitting a sample when both throttle gates are open.
func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.sinceLast += int64(n)
		if p.sink != nil && p.total > 0 && p.sinceLast >= p.byteStep {
			if now := time.Now(); now.Sub(p.lastEmit) >= minInterval {
				p.emit(now)
			}
		}
	}
	return n, err
}

// BytesRead returns the total bytes passed through so far.
func (p *Reader) BytesRead() int64 {
	return p.read
}

func (p *Reader) emit(now time.Time) {
	percent := float64(p.read) / float64(p.total) * 100
	if percent > 100 {
		// A file that grew mid-read; clamp rather than report nonsense.
		percent = 100
	}
	p.sink(p.path, percent)
	p.sinceLast = 0
	p.lastEmit = now
}
