// Package types provides core data types for the gosfv integrity engine.
// It defines the supported digest algorithms, the per-file work item with
// its terminal states, and utility functions for parsing and formatting
// file sizes.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Algorithm identifies a digest algorithm. It is chosen once per batch and
// never changes mid-run.
type Algorithm int

// Supported algorithms.
const (
	// AlgXXH3 is 128-bit XXH3, the default for new checksum sets.
	AlgXXH3 Algorithm = iota

	// AlgXXH64 is 64-bit xxHash, kept for compatibility with older sets.
	AlgXXH64

	// AlgCRC32 is IEEE CRC-32 as used by SFV files.
	AlgCRC32

	// AlgMD5 is MD5. Legacy; verification of existing sets only.
	AlgMD5

	// AlgSHA1 is SHA-1. Legacy; verification of existing sets only.
	AlgSHA1

	// AlgSHA256 is SHA-256.
	AlgSHA256
)

// ErrUnknownAlgorithm is returned when an algorithm name cannot be parsed.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// String returns the canonical lowercase name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgXXH3:
		return "xxh3"
	case AlgXXH64:
		return "xxh64"
	case AlgCRC32:
		return "crc32"
	case AlgMD5:
		return "md5"
	case AlgSHA1:
		return "sha1"
	case AlgSHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// DigestSize returns the digest width in bytes. The width is a property of
// the algorithm alone and never varies at runtime.
func (a Algorithm) DigestSize() int {
	switch a {
	case AlgXXH3:
		return 16
	case AlgXXH64:
		return 8
	case AlgCRC32:
		return 4
	case AlgMD5:
		return 16
	case AlgSHA1:
		return 20
	case AlgSHA256:
		return 32
	default:
		return 0
	}
}

// ParseAlgorithm parses a string into an Algorithm. Matching is
// case-insensitive and tolerates common aliases ("xxhash3", "sha-1", ...).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "xxh3", "xxh3128", "xxhash3":
		return AlgXXH3, nil
	case "xxh64", "xxhash64", "xxhash":
		return AlgXXH64, nil
	case "crc32", "crc", "sfv":
		return AlgCRC32, nil
	case "md5":
		return AlgMD5, nil
	case "sha1":
		return AlgSHA1, nil
	case "sha256":
		return AlgSHA256, nil
	default:
		return AlgXXH3, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

// Algorithms returns all supported algorithms in display order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgXXH3, AlgXXH64, AlgCRC32, AlgMD5, AlgSHA1, AlgSHA256}
}

// Digest is the fixed-width output of a hash algorithm. It is produced once
// per (file, algorithm) pair and never mutated afterwards.
type Digest []byte

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d)
}

// EqualHex reports whether the digest matches the given hex string,
// ignoring case. Malformed hex never matches.
func (d Digest) EqualHex(s string) bool {
	want, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || len(want) != len(d) {
		return false
	}
	for i := range d {
		if d[i] != want[i] {
			return false
		}
	}
	return true
}

// State is the lifecycle state of a WorkItem.
type State int32

// WorkItem states. Done, Failed and Cancelled are terminal.
const (
	StatePending State = iota
	StateHashing
	StateDone
	StateFailed
	StateCancelled
)

// String returns the state name for logs and output.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateHashing:
		return "hashing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WorkItem is one file to be hashed. The engine owns the item for its
// lifetime; a worker borrows it only while hashing. The terminal state is
// written exactly once and published atomically, so the aggregating caller
// never observes a torn result.
type WorkItem struct {
	// Path is the absolute path of the file.
	Path string

	// Size is the file length in bytes, known before hashing begins.
	Size int64

	// MTime is the file's modification time in Unix nanoseconds, used as
	// part of the digest-cache key. Zero when unknown.
	MTime int64

	state    atomic.Int32
	digest   Digest
	err      error
	finished atomic.Int64
}

// NewWorkItem creates a pending work item for path with the given size.
func NewWorkItem(path string, size int64) *WorkItem {
	return &WorkItem{Path: path, Size: size}
}

// State returns the item's current state.
func (w *WorkItem) State() State {
	return State(w.state.Load())
}

// Begin transitions the item from Pending to Hashing. It returns false if
// the item is not pending, which means some other worker already took it or
// the batch was cancelled.
func (w *WorkItem) Begin() bool {
	return w.state.CompareAndSwap(int32(StatePending), int32(StateHashing))
}

// Complete records a successful digest. The digest field is written before
// the state store, so a reader that observes StateDone also observes the
// digest.
func (w *WorkItem) Complete(d Digest) {
	w.digest = d
	w.finished.Store(time.Now().UnixNano())
	w.state.Store(int32(StateDone))
}

// Fail records a per-file error. It does not affect sibling items.
func (w *WorkItem) Fail(err error) {
	w.err = err
	w.finished.Store(time.Now().UnixNano())
	w.state.Store(int32(StateFailed))
}

// Cancel marks the item as cancelled. Valid from Pending (never started)
// and from Hashing (aborted between chunk reads).
func (w *WorkItem) Cancel() {
	w.finished.Store(time.Now().UnixNano())
	w.state.Store(int32(StateCancelled))
}

// FinishedAt returns when the item reached its terminal state, or the zero
// time if it has not.
func (w *WorkItem) FinishedAt() time.Time {
	ns := w.finished.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Digest returns the computed digest. Only meaningful when State is Done.
func (w *WorkItem) Digest() Digest {
	return w.digest
}

// Err returns the recorded error. Only meaningful when State is Failed.
func (w *WorkItem) Err() error {
	return w.err
}

// FormatSize returns a human-readable size string using IEC units.
func FormatSize(size int64) string {
	return humanize.IBytes(uint64(size))
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GiB".
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses a human-readable size string and returns the size in
// bytes. Supported forms: plain bytes ("1024"), with suffix ("512B",
// "100K", "50MiB", "2G"). Suffixes are binary (K = 1024).
func ParseSize(s string) (int64, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit := strings.ToUpper(m[2])
	unit = strings.TrimSuffix(unit, "B")
	unit = strings.TrimSuffix(unit, "I")

	var mult int64 = 1
	switch unit {
	case "":
		mult = 1
	case "K":
		mult = KiB
	case "M":
		mult = MiB
	case "G":
		mult = GiB
	case "T":
		mult = TiB
	}

	return int64(value * float64(mult)), nil
}
