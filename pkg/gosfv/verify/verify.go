// Package verify judges processed work items against expected digests.
// Parsing of checksum file syntax lives with the caller; this package only
// owns the comparison semantics: digests compare as case-insensitive hex
// for every algorithm.
package verify

import (
	"errors"
	"io/fs"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// Status is the verification outcome for one file.
type Status int

// Verification outcomes.
const (
	// StatusOK means the computed digest matches the expected one.
	StatusOK Status = iota

	// StatusBad means the file was read but its digest differs.
	StatusBad

	// StatusMissing means the file does not exist.
	StatusMissing

	// StatusError means the file could not be read for another reason,
	// or the batch was cancelled before reaching it.
	StatusError
)

// String returns the conventional uppercase tag for checksum output.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBad:
		return "BAD"
	case StatusMissing:
		return "MISSING"
	default:
		return "ERROR"
	}
}

// Judge maps a processed work item and its expected hex digest to a
// verification status. The item must have reached a terminal state.
func Judge(item *types.WorkItem, expectedHex string) Status {
	switch item.State() {
	case types.StateDone:
		if item.Digest().EqualHex(expectedHex) {
			return StatusOK
		}
		return StatusBad
	case types.StateFailed:
		if errors.Is(item.Err(), fs.ErrNotExist) {
			return StatusMissing
		}
		return StatusError
	default:
		return StatusError
	}
}
