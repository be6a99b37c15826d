package storage

import "errors"

// ErrInconclusive indicates a query the platform cannot answer for the
// given device. It is internal to classification: the classifier absorbs
// it into the next fallback tier and never surfaces it to callers.
var ErrInconclusive = errors.New("device query inconclusive")

// DeviceProbe abstracts the platform's hardware queries. Implementations
// answer what they can and return ErrInconclusive for the rest; the
// classifier's tier chain is platform-agnostic on top of this interface.
//
// A device reference is an opaque string: the drive root for volume-level
// queries, or whatever PhysicalDevice returned for device-level ones.
type DeviceProbe interface {
	// DriveRoot resolves path to the normalized root of its volume, the
	// unit of classification caching.
	DriveRoot(path string) (string, error)

	// IsNetwork reports whether the root is a network mount.
	IsNetwork(root string) (bool, error)

	// RotationRate returns the nominal rotation rate of the device.
	// 0 and 1 are inconclusive markers, not proof of flash.
	RotationRate(ref string) (int, error)

	// SeekPenalty reports whether the device has non-uniform access
	// latency.
	SeekPenalty(ref string) (bool, error)

	// PhysicalDevice resolves a drive root to its underlying physical
	// device reference.
	PhysicalDevice(root string) (string, error)

	// ModelName returns the device's human-readable model string.
	ModelName(ref string) (string, error)
}
