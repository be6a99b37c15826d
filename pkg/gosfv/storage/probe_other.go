//go:build !linux && !darwin

package storage

import "path/filepath"

// fallbackProbe answers nothing. Every query is inconclusive, which drives
// the classifier straight to its rotational default on platforms without a
// dedicated probe.
type fallbackProbe struct{}

func newPlatformProbe() DeviceProbe {
	return &fallbackProbe{}
}

func (p *fallbackProbe) DriveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if vol := filepath.VolumeName(abs); vol != "" {
		return vol, nil
	}
	return string(filepath.Separator), nil
}

func (p *fallbackProbe) IsNetwork(root string) (bool, error)     { return false, ErrInconclusive }
func (p *fallbackProbe) RotationRate(ref string) (int, error)    { return 0, ErrInconclusive }
func (p *fallbackProbe) SeekPenalty(ref string) (bool, error)    { return false, ErrInconclusive }
func (p *fallbackProbe) PhysicalDevice(root string) (string, error) { return "", ErrInconclusive }
func (p *fallbackProbe) ModelName(ref string) (string, error)    { return "", ErrInconclusive }
