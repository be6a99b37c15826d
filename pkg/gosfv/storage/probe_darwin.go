//go:build darwin

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// networkFilesystems are statfs fstype names treated as network mounts.
var networkFilesystems = map[string]bool{
	"nfs":    true,
	"smbfs":  true,
	"afpfs":  true,
	"webdav": true,
	"ftp":    true,
	"9p":     true,
}

// darwinProbe answers what statfs can. Rotation-rate, seek-penalty and
// model queries need IOKit, which has no stable Go surface; they report
// inconclusive and the classifier lands on its rotational default. That is
// slower than ideal on all-flash Macs but never incorrect.
type darwinProbe struct{}

func newPlatformProbe() DeviceProbe {
	return &darwinProbe{}
}

func (p *darwinProbe) statfs(path string) (unix.Statfs_t, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return st, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st, nil
}

func (p *darwinProbe) DriveRoot(path string) (string, error) {
	st, err := p.statfs(path)
	if err != nil {
		return "", err
	}
	return unix.ByteSliceToString(st.Mntonname[:]), nil
}

func (p *darwinProbe) IsNetwork(root string) (bool, error) {
	st, err := p.statfs(root)
	if err != nil {
		return false, err
	}
	return networkFilesystems[unix.ByteSliceToString(st.Fstypename[:])], nil
}

func (p *darwinProbe) RotationRate(ref string) (int, error) {
	return 0, ErrInconclusive
}

func (p *darwinProbe) SeekPenalty(ref string) (bool, error) {
	return false, ErrInconclusive
}

func (p *darwinProbe) PhysicalDevice(root string) (string, error) {
	st, err := p.statfs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInconclusive, err)
	}
	return unix.ByteSliceToString(st.Mntfromname[:]), nil
}

func (p *darwinProbe) ModelName(ref string) (string, error) {
	return "", ErrInconclusive
}
