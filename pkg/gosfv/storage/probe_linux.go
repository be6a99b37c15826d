//go:build linux

package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// networkFilesystems are /proc/mounts fstypes treated as network mounts.
var networkFilesystems = map[string]bool{
	"nfs":        true,
	"nfs4":       true,
	"cifs":       true,
	"smb3":       true,
	"9p":         true,
	"ceph":       true,
	"glusterfs":  true,
	"fuse.sshfs": true,
	"davfs":      true,
}

// linuxProbe answers device queries from /proc/self/mounts and sysfs.
// Volume references are mount-point paths; device references are block
// device names such as "sda". Linux exposes no nominal rotation rate, so
// RotationRate is always inconclusive and rotational detection rides on
// the queue/rotational flag surfaced through SeekPenalty.
type linuxProbe struct {
	mountsPath string
	sysfsPath  string
}

func newPlatformProbe() DeviceProbe {
	return &linuxProbe{
		mountsPath: "/proc/self/mounts",
		sysfsPath:  "/sys",
	}
}

type mountEntry struct {
	source string
	point  string
	fstype string
}

// mountFor returns the mount entry with the longest mount-point prefix of
// path.
func (p *linuxProbe) mountFor(path string) (mountEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return mountEntry{}, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	f, err := os.Open(p.mountsPath)
	if err != nil {
		return mountEntry{}, err
	}
	defer f.Close()

	var best mountEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		point := fields[1]
		if abs != point && !strings.HasPrefix(abs, strings.TrimSuffix(point, "/")+"/") {
			continue
		}
		if len(point) >= len(best.point) {
			best = mountEntry{source: fields[0], point: point, fstype: fields[2]}
		}
	}
	if err := scanner.Err(); err != nil {
		return mountEntry{}, err
	}
	if best.point == "" {
		return mountEntry{}, fmt.Errorf("no mount entry for %s", abs)
	}
	return best, nil
}

func (p *linuxProbe) DriveRoot(path string) (string, error) {
	m, err := p.mountFor(path)
	if err != nil {
		return "", err
	}
	return m.point, nil
}

func (p *linuxProbe) IsNetwork(root string) (bool, error) {
	m, err := p.mountFor(root)
	if err != nil {
		return false, err
	}
	return networkFilesystems[m.fstype], nil
}

// RotationRate is inconclusive on linux: sysfs exposes a rotational flag,
// not an RPM figure.
func (p *linuxProbe) RotationRate(ref string) (int, error) {
	return 0, ErrInconclusive
}

// SeekPenalty reads queue/rotational for a block device reference. Volume
// references (paths) are inconclusive: the queue attributes live on the
// whole disk, which PhysicalDevice resolves.
func (p *linuxProbe) SeekPenalty(ref string) (bool, error) {
	if strings.HasPrefix(ref, "/") {
		return false, ErrInconclusive
	}

	data, err := os.ReadFile(filepath.Join(p.sysfsPath, "block", ref, "queue", "rotational"))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}
	flag, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}
	return flag == 1, nil
}

// PhysicalDevice resolves a drive root to the name of its backing whole
// disk. It maps the root's device number through /sys/dev/block, walks a
// partition up to its parent disk, and follows device-mapper slaves so
// that dm-crypt and LVM volumes resolve to the real medium underneath.
func (p *linuxProbe) PhysicalDevice(root string) (string, error) {
	var st unix.Stat_t
	if err := unix.Stat(root, &st); err != nil {
		return "", fmt.Errorf("%w: stat: %v", ErrInconclusive, err)
	}

	major := unix.Major(uint64(st.Dev))
	minor := unix.Minor(uint64(st.Dev))
	if major == 0 {
		// Virtual filesystems (tmpfs, overlay) carry no block device.
		return "", ErrInconclusive
	}

	name, err := p.blockName(major, minor)
	if err != nil {
		return "", err
	}

	// Bounded in case of a slaves cycle, which healthy sysfs never has.
	for range 8 {
		parent, ok := p.parentDisk(name)
		if ok {
			name = parent
			continue
		}
		slave, ok := p.firstSlave(name)
		if ok {
			name = slave
			continue
		}
		break
	}
	return name, nil
}

// blockName resolves a device number to its block device name via the
// /sys/dev/block/<major>:<minor> symlink.
func (p *linuxProbe) blockName(major, minor uint32) (string, error) {
	link := filepath.Join(p.sysfsPath, "dev", "block", fmt.Sprintf("%d:%d", major, minor))
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInconclusive, err)
	}
	return filepath.Base(resolved), nil
}

// parentDisk returns the whole-disk name when name is a partition.
func (p *linuxProbe) parentDisk(name string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(p.sysfsPath, "class", "block", name))
	if err != nil {
		return "", false
	}
	parent := filepath.Base(filepath.Dir(resolved))
	if parent == "block" || parent == name {
		return "", false
	}
	return parent, true
}

// firstSlave returns the first underlying device of a stacked (dm, md)
// device.
func (p *linuxProbe) firstSlave(name string) (string, bool) {
	entries, err := os.ReadDir(filepath.Join(p.sysfsPath, "block", name, "slaves"))
	if err != nil || len(entries) == 0 {
		return "", false
	}
	return entries[0].Name(), true
}

func (p *linuxProbe) ModelName(ref string) (string, error) {
	if strings.HasPrefix(ref, "/") {
		return "", ErrInconclusive
	}
	data, err := os.ReadFile(filepath.Join(p.sysfsPath, "block", ref, "device", "model"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInconclusive, err)
	}
	return strings.TrimSpace(string(data)), nil
}
