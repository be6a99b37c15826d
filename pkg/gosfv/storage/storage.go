// Package storage classifies the physical medium backing a filesystem path
// so the engine can match its concurrency to the device. Classification
// walks a chain of hardware queries from most to least authoritative and
// absorbs every failure into a conservative Rotational default: treating a
// spinning disk as parallel-capable collapses throughput through seek
// thrashing, while treating flash as sequential only costs some speed.
package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/logging"
)

// Verdict is the classification result for one drive root.
type Verdict int

// Possible verdicts. Unknown is only an intermediate value; classification
// always resolves it to Rotational before returning.
const (
	VerdictUnknown Verdict = iota
	VerdictRotational
	VerdictFlash
	VerdictNetwork
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictRotational:
		return "rotational"
	case VerdictFlash:
		return "flash"
	case VerdictNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Parallel reports whether the medium benefits from concurrent access.
// Network mounts behave like rotational disks here: request latency plays
// the role of seek latency.
func (v Verdict) Parallel() bool {
	return v == VerdictFlash
}

// Classification is a verdict for one drive root plus the diagnostic trail
// of the queries that produced it.
type Classification struct {
	// Root is the normalized drive root the verdict applies to.
	Root string

	// Verdict is the final classification.
	Verdict Verdict

	// Trail records each query tier and its outcome, for inspection.
	Trail []string
}

// flashKeywords are matched case-insensitively against a device's model
// name in the last-resort heuristic tier. The list errs toward missing a
// flash device (harmless) rather than misidentifying a spinning one.
var flashKeywords = []string{
	"ssd", "nvme", "flash", "m.2", "solid state",
	"samsung", "crucial", "sandisk", "kingston", "sk hynix", "micron",
}

// Classifier turns paths into Classifications using a DeviceProbe.
// It never fails outward; every probe error selects the rotational default.
type Classifier struct {
	probe DeviceProbe
	log   *logging.Logger
}

// NewClassifier returns a Classifier backed by probe. A nil probe uses the
// platform implementation.
func NewClassifier(probe DeviceProbe) *Classifier {
	if probe == nil {
		probe = newPlatformProbe()
	}
	return &Classifier{
		probe: probe,
		log:   logging.Get("storage"),
	}
}

// Classify determines the verdict for the drive root containing path.
//
// Tiers, each consulted only if the previous one is inconclusive:
//  1. network mount check; network is rotational-equivalent, decided here
//  2. rotation rate of the logical volume (> 1 means rotational)
//  3. seek-penalty flag of the logical volume
//  4. the same two queries against the underlying physical device, which
//     sees through volume-level abstraction such as full-disk encryption
//  5. model-name keyword heuristic
//  6. rotational default
func (c *Classifier) Classify(path string) Classification {
	root, err := c.probe.DriveRoot(path)
	if err != nil {
		cl := Classification{
			Root:    path,
			Verdict: VerdictRotational,
			Trail:   []string{fmt.Sprintf("drive root unresolved (%v): rotational default", err)},
		}
		c.log.Warn("drive root unresolved", "path", path, "error", err)
		return cl
	}

	cl := Classification{Root: root}
	cl.Verdict = c.classifyRoot(root, &cl.Trail)

	c.log.Debug("classified", "root", root, "verdict", cl.Verdict.String())
	return cl
}

func (c *Classifier) classifyRoot(root string, trail *[]string) Verdict {
	record := func(format string, args ...interface{}) {
		*trail = append(*trail, fmt.Sprintf(format, args...))
	}

	// Tier 1: network mounts. Latency behaves like seek latency, so the
	// verdict is terminal regardless of the remote hardware.
	if network, err := c.probe.IsNetwork(root); err == nil && network {
		record("network mount: network verdict")
		return VerdictNetwork
	} else if err != nil {
		record("network check failed (%v)", err)
	}

	// Tiers 2-3: logical volume queries.
	if v := c.queryDevice(root, "volume", record); v != VerdictUnknown {
		return v
	}

	// Tier 4: resolve to the physical device and repeat. Volume queries can
	// be masked by encryption or virtualization layers.
	device, err := c.probe.PhysicalDevice(root)
	if err != nil {
		record("physical device unresolved (%v)", err)
	} else if device != root {
		if v := c.queryDevice(device, "device", record); v != VerdictUnknown {
			return v
		}
	}

	// Tier 5: model-name heuristic. Hardware queries commonly fail without
	// elevated privilege; the model string is readable regardless.
	ref := device
	if err != nil || ref == "" {
		ref = root
	}
	if model, merr := c.probe.ModelName(ref); merr == nil && model != "" {
		if matchesFlashKeyword(model) {
			record("model %q matches flash keyword: flash verdict", model)
			return VerdictFlash
		}
		record("model %q matches no flash keyword: rotational default", model)
		return VerdictRotational
	} else if merr != nil {
		record("model lookup failed (%v)", merr)
	}

	// Tier 6.
	record("all tiers inconclusive: rotational default")
	return VerdictRotational
}

// queryDevice runs the rotation-rate and seek-penalty queries against one
// device reference. VerdictUnknown means inconclusive.
func (c *Classifier) queryDevice(ref, kind string, record func(string, ...interface{})) Verdict {
	rpm, err := c.probe.RotationRate(ref)
	switch {
	case err != nil:
		record("%s rotation rate failed (%v)", kind, err)
	case rpm > 1:
		// 0 and 1 are reserved "not reported" / "non-rotating" markers on
		// some stacks; only a real rate is conclusive.
		record("%s rotation rate %d rpm: rotational", kind, rpm)
		return VerdictRotational
	default:
		record("%s rotation rate %d inconclusive", kind, rpm)
	}

	penalty, err := c.probe.SeekPenalty(ref)
	switch {
	case err != nil:
		record("%s seek penalty failed (%v)", kind, err)
	case penalty:
		record("%s reports seek penalty: rotational", kind)
		return VerdictRotational
	default:
		record("%s reports no seek penalty", kind)
	}

	return VerdictUnknown
}

func matchesFlashKeyword(model string) bool {
	lower := strings.ToLower(model)
	for _, kw := range flashKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// VerdictCache maps normalized drive roots to classifications, populated
// lazily. Hardware queries cost milliseconds and a batch may touch
// thousands of files on one drive, so each root is classified at most once
// per batch. After population the cache is read-shared across workers.
type VerdictCache struct {
	classifier *Classifier

	mu       sync.RWMutex
	verdicts map[string]Classification
}

// NewVerdictCache returns an empty cache backed by classifier.
func NewVerdictCache(classifier *Classifier) *VerdictCache {
	return &VerdictCache{
		classifier: classifier,
		verdicts:   make(map[string]Classification),
	}
}

// Root resolves the drive root for path without classifying it.
func (vc *VerdictCache) Root(path string) string {
	root, err := vc.classifier.probe.DriveRoot(path)
	if err != nil {
		return path
	}
	return root
}

// Get returns the classification for the drive root containing path,
// computing and caching it on first use.
func (vc *VerdictCache) Get(path string) Classification {
	root := vc.Root(path)

	vc.mu.RLock()
	cl, ok := vc.verdicts[root]
	vc.mu.RUnlock()
	if ok {
		return cl
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()
	if cl, ok := vc.verdicts[root]; ok {
		return cl
	}
	cl = vc.classifier.Classify(path)
	vc.verdicts[cl.Root] = cl
	if cl.Root != root {
		vc.verdicts[root] = cl
	}
	return cl
}

// Put injects a classification for a root. Intended for tests and for
// callers that already know the medium.
func (vc *VerdictCache) Put(root string, cl Classification) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.verdicts[root] = cl
}
