package engine

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/cache"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/digest"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/storage"
	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// dirRootProbe treats each file's parent directory as its drive root, so
// tests can place different "drives" in different temp dirs. All hardware
// queries are inconclusive; verdicts are injected through the cache.
type dirRootProbe struct{}

func (dirRootProbe) DriveRoot(path string) (string, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

func (dirRootProbe) IsNetwork(string) (bool, error)        { return false, nil }
func (dirRootProbe) RotationRate(string) (int, error)      { return 0, storage.ErrInconclusive }
func (dirRootProbe) SeekPenalty(string) (bool, error)      { return false, storage.ErrInconclusive }
func (dirRootProbe) PhysicalDevice(string) (string, error) { return "", storage.ErrInconclusive }
func (dirRootProbe) ModelName(string) (string, error)      { return "", storage.ErrInconclusive }

// newVerdicts returns a cache with the given verdict injected for root.
func newVerdicts(t *testing.T, verdict storage.Verdict, roots ...string) *storage.VerdictCache {
	t.Helper()
	vc := storage.NewVerdictCache(storage.NewClassifier(dirRootProbe{}))
	for _, root := range roots {
		vc.Put(root, storage.Classification{Root: root, Verdict: verdict})
	}
	return vc
}

// writeFile creates a file of the given size filled with random bytes and
// returns its path and content.
func writeFile(t *testing.T, dir, name string, size int64) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

// TestRotationalScenario covers the sequential path end to end: a mix of
// empty, small and multi-megabyte files on a rotational root, hashed with
// MD5 by a single worker in submission order.
func TestRotationalScenario(t *testing.T) {
	dir := t.TempDir()

	sizes := []int64{0, 1024, 10 * 1024 * 1024}
	var items []*types.WorkItem
	var want []string
	for i, size := range sizes {
		path, data := writeFile(t, dir, filepath.Base(dir)+"-"+string(rune('a'+i)), size)
		sum := md5.Sum(data)
		want = append(want, types.Digest(sum[:]).Hex())
		items = append(items, types.NewWorkItem(path, size))
	}

	eng := New(Options{
		Algorithm: types.AlgMD5,
		Verdicts:  newVerdicts(t, storage.VerdictRotational, dir),
	})
	res := eng.Process(context.Background(), items)

	assert.Equal(t, 3, res.Completed)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Cancelled)
	assert.Equal(t, sizes[0]+sizes[1]+sizes[2], res.Bytes)

	for i, item := range items {
		require.Equal(t, types.StateDone, item.State(), item.Path)
		assert.Equal(t, want[i], item.Digest().Hex(), item.Path)
	}

	// Single-worker execution means completion timestamps follow
	// submission order.
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].FinishedAt().Before(items[i-1].FinishedAt()),
			"item %d finished before item %d", i, i-1)
	}
}

func TestFlashGroupCompletes(t *testing.T) {
	dir := t.TempDir()

	var items []*types.WorkItem
	want := make(map[string]string)
	for i := range 24 {
		path, data := writeFile(t, dir, filepath.Base(dir)+"-"+string(rune('a'+i)), int64(1024*(i+1)))
		sum := sha256.Sum256(data)
		want[path] = types.Digest(sum[:]).Hex()
		items = append(items, types.NewWorkItem(path, int64(1024*(i+1))))
	}

	eng := New(Options{
		Algorithm:    types.AlgSHA256,
		FlashWorkers: 4,
		Verdicts:     newVerdicts(t, storage.VerdictFlash, dir),
	})
	res := eng.Process(context.Background(), items)

	assert.Equal(t, len(items), res.Completed)
	for _, item := range items {
		require.Equal(t, types.StateDone, item.State(), item.Path)
		assert.Equal(t, want[item.Path], item.Digest().Hex())
	}
}

// TestCrossGroupIsolation: groups on different roots are processed
// independently; a mixed batch completes everything.
func TestCrossGroupIsolation(t *testing.T) {
	hddDir := t.TempDir()
	ssdDir := t.TempDir()

	vc := storage.NewVerdictCache(storage.NewClassifier(dirRootProbe{}))
	vc.Put(hddDir, storage.Classification{Root: hddDir, Verdict: storage.VerdictRotational})
	vc.Put(ssdDir, storage.Classification{Root: ssdDir, Verdict: storage.VerdictFlash})

	var items []*types.WorkItem
	for i := range 6 {
		dir := hddDir
		if i%2 == 0 {
			dir = ssdDir
		}
		path, _ := writeFile(t, dir, string(rune('a'+i)), 2048)
		items = append(items, types.NewWorkItem(path, 2048))
	}

	eng := New(Options{Algorithm: types.AlgXXH3, FlashWorkers: 2, Verdicts: vc})
	res := eng.Process(context.Background(), items)

	assert.Equal(t, 6, res.Completed)
	for _, item := range items {
		assert.Equal(t, types.StateDone, item.State())
	}
}

// TestPerFileFailureIsolated: a missing file fails alone; siblings in the
// same group still complete.
func TestPerFileFailureIsolated(t *testing.T) {
	dir := t.TempDir()

	good1, _ := writeFile(t, dir, "good1", 1024)
	good2, _ := writeFile(t, dir, "good2", 1024)
	items := []*types.WorkItem{
		types.NewWorkItem(good1, 1024),
		types.NewWorkItem(filepath.Join(dir, "missing"), 1024),
		types.NewWorkItem(good2, 1024),
	}

	eng := New(Options{
		Algorithm: types.AlgXXH64,
		Verdicts:  newVerdicts(t, storage.VerdictRotational, dir),
	})
	res := eng.Process(context.Background(), items)

	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, types.StateDone, items[0].State())
	assert.Equal(t, types.StateFailed, items[1].State())
	assert.ErrorIs(t, items[1].Err(), os.ErrNotExist)
	assert.Equal(t, types.StateDone, items[2].State())
}

// TestShrunkenFile: a file shorter than its recorded length fails with a
// truncation error instead of yielding a digest over the prefix.
func TestShrunkenFile(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeFile(t, dir, "shrunk", 5*1024)

	// Recorded length predates the shrink.
	item := types.NewWorkItem(path, 10*1024)

	eng := New(Options{
		Algorithm: types.AlgSHA256,
		Verdicts:  newVerdicts(t, storage.VerdictRotational, dir),
	})
	res := eng.Process(context.Background(), []*types.WorkItem{item})

	assert.Equal(t, 1, res.Failed)
	require.Equal(t, types.StateFailed, item.State())
	assert.ErrorIs(t, item.Err(), digest.ErrTruncated)
}

// TestCancelledBeforeStart: a batch submitted with an already-cancelled
// context starts no files at all.
func TestCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	var items []*types.WorkItem
	for i := range 5 {
		path, _ := writeFile(t, dir, string(rune('a'+i)), 1024)
		items = append(items, types.NewWorkItem(path, 1024))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(Options{
		Algorithm: types.AlgMD5,
		Verdicts:  newVerdicts(t, storage.VerdictFlash, dir),
	})
	res := eng.Process(ctx, items)

	assert.Zero(t, res.Completed)
	assert.Equal(t, 5, res.Cancelled)
	for _, item := range items {
		assert.Equal(t, types.StateCancelled, item.State())
	}
}

// TestCancellationMidBatch: cancelling after the first file completes
// leaves it Done and prevents every not-yet-started file from leaving
// Pending for Hashing. The sequential group makes the boundary exact: the
// progress sink fires during file 2, so files 3-5 are never dispatched.
func TestCancellationMidBatch(t *testing.T) {
	dir := t.TempDir()

	small, _ := writeFile(t, dir, "first", 1024)
	items := []*types.WorkItem{types.NewWorkItem(small, 1024)}
	for i := range 4 {
		path, _ := writeFile(t, dir, "large-"+string(rune('a'+i)), 1024*1024)
		items = append(items, types.NewWorkItem(path, 1024*1024))
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng := New(Options{
		Algorithm:          types.AlgSHA1,
		LargeFileThreshold: 1,
		BufferSize:         64 * 1024,
		OnProgress: func(path string, percent float64) {
			cancel()
		},
		Verdicts: newVerdicts(t, storage.VerdictRotational, dir),
	})
	res := eng.Process(ctx, items)

	assert.Equal(t, types.StateDone, items[0].State(), "completed file keeps its result")
	for _, item := range items[2:] {
		assert.Equal(t, types.StateCancelled, item.State(), item.Path)
	}
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, res.Cancelled+res.Completed+res.Failed, len(items))
	assert.Zero(t, res.Failed)
}

// TestCancellationInFlashGroup: cancelling mid-batch in a parallel group
// leaves every item in a terminal state. The file being read when the
// signal fires aborts at its next chunk boundary, so at least one item is
// Cancelled; completion order across workers is otherwise unspecified.
func TestCancellationInFlashGroup(t *testing.T) {
	dir := t.TempDir()

	var items []*types.WorkItem
	for i := range 5 {
		path, _ := writeFile(t, dir, "f-"+string(rune('a'+i)), 1024*1024)
		items = append(items, types.NewWorkItem(path, 1024*1024))
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng := New(Options{
		Algorithm:          types.AlgXXH3,
		FlashWorkers:       2,
		LargeFileThreshold: 1,
		BufferSize:         64 * 1024,
		OnProgress: func(string, float64) {
			cancel()
		},
		Verdicts: newVerdicts(t, storage.VerdictFlash, dir),
	})
	res := eng.Process(ctx, items)

	for _, item := range items {
		state := item.State()
		assert.Contains(t,
			[]types.State{types.StateDone, types.StateCancelled}, state, item.Path)
		if state == types.StateDone {
			assert.Len(t, item.Digest(), types.AlgXXH3.DigestSize())
		}
	}
	assert.Equal(t, len(items), res.Completed+res.Cancelled)
	assert.GreaterOrEqual(t, res.Cancelled, 1)
	assert.Zero(t, res.Failed)
}

// TestDigestCache: a second run over unchanged files is served from the
// cache without re-reading.
func TestDigestCache(t *testing.T) {
	dir := t.TempDir()

	var first []*types.WorkItem
	var second []*types.WorkItem
	for i := range 4 {
		path, _ := writeFile(t, dir, string(rune('a'+i)), 4096)
		first = append(first, types.NewWorkItem(path, 4096))
		second = append(second, types.NewWorkItem(path, 4096))
	}

	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	newEngine := func() *Engine {
		return New(Options{
			Algorithm: types.AlgXXH3,
			Verdicts:  newVerdicts(t, storage.VerdictRotational, dir),
			Cache:     c,
		})
	}

	res1 := newEngine().Process(context.Background(), first)
	assert.Equal(t, 4, res1.Completed)
	assert.Zero(t, res1.CacheHits)

	res2 := newEngine().Process(context.Background(), second)
	assert.Equal(t, 4, res2.Completed)
	assert.Equal(t, 4, res2.CacheHits)
	assert.Equal(t, res1.Bytes, res2.Bytes, "cache hits still count toward total bytes")

	for i := range first {
		assert.Equal(t, first[i].Digest().Hex(), second[i].Digest().Hex())
	}
}

// TestProgressOnlyForLargeFiles: files under the threshold bypass the
// instrumentation entirely.
func TestProgressOnlyForLargeFiles(t *testing.T) {
	dir := t.TempDir()

	smallPath, _ := writeFile(t, dir, "small", 1024)
	largePath, _ := writeFile(t, dir, "large", 2*1024*1024)

	seen := make(map[string]bool)
	eng := New(Options{
		Algorithm:          types.AlgXXH3,
		LargeFileThreshold: 512 * 1024,
		BufferSize:         64 * 1024,
		OnProgress: func(path string, percent float64) {
			seen[path] = true
			assert.LessOrEqual(t, percent, 100.0)
		},
		Verdicts: newVerdicts(t, storage.VerdictRotational, dir),
	})

	items := []*types.WorkItem{
		types.NewWorkItem(smallPath, 1024),
		types.NewWorkItem(largePath, 2*1024*1024),
	}
	res := eng.Process(context.Background(), items)

	assert.Equal(t, 2, res.Completed)
	assert.True(t, seen[largePath], "large file should report progress")
	assert.False(t, seen[smallPath], "small file should not be instrumented")
}
