package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/Wishwanderer/gosfv/pkg/gosfv/types"
)

// collectItems resolves the argument paths into work items. Files are
// taken as-is; directories are walked recursively with fastwalk. The
// result is sorted by path so batches are deterministic regardless of walk
// interleaving.
func collectItems(paths, exclude []string) ([]*types.WorkItem, error) {
	var mu sync.Mutex
	var items []*types.WorkItem

	add := func(path string, size int64) {
		mu.Lock()
		items = append(items, types.NewWorkItem(path, size))
		mu.Unlock()
	}

	conf := fastwalk.Config{Follow: false}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			add(abs, info.Size())
			continue
		}

		err = fastwalk.Walk(&conf, abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				printError("%s: %v", path, err)
				return nil
			}
			if isExcluded(path, exclude) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				printError("%s: %v", path, err)
				return nil
			}
			add(path, fi.Size())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

// isExcluded checks a path against exclusion patterns: exact prefix for
// directories, glob against the basename and the full path.
func isExcluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if path == pattern || (len(path) > len(pattern) && path[:len(pattern)+1] == pattern+string(filepath.Separator)) {
			return true
		}
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
