// Package detector finds changes in a watched directory by comparing file
// signatures against a snapshot taken on earlier scans.
//
// Known limitations, kept deliberately:
//   - Scan is single-level unless Options.Recursive is set. A subdirectory is
//     itself an entry, so files created or removed directly inside it still
//     bump its modification time, but edits deeper down go unnoticed.
//   - Deleted entries are never reported and stay in the snapshot.
//   - When a modification time is unavailable the file size is used, which
//     misses same-size rewrites.
package detector

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Snapshot maps an entry identifier (path relative to the watched directory)
// to its last observed signature. It is private working state of one
// watcher loop and must not be shared.
type Snapshot map[string]int64

func NewSnapshot() Snapshot { return make(Snapshot) }

// Options tunes a scan.
type Options struct {
	Recursive bool
}

// errStop ends a WalkDir early once a change has been found.
var errStop = errors.New("stop walk")

// Scan walks dir and reports whether any entry's signature differs from the
// one recorded in snap. Entries seen for the first time are recorded without
// counting as a change. Scanning stops at the first change, so entries after
// it are only brought up to date on a later scan.
func Scan(dir string, snap Snapshot, opts Options) (bool, error) {
	if opts.Recursive {
		return scanRecursive(dir, snap)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if snap.observe(e.Name(), signature(info)) {
			return true, nil
		}
	}
	return false, nil
}

func scanRecursive(dir string, snap Snapshot) (bool, error) {
	changed := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if path == dir {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		if snap.observe(filepath.ToSlash(rel), signature(info)) {
			changed = true
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return false, err
	}
	return changed, nil
}

// observe records sig for id and reports whether it replaced a different value.
func (s Snapshot) observe(id string, sig int64) bool {
	prev, ok := s[id]
	s[id] = sig
	return ok && prev != sig
}

// signature is the modification time in whole Unix seconds, or the size in
// bytes when no modification time is available.
func signature(info fs.FileInfo) int64 {
	mt := info.ModTime()
	if mt.IsZero() {
		return info.Size()
	}
	return mt.Unix()
}
