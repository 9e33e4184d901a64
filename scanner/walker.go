// Package scanner discovers bundler entry points by walking a directory tree.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// pending is a directory waiting on the work-list.
type pending struct {
	abs string // absolute path
	rel string // slash-separated path relative to the root, "" for the root
}

// BuildEntryMap walks root and maps every file whose name ends with suffix
// to its logical name: the slash-separated path relative to root with the
// suffix removed. A nil opts walks everything and fails on duplicate names.
//
// The walk uses an explicit work-list instead of recursion. Either the full
// map or an error is returned, never both.
func BuildEntryMap(root, suffix string, opts *Options) (EntryMap, error) {
	if suffix == "" {
		return nil, ErrEmptySuffix
	}
	if opts == nil {
		opts = &Options{}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, classify(absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, absRoot)
	}

	b := &builder{
		suffix:  suffix,
		opts:    opts,
		entries: make(EntryMap),
		owners:  make(map[string]string),
		visited: make(map[string]bool),
	}
	if err := b.walk(absRoot); err != nil {
		return nil, err
	}
	return b.entries, nil
}

type builder struct {
	suffix  string
	opts    *Options
	entries EntryMap
	owners  map[string]string // collision key -> name stored in entries
	visited map[string]bool   // real directory paths, for symlink cycles
}

func (b *builder) walk(absRoot string) error {
	stack := []pending{{abs: absRoot}}
	b.firstVisit(absRoot)

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dirEntries, err := os.ReadDir(dir.abs)
		if err != nil {
			return classify(dir.abs, err)
		}

		// os.ReadDir sorts by name. Push subdirectories in reverse so they
		// pop in lexical order.
		var subdirs []pending
		for _, de := range dirEntries {
			name := de.Name()
			abs := filepath.Join(dir.abs, name)
			rel := name
			if dir.rel != "" {
				rel = dir.rel + "/" + name
			}

			isDir, isFile, err := b.kind(de, abs)
			if err != nil {
				return err
			}

			switch {
			case isDir:
				if b.opts.PruneDir(name, rel, abs) {
					continue
				}
				subdirs = append(subdirs, pending{abs: abs, rel: rel})
			case isFile:
				// A file named exactly the suffix has no stem to name it by.
				if name == b.suffix || !strings.HasSuffix(name, b.suffix) || b.skipFile(rel) {
					continue
				}
				if err := b.add(strings.TrimSuffix(rel, b.suffix), abs); err != nil {
					return err
				}
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return nil
}

// kind classifies a directory entry. Symlinks are resolved; a symlinked
// directory only counts as a directory with FollowSymlinks set. With
// FollowSymlinks set, every directory is walked once under the first path
// that reaches it in walk order. Dangling links are skipped.
func (b *builder) kind(de fs.DirEntry, abs string) (isDir, isFile bool, err error) {
	if de.Type()&fs.ModeSymlink == 0 {
		if de.IsDir() {
			return b.firstVisit(abs), false, nil
		}
		return false, de.Type().IsRegular(), nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, false, classify(abs, err)
		}
		return false, false, nil
	}
	if !info.IsDir() {
		return false, info.Mode().IsRegular(), nil
	}
	if !b.opts.FollowSymlinks {
		return false, false, nil
	}
	return b.firstVisit(abs), false, nil
}

// firstVisit records the real path of a directory and reports whether it
// was new. Without FollowSymlinks no directory can be reached twice.
func (b *builder) firstVisit(abs string) bool {
	if !b.opts.FollowSymlinks {
		return true
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return false
	}
	if b.visited[real] {
		return false
	}
	b.visited[real] = true
	return true
}

func (b *builder) skipFile(rel string) bool {
	if len(b.opts.Exclude) > 0 && matchExclude(b.opts.Exclude, rel, false) {
		return true
	}
	return b.opts.Ignore != nil && b.opts.Ignore.Matches(rel, false)
}

func (b *builder) add(name, abs string) error {
	key := name
	if b.opts.CaseInsensitive {
		key = strings.ToLower(name)
	}

	prev, exists := b.owners[key]
	if exists {
		if b.opts.OnDuplicate != DuplicateLastWins {
			return &DuplicateKeyError{Name: name, First: b.entries[prev], Second: abs}
		}
		delete(b.entries, prev)
	}
	b.owners[key] = name
	b.entries[name] = abs
	return nil
}

// classify maps file system errors onto the scanner sentinels.
func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("scanner: reading %s: %w", path, err)
	}
}
