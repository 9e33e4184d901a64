package scanner

import (
	"maps"
	"slices"
)

// EntryMap maps a logical module name (slash-separated path relative to the
// scan root, suffix stripped) to the absolute path of the file.
type EntryMap map[string]string

// Names returns the logical names in lexical order.
func (m EntryMap) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Equal reports whether both maps hold the same names and paths.
func (m EntryMap) Equal(other EntryMap) bool {
	return maps.Equal(m, other)
}

// Diff returns the names present only in m (added) and only in prev (removed).
// A name whose path changed is reported in both.
func (m EntryMap) Diff(prev EntryMap) (added, removed []string) {
	for name, path := range m {
		if old, ok := prev[name]; !ok || old != path {
			added = append(added, name)
		}
	}
	for name, path := range prev {
		if cur, ok := m[name]; !ok || cur != path {
			removed = append(removed, name)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// DuplicatePolicy decides what happens when two files normalize to the same
// logical name.
type DuplicatePolicy int

const (
	// DuplicateError fails the build with a DuplicateKeyError.
	DuplicateError DuplicatePolicy = iota
	// DuplicateLastWins keeps the file visited last in traversal order.
	DuplicateLastWins
)

// String returns the config spelling of the policy.
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateError:
		return "error"
	case DuplicateLastWins:
		return "last-wins"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy parses "error" or "last-wins". An empty string is
// DuplicateError.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, bool) {
	switch s {
	case "", "error":
		return DuplicateError, true
	case "last-wins", "last_wins", "overwrite":
		return DuplicateLastWins, true
	}
	return DuplicateError, false
}

// Options tunes a build. The zero value (or nil) walks every directory and
// fails on duplicate names.
type Options struct {
	// Ignore applies nested .gitignore rules. Nil disables gitignore handling.
	Ignore *GitIgnoreCache
	// SkipCommonDirs prunes directories listed in IgnoredDirs.
	SkipCommonDirs bool
	// Exclude holds doublestar patterns matched against the slash-separated
	// relative path. Matching directories are pruned.
	Exclude []string
	// FollowSymlinks descends into symlinked directories. Each real
	// directory is still visited at most once.
	FollowSymlinks bool
	// CaseInsensitive compares names case-folded when detecting duplicates.
	CaseInsensitive bool
	// OnDuplicate selects the collision policy.
	OnDuplicate DuplicatePolicy
	// Prune holds absolute directory paths that are never descended into,
	// whatever the other options say.
	Prune []string
}

// PruneDir reports whether a directory is skipped. name is its base name,
// rel its slash-separated path relative to the root and abs its absolute
// path as reached by the walk.
func (o *Options) PruneDir(name, rel, abs string) bool {
	if slices.Contains(o.Prune, abs) {
		return true
	}
	if o.SkipCommonDirs && IgnoredDirs[name] {
		return true
	}
	if len(o.Exclude) > 0 && matchExclude(o.Exclude, rel, true) {
		return true
	}
	return o.Ignore != nil && o.Ignore.Matches(rel, true)
}
