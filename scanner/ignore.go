package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoredDirs lists dependency, VCS and build output directories pruned when
// Options.SkipCommonDirs is set.
var IgnoredDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
	"__pycache__":      true,
	".venv":            true,
	"venv":             true,
	".idea":            true,
	".vscode":          true,
	"dist":             true,
	"build":            true,
	"target":           true,
	".gradle":          true,
	".next":            true,
	".nuxt":            true,
	".cache":           true,
	".entrymap":        true,
}

// GitIgnoreCache holds compiled .gitignore files per directory so nested
// rules can be applied during a walk. Safe for concurrent use.
type GitIgnoreCache struct {
	root string

	mu    sync.Mutex
	rules map[string]*dirRules // rel dir ("." for root) -> rules, nil if none
}

// dirRules holds one directory's .gitignore. neg is compiled from the
// "!" lines alone so a re-include can be told apart from "no opinion".
type dirRules struct {
	gi  *ignore.GitIgnore
	neg *ignore.GitIgnore
}

// NewGitIgnoreCache creates a cache rooted at root.
func NewGitIgnoreCache(root string) *GitIgnoreCache {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &GitIgnoreCache{
		root:  absRoot,
		rules: make(map[string]*dirRules),
	}
}

// Matches reports whether relPath (relative to the cache root, any
// separator) is ignored. Rules are applied from the root down; the deepest
// .gitignore with an opinion wins, so a child "!pattern" can re-include
// what a parent excluded.
func (c *GitIgnoreCache) Matches(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return false
	}

	parts := strings.Split(relPath, "/")
	ignored := false
	for depth := 0; depth < len(parts); depth++ {
		dir := "."
		if depth > 0 {
			dir = strings.Join(parts[:depth], "/")
		}
		rules := c.rulesFor(dir)
		if rules == nil {
			continue
		}

		sub := strings.Join(parts[depth:], "/")
		if isDir {
			sub += "/"
		}
		switch {
		case rules.gi.MatchesPath(sub):
			ignored = true
		case rules.neg != nil && rules.neg.MatchesPath(sub):
			ignored = false
		}
	}
	return ignored
}

// Invalidate drops the cached rules for relDir, e.g. after its .gitignore
// changed.
func (c *GitIgnoreCache) Invalidate(relDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rules, filepath.ToSlash(relDir))
}

func (c *GitIgnoreCache) rulesFor(relDir string) *dirRules {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rules, ok := c.rules[relDir]; ok {
		return rules
	}
	rules := loadDirRules(filepath.Join(c.root, filepath.FromSlash(relDir)))
	c.rules[relDir] = rules
	return rules
}

func loadDirRules(dir string) *dirRules {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var negated []string
	for _, line := range lines {
		if strings.HasPrefix(line, "!") {
			negated = append(negated, strings.TrimPrefix(line, "!"))
		}
	}

	rules := &dirRules{gi: ignore.CompileIgnoreLines(lines...)}
	if len(negated) > 0 {
		rules.neg = ignore.CompileIgnoreLines(negated...)
	}
	return rules
}

// matchExclude reports whether the slash-separated relative path matches
// any doublestar pattern. A directory also matches "dir/**" so the whole
// subtree is pruned.
func matchExclude(patterns []string, relPath string, isDir bool) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if isDir && strings.HasSuffix(pattern, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), relPath); ok {
				return true
			}
		}
	}
	return false
}

// ValidateExclude checks that every pattern is valid doublestar syntax.
func ValidateExclude(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return &PatternError{Pattern: pattern}
		}
	}
	return nil
}

// PatternError reports an invalid exclude pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("scanner: invalid exclude pattern %q", e.Pattern)
}
