// Package bundle turns an entry map into the output plan handed to an
// external bundler: one output file per entry, named from a template.
package bundle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"entrymap/scanner"

	"github.com/zeebo/blake3"
)

const (
	// DefaultDir is the output directory used when none is configured.
	DefaultDir = "assets"
	// DefaultFilename is the output filename template used when none is
	// configured.
	DefaultFilename = "[name].bundle.js"
)

// ErrNoPlaceholder is returned for a filename template that would give
// every entry the same output path.
var ErrNoPlaceholder = errors.New("bundle: filename template needs [name] or [hash]")

// OutputConfig describes where bundles are written.
type OutputConfig struct {
	// Dir is the output directory. Relative paths stay relative.
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
	// Filename is a template; [name] is the logical entry name and [hash]
	// or [hash:N] the BLAKE3 digest of the entry file.
	Filename string `json:"filename" yaml:"filename" toml:"filename"`
}

func (c OutputConfig) withDefaults() OutputConfig {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.Filename == "" {
		c.Filename = DefaultFilename
	}
	return c
}

// Target is one planned bundle.
type Target struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Entry  string `json:"entry" yaml:"entry" toml:"entry"`
	Output string `json:"output" yaml:"output" toml:"output"`
}

// Manifest is the full bundle plan.
type Manifest struct {
	Output  OutputConfig `json:"output" yaml:"output" toml:"output"`
	Targets []Target     `json:"targets" yaml:"targets" toml:"targets"`
}

// EntryMap returns the name -> entry path mapping of the plan.
func (m *Manifest) EntryMap() scanner.EntryMap {
	entries := make(scanner.EntryMap, len(m.Targets))
	for _, t := range m.Targets {
		entries[t.Name] = t.Entry
	}
	return entries
}

// OutputCollisionError is returned when two entries resolve to the same
// output file.
type OutputCollisionError struct {
	Output string
	First  string
	Second string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("bundle: entries %q and %q both write %s", e.First, e.Second, e.Output)
}

var placeholder = regexp.MustCompile(`\[(name|hash)(?::(\d+))?\]`)

// Plan expands the filename template for every entry. Targets are sorted by
// name.
func Plan(entries scanner.EntryMap, cfg OutputConfig) (*Manifest, error) {
	cfg = cfg.withDefaults()
	if !placeholder.MatchString(cfg.Filename) {
		return nil, ErrNoPlaceholder
	}
	needsHash := strings.Contains(cfg.Filename, "[hash")

	m := &Manifest{Output: cfg, Targets: make([]Target, 0, len(entries))}
	owners := make(map[string]string, len(entries))
	for _, name := range entries.Names() {
		entry := entries[name]

		var digest string
		if needsHash {
			var err error
			digest, err = HashFile(entry)
			if err != nil {
				return nil, err
			}
		}

		filename, err := expand(cfg.Filename, name, digest)
		if err != nil {
			return nil, err
		}
		output := filepath.Join(cfg.Dir, filepath.FromSlash(filename))

		if prev, ok := owners[output]; ok {
			return nil, &OutputCollisionError{Output: output, First: prev, Second: name}
		}
		owners[output] = name
		m.Targets = append(m.Targets, Target{Name: name, Entry: entry, Output: output})
	}
	return m, nil
}

func expand(template, name, digest string) (string, error) {
	var expandErr error
	out := placeholder.ReplaceAllStringFunc(template, func(token string) string {
		parts := placeholder.FindStringSubmatch(token)
		if parts[1] == "name" {
			return name
		}
		if parts[2] == "" {
			return digest
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			expandErr = fmt.Errorf("bundle: invalid hash length in %q", token)
			return token
		}
		if n > len(digest) {
			n = len(digest)
		}
		return digest[:n]
	})
	return out, expandErr
}

// HashFile returns the hex BLAKE3-256 digest of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("bundle: hashing %s: %w", path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("bundle: hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
