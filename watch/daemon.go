// Package watch keeps an entry map up to date while files are added, removed
// or renamed under the scan root.
package watch

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"entrymap/scanner"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is used when Config.Debounce is zero.
	DefaultDebounce = 100 * time.Millisecond
	// heartbeat keeps state.json fresh for ReadState.
	heartbeat = 10 * time.Second
	// maxEvents bounds the in-memory event history.
	maxEvents = 500
)

// Daemon watches the scan root and rebuilds the entry map on change.
type Daemon struct {
	cfg      Config
	root     string
	stateDir string
	watcher  *fsnotify.Watcher
	logger   *log.Logger

	mu        sync.RWMutex
	entries   scanner.EntryMap
	lastErr   error
	lastBuild time.Time
	events    []Event
	dirs      map[string]bool // watched directories

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDaemon creates a daemon for cfg. A nil logger discards output.
func NewDaemon(cfg Config, logger *log.Logger) (*Daemon, error) {
	if cfg.Suffix == "" {
		return nil, scanner.ErrEmptySuffix
	}
	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".entrymap"
	}
	stateDir, err := filepath.Abs(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("invalid state dir: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	// The state directory is never part of the map, wherever it lives.
	opts := scanner.Options{}
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	opts.Prune = append(slices.Clone(opts.Prune), stateDir)
	cfg.Options = &opts
	if logger == nil {
		logger = log.New(io.Discard)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		cfg:      cfg,
		root:     absRoot,
		stateDir: stateDir,
		watcher:  watcher,
		logger:   logger.WithPrefix("watch"),
		entries:  make(scanner.EntryMap),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// Start builds the initial map, registers the directory tree and returns
// once the event loop is running. An initial build failure is returned.
func (d *Daemon) Start() error {
	if err := os.MkdirAll(d.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	start := time.Now()
	entries, err := scanner.BuildEntryMap(d.root, d.cfg.Suffix, d.cfg.Options)
	if err != nil {
		d.watcher.Close()
		return fmt.Errorf("initial build failed: %w", err)
	}
	d.mu.Lock()
	d.entries = entries
	d.lastBuild = time.Now()
	d.mu.Unlock()
	d.logger.Debug("initial build", "entries", len(entries), "took", time.Since(start))

	if err := d.addWatchDirs(d.root); err != nil {
		d.watcher.Close()
		return fmt.Errorf("failed to add watch dirs: %w", err)
	}

	d.writeState()

	d.wg.Add(2)
	go d.eventLoop()
	go d.heartbeatLoop()

	d.logger.Info("watching", "root", d.root, "suffix", d.cfg.Suffix, "entries", len(entries))
	return nil
}

// Stop shuts the daemon down and waits for its goroutines. Safe to call
// more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.watcher.Close()
		d.wg.Wait()
		d.logger.Debug("stopped")
	})
}

// Done is closed when Stop has been called.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Root returns the absolute scan root.
func (d *Daemon) Root() string {
	return d.root
}

// StateDir returns the absolute state directory.
func (d *Daemon) StateDir() string {
	return d.stateDir
}

// Entries returns a copy of the current entry map.
func (d *Daemon) Entries() scanner.EntryMap {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make(scanner.EntryMap, len(d.entries))
	for name, path := range d.entries {
		result[name] = path
	}
	return result
}

// EntryCount returns the number of current entries.
func (d *Daemon) EntryCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// LastError returns the error of the latest rebuild, nil if it succeeded.
func (d *Daemon) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Events returns up to limit recent events, oldest first. limit <= 0
// returns all of them.
func (d *Daemon) Events(limit int) []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()

	events := d.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	// Return a copy
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// Rebuild rebuilds the entry map now. The previous map is kept when the
// build fails. It reports whether anything changed, a failure counting as
// a change.
func (d *Daemon) Rebuild() (Update, bool) {
	start := time.Now()
	entries, err := scanner.BuildEntryMap(d.root, d.cfg.Suffix, d.cfg.Options)

	d.mu.Lock()
	update := Update{Time: time.Now(), Err: err}
	prevErr := d.lastErr
	d.lastErr = err
	d.lastBuild = update.Time
	if err == nil {
		update.Added, update.Removed = entries.Diff(d.entries)
		d.entries = entries
	}
	update.Entries = make(scanner.EntryMap, len(d.entries))
	for name, path := range d.entries {
		update.Entries[name] = path
	}
	d.mu.Unlock()

	changed := err != nil || len(update.Added) > 0 || len(update.Removed) > 0 || prevErr != nil
	switch {
	case err != nil:
		d.logger.Error("rebuild failed", "err", err)
	case changed:
		d.logger.Info("entries changed", "added", len(update.Added), "removed", len(update.Removed),
			"entries", len(update.Entries), "took", time.Since(start))
	default:
		d.logger.Debug("rebuild unchanged", "took", time.Since(start))
	}
	return update, changed
}

// addWatchDirs registers dir and every directory below it that a build
// would descend into, following symlinked directories the way the scanner
// does. Unreadable directories are skipped.
func (d *Daemon) addWatchDirs(dir string) error {
	follow := d.cfg.Options.FollowSymlinks
	if !follow && dir != d.root {
		if info, err := os.Lstat(dir); err != nil || info.Mode()&fs.ModeSymlink != 0 {
			return nil
		}
	}

	visited := make(map[string]bool)
	firstVisit := func(path string) bool {
		if !follow {
			return true
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil || visited[real] {
			return false
		}
		visited[real] = true
		return true
	}
	if !firstVisit(dir) {
		return nil
	}

	stack := []string{dir}
	for len(stack) > 0 {
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d.mu.Lock()
		seen := d.dirs[path]
		d.dirs[path] = true
		d.mu.Unlock()
		if !seen {
			if err := d.watcher.Add(path); err != nil {
				return err
			}
		}

		dirEntries, err := os.ReadDir(path)
		if err != nil {
			continue
		}
		var subdirs []string
		for _, de := range dirEntries {
			child := filepath.Join(path, de.Name())
			isDir := de.IsDir()
			if de.Type()&fs.ModeSymlink != 0 && follow {
				info, err := os.Stat(child)
				isDir = err == nil && info.IsDir()
			}
			if !isDir || d.pruned(child) || !firstVisit(child) {
				continue
			}
			subdirs = append(subdirs, child)
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return nil
}

// pruned applies the scanner's directory pruning to an absolute path.
func (d *Daemon) pruned(path string) bool {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == "." {
		return false
	}
	return d.cfg.Options.PruneDir(filepath.Base(path), filepath.ToSlash(rel), path)
}

func (d *Daemon) heartbeatLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.writeState()
		}
	}
}
