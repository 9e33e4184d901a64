package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"entrymap/config"
	"entrymap/watch"

	"github.com/zeebo/blake3"
)

// maxPending bounds the updates kept between get_updates calls.
const maxPending = 100

// session is one running watch and the updates not yet reported.
type session struct {
	daemon *watch.Daemon

	mu      sync.Mutex
	pending []watch.Update
}

func (s *session) push(u watch.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, u)
	if len(s.pending) > maxPending {
		s.pending = append([]watch.Update(nil), s.pending[len(s.pending)-maxPending:]...)
	}
}

// drain returns and clears the pending updates.
func (s *session) drain() []watch.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates := s.pending
	s.pending = nil
	return updates
}

// registry tracks active watches by absolute root.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

var sessions = &registry{sessions: make(map[string]*session)}

// start begins watching cfg.Root. When a watch for the root already exists
// it is returned with existed set.
func (r *registry) start(cfg *config.Config) (s *session, existed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[cfg.Root]; ok {
		return s, true, nil
	}

	s = &session{}
	daemon, err := watch.NewDaemon(watch.Config{
		Root:     cfg.Root,
		Suffix:   cfg.Suffix,
		Options:  cfg.ScanOptions(cfg.Root),
		Debounce: cfg.Watch.Debounce,
		StateDir: stateDirFor(cfg.Root),
		OnChange: s.push,
	}, logger)
	if err != nil {
		return nil, false, err
	}
	if err := daemon.Start(); err != nil {
		return nil, false, err
	}
	s.daemon = daemon
	r.sessions[cfg.Root] = s
	return s, false, nil
}

// stop stops the watch for root and reports whether one was running.
func (r *registry) stop(root string) bool {
	r.mu.Lock()
	s, ok := r.sessions[root]
	delete(r.sessions, root)
	r.mu.Unlock()
	if ok {
		s.daemon.Stop()
	}
	return ok
}

func (r *registry) get(root string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[root]
}

// list returns the active sessions ordered by root.
func (r *registry) list() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roots := make([]string, 0, len(r.sessions))
	for root := range r.sessions {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	result := make([]*session, 0, len(roots))
	for _, root := range roots {
		result = append(result, r.sessions[root])
	}
	return result
}

func (r *registry) stopAll() {
	for _, s := range r.list() {
		r.stop(s.daemon.Root())
	}
}

// stateDirFor keeps watch state out of the watched tree, in the user cache
// directory under a digest of the root.
func stateDirFor(root string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	sum := blake3.Sum256([]byte(root))
	return filepath.Join(base, "entrymap", hex.EncodeToString(sum[:8]))
}
