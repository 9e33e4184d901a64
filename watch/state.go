package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	stateFileName = "state.json"
	pidFileName   = "watch.pid"
	// staleAfter is how old state.json may be before ReadState treats the
	// daemon as gone.
	staleAfter = 30 * time.Second
	// recentEvents is how many events state.json carries.
	recentEvents = 50
)

// writeState persists the current state for other processes to read.
func (d *Daemon) writeState() {
	d.mu.RLock()
	events := d.events
	if len(events) > recentEvents {
		events = events[len(events)-recentEvents:]
	}
	state := State{
		UpdatedAt:    time.Now(),
		Root:         d.root,
		Suffix:       d.cfg.Suffix,
		EntryCount:   len(d.entries),
		Entries:      d.entries,
		LastBuild:    d.lastBuild,
		RecentEvents: events,
	}
	if d.lastErr != nil {
		state.LastError = d.lastErr.Error()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	d.mu.RUnlock()
	if err != nil {
		d.logger.Warn("encoding state", "err", err)
		return
	}

	// Write then rename so readers never see a partial file.
	stateFile := filepath.Join(d.stateDir, stateFileName)
	tmp := stateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		d.logger.Warn("writing state", "err", err)
		return
	}
	if err := os.Rename(tmp, stateFile); err != nil {
		d.logger.Warn("writing state", "err", err)
	}
}

// ReadState reads the daemon state from stateDir. It returns nil if the
// state doesn't exist or is stale (older than 30 seconds).
func ReadState(stateDir string) *State {
	data, err := os.ReadFile(filepath.Join(stateDir, stateFileName))
	if err != nil {
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}

	// Check if state is fresh (daemon still running)
	if time.Since(state.UpdatedAt) > staleAfter {
		return nil
	}

	return &state
}

// WritePID writes the current process ID to stateDir/watch.pid.
func WritePID(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	pidFile := filepath.Join(stateDir, pidFileName)
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// ReadPID reads the daemon PID from stateDir/watch.pid.
func ReadPID(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, pidFileName))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file: %w", err)
	}
	return pid, nil
}

// RemovePID removes the PID file.
func RemovePID(stateDir string) {
	os.Remove(filepath.Join(stateDir, pidFileName))
}

// IsRunning checks whether the process in the PID file is alive.
func IsRunning(stateDir string) bool {
	pid, err := ReadPID(stateDir)
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so send signal 0 to check
	return proc.Signal(syscall.Signal(0)) == nil
}

// StopProcess sends SIGTERM to the daemon recorded in stateDir and removes
// the PID file.
func StopProcess(stateDir string) error {
	pid, err := ReadPID(stateDir)
	if err != nil {
		return fmt.Errorf("no daemon running: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	RemovePID(stateDir)
	return nil
}
