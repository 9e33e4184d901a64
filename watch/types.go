package watch

import (
	"time"

	"entrymap/scanner"
)

// Event is a file system change that touched the entry set.
type Event struct {
	Time time.Time `json:"time"`
	Op   string    `json:"op"`             // CREATE, WRITE, REMOVE, RENAME
	Path string    `json:"path"`           // slash-separated, relative to root
	Name string    `json:"name,omitempty"` // logical entry name for matching files
}

// Update is published after a debounced rebuild changed the entry map, or
// failed.
type Update struct {
	Time    time.Time        `json:"time"`
	Entries scanner.EntryMap `json:"entries,omitempty"`
	Added   []string         `json:"added,omitempty"`
	Removed []string         `json:"removed,omitempty"`
	Err     error            `json:"-"`
}

// Config holds the parameters for a Daemon.
type Config struct {
	// Root is the directory scanned for entries.
	Root string
	// Suffix selects entry files.
	Suffix string
	// Options are passed to scanner.BuildEntryMap on every rebuild.
	Options *scanner.Options
	// Debounce is the quiet period before a rebuild. Zero uses
	// DefaultDebounce.
	Debounce time.Duration
	// StateDir receives state.json, events.log and the pid file. Relative
	// paths are resolved against the working directory.
	StateDir string
	// OnChange is called from the event loop after each rebuild that changed
	// the map or failed. It must not block for long.
	OnChange func(Update)
}

// State is the snapshot written to state.json for other processes.
type State struct {
	UpdatedAt    time.Time         `json:"updated_at"`
	Root         string            `json:"root"`
	Suffix       string            `json:"suffix"`
	EntryCount   int               `json:"entry_count"`
	Entries      map[string]string `json:"entries"`
	LastError    string            `json:"last_error,omitempty"`
	LastBuild    time.Time         `json:"last_build"`
	RecentEvents []Event           `json:"recent_events"` // last 50 events
}
