package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventLoop processes file system events. Relevant events restart the
// debounce timer; the map is rebuilt once the timer fires.
func (d *Daemon) eventLoop() {
	defer d.wg.Done()

	timer := time.NewTimer(d.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-d.done:
			timer.Stop()
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !d.handleEvent(event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.cfg.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			update, changed := d.Rebuild()
			if !changed {
				continue
			}
			d.writeState()
			if d.cfg.OnChange != nil {
				d.cfg.OnChange(update)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("watcher error", "err", err)
		}
	}
}

// handleEvent records an event and reports whether it can change the entry
// map: a file ending with the suffix, a directory appearing or vanishing, or
// a .gitignore edit when gitignore rules are active.
func (d *Daemon) handleEvent(fsEvent fsnotify.Event) bool {
	op := opName(fsEvent.Op)
	if op == "" {
		return false
	}

	relPath, err := filepath.Rel(d.root, fsEvent.Name)
	if err != nil {
		relPath = fsEvent.Name
	}
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(fsEvent.Name)

	if strings.HasPrefix(fsEvent.Name, d.stateDir+string(filepath.Separator)) || fsEvent.Name == d.stateDir {
		return false
	}

	if base == ".gitignore" && d.cfg.Options.Ignore != nil {
		d.cfg.Options.Ignore.Invalidate(filepath.Dir(relPath))
		d.record(Event{Time: time.Now(), Op: op, Path: relPath})
		return true
	}

	if strings.HasSuffix(base, d.cfg.Suffix) {
		// A directory named like an entry is not an entry.
		isDir := false
		if op == "CREATE" {
			if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
				isDir = true
			}
		}
		if !isDir {
			if op == "WRITE" {
				// Content edits never change names or paths.
				return false
			}
			d.record(Event{
				Time: time.Now(),
				Op:   op,
				Path: relPath,
				Name: strings.TrimSuffix(relPath, d.cfg.Suffix),
			})
			return true
		}
	}

	switch op {
	case "CREATE":
		info, err := os.Stat(fsEvent.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		if d.pruned(fsEvent.Name) {
			return false
		}
		// Files may already exist inside the new directory; the rebuild
		// picks them up once every level is watched.
		if err := d.addWatchDirs(fsEvent.Name); err != nil {
			d.logger.Warn("failed to watch new directory", "path", relPath, "err", err)
		}
		d.record(Event{Time: time.Now(), Op: op, Path: relPath})
		return true

	case "REMOVE", "RENAME":
		d.mu.Lock()
		watched := d.dirs[fsEvent.Name]
		if watched {
			prefix := fsEvent.Name + string(filepath.Separator)
			for dir := range d.dirs {
				if dir == fsEvent.Name || strings.HasPrefix(dir, prefix) {
					delete(d.dirs, dir)
				}
			}
		}
		d.mu.Unlock()
		if !watched {
			return false
		}
		d.record(Event{Time: time.Now(), Op: op, Path: relPath})
		return true
	}
	return false
}

func opName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "CREATE"
	case op&fsnotify.Write != 0:
		return "WRITE"
	case op&fsnotify.Remove != 0:
		return "REMOVE"
	case op&fsnotify.Rename != 0:
		return "RENAME"
	default:
		return ""
	}
}

// record appends an event to the history and the event log.
func (d *Daemon) record(e Event) {
	d.mu.Lock()
	d.events = append(d.events, e)
	if len(d.events) > maxEvents {
		d.events = append([]Event(nil), d.events[len(d.events)-maxEvents:]...)
	}
	d.mu.Unlock()

	d.logger.Debug("event", "op", e.Op, "path", e.Path)
	d.logEvent(e)
}

// logEvent appends an event to events.log in the state directory.
func (d *Daemon) logEvent(e Event) {
	f, err := os.OpenFile(filepath.Join(d.stateDir, "events.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	// Format: timestamp | OP | path | name
	fmt.Fprintf(f, "%s | %-6s | %-40s | %s\n",
		e.Time.Format("2006-01-02 15:04:05"),
		e.Op,
		e.Path,
		e.Name,
	)
}
