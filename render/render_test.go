package render

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"entrymap/bundle"
	"entrymap/scanner"
	"entrymap/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
)

func sampleEntries(root string) scanner.EntryMap {
	return scanner.EntryMap{
		"main":        filepath.Join(root, "main.js"),
		"pages/home":  filepath.Join(root, "pages", "home.js"),
		"pages/about": filepath.Join(root, "pages", "about.js"),
	}
}

func TestTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "js")
	var buf bytes.Buffer
	Tree(&buf, root, sampleEntries(root))
	out := buf.String()

	for _, want := range []string{
		"js · entries",
		"main ───▶ main.js",
		"├── about ───▶ pages/about.js",
		"└── home ───▶ pages/home.js",
		"3 entries · 2 groups",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "./") > strings.Index(out, "pages/") {
		t.Errorf("top-level group should come first:\n%s", out)
	}
}

func TestTreeEmpty(t *testing.T) {
	var buf bytes.Buffer
	Tree(&buf, t.TempDir(), scanner.EntryMap{})
	if !strings.Contains(buf.String(), "No entries found.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestTargets(t *testing.T) {
	root := t.TempDir()
	m, err := bundle.Plan(sampleEntries(root), bundle.OutputConfig{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	Targets(&buf, root, m)
	out := buf.String()
	for _, want := range []string{
		"bundles → assets",
		"main ───▶ " + filepath.Join("assets", "main.bundle.js"),
		"3 bundles · 2 groups",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGroupOf(t *testing.T) {
	tests := map[string]string{
		"main":          "",
		"pages/home":    "pages",
		"a/b/c/deep":    "a",
		"vendor.min":    "",
		"admin/users/x": "admin",
	}
	for name, want := range tests {
		if got := groupOf(name); got != want {
			t.Errorf("groupOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestTruncateLeft(t *testing.T) {
	if got := truncateLeft("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := truncateLeft("pages/admin/users.js", 10)
	if got != "…/users.js" {
		t.Errorf("got %q", got)
	}
}

func TestCenterString(t *testing.T) {
	if got := CenterString("ab", 6); got != "  ab  " {
		t.Errorf("got %q", got)
	}
	if got := CenterString("toolong", 3); got != "toolong" {
		t.Errorf("got %q", got)
	}
}

func TestLiveFooterCentered(t *testing.T) {
	m := NewLive(t.TempDir(), ".js", scanner.EntryMap{}, nil)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 21, Height: 20})

	lines := strings.Split(strings.TrimRight(model.(Live).View(), "\n"), "\n")
	footer := lines[len(lines)-1]
	if !strings.HasPrefix(footer, "      ") || !strings.Contains(footer, "q to quit") {
		t.Errorf("footer not centered: %q", footer)
	}
	if got := lipgloss.Width(footer); got != 21 {
		t.Errorf("footer width = %d, want 21", got)
	}
}

func TestLiveUpdate(t *testing.T) {
	root := t.TempDir()
	updates := make(chan watch.Update)
	m := NewLive(root, ".js", scanner.EntryMap{}, updates)

	next := sampleEntries(root)
	model, cmd := m.Update(updateMsg(watch.Update{
		Time:    time.Now(),
		Entries: next,
		Added:   next.Names(),
	}))
	if cmd == nil {
		t.Error("expected a command waiting for the next update")
	}
	live := model.(Live)
	if diff := cmp.Diff(next, live.entries); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	view := live.View()
	for _, want := range []string{"3 entries", "+pages/home", "pages/about"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestLiveFailedUpdateKeepsEntries(t *testing.T) {
	root := t.TempDir()
	m := NewLive(root, ".js", sampleEntries(root), nil)

	model, _ := m.Update(updateMsg(watch.Update{Time: time.Now(), Err: errors.New("permission denied")}))
	live := model.(Live)
	if len(live.entries) != 3 {
		t.Errorf("entries = %v", live.entries)
	}
	if !strings.Contains(live.View(), "permission denied") {
		t.Errorf("view should show the error:\n%s", live.View())
	}
}

func TestLiveHistoryBounded(t *testing.T) {
	m := NewLive(t.TempDir(), ".js", scanner.EntryMap{}, nil)
	var model tea.Model = m
	for i := 0; i < historySize+3; i++ {
		model, _ = model.Update(updateMsg(watch.Update{Time: time.Now(), Added: []string{"x"}}))
	}
	if n := len(model.(Live).history); n != historySize {
		t.Errorf("history = %d, want %d", n, historySize)
	}
}

func TestLiveQuit(t *testing.T) {
	m := NewLive(t.TempDir(), ".js", scanner.EntryMap{}, nil)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !model.(Live).done || cmd == nil {
		t.Error("q should quit")
	}

	model, cmd = m.Update(closedMsg{})
	if !model.(Live).done || cmd == nil {
		t.Error("closed updates should quit")
	}
}
