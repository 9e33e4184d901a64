package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeTree creates every file (slash-separated, relative to root) with
// small content, creating parent directories as needed.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func TestBuildEntryMap(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "a.js", "sub/b.js", "sub/c.txt")

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatalf("BuildEntryMap failed: %v", err)
	}

	want := EntryMap{
		"a":     filepath.Join(tmpDir, "a.js"),
		"sub/b": filepath.Join(tmpDir, "sub", "b.js"),
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestBuildEntryMapCountsEveryMatch(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		"index.js",
		"pages/home.js",
		"pages/admin/users.js",
		"pages/admin/roles.js",
		"lib/a/b/c/d/e/deep.js",
		"vendor.min.js",
	}
	writeTree(t, tmpDir, files...)

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatalf("BuildEntryMap failed: %v", err)
	}
	if len(entries) != len(files) {
		t.Errorf("Expected %d entries, got %d: %v", len(files), len(entries), entries)
	}
	if got := entries["lib/a/b/c/d/e/deep"]; got != filepath.Join(tmpDir, "lib", "a", "b", "c", "d", "e", "deep.js") {
		t.Errorf("deep entry = %q", got)
	}
	if _, ok := entries["vendor.min"]; !ok {
		t.Error("Expected only the suffix to be stripped from vendor.min.js")
	}
}

func TestBuildEntryMapSkipsNonMatching(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "app.js", "app.jsx", "style.css", "README", "js", "notes.js.txt")

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}

	for name, path := range entries {
		if filepath.Ext(path) != ".js" {
			t.Errorf("entry %q maps to non-matching file %s", name, path)
		}
	}
	if len(entries) != 1 {
		t.Errorf("Expected only app.js, got %v", entries)
	}
}

func TestBuildEntryMapDirectoriesNeverEntries(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "widgets.js", "inner"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, tmpDir, "widgets.js/inner/x.js")

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := EntryMap{"widgets.js/inner/x": filepath.Join(tmpDir, "widgets.js", "inner", "x.js")}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestBuildEntryMapEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty", "nested", "deeper"), 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatalf("Expected no error for empty tree, got %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil map, got %#v", entries)
	}
}

func TestBuildEntryMapNotFound(t *testing.T) {
	_, err := BuildEntryMap(filepath.Join(t.TempDir(), "missing"), ".js", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBuildEntryMapRootIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "file.js")

	_, err := BuildEntryMap(filepath.Join(tmpDir, "file.js"), ".js", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a file root, got %v", err)
	}
}

func TestBuildEntryMapEmptySuffix(t *testing.T) {
	_, err := BuildEntryMap(t.TempDir(), "", nil)
	if !errors.Is(err, ErrEmptySuffix) {
		t.Errorf("Expected ErrEmptySuffix, got %v", err)
	}
}

func TestBuildEntryMapIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "a.js", "b/c.js", "b/d/e.js", "f.txt")

	first, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(second) {
		t.Errorf("Builds differ:\n%s", cmp.Diff(first, second))
	}
}

func TestBuildEntryMapRelativeRoot(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "js/index.js")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	entries, err := BuildEntryMap("js", ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := entries["index"]
	if !filepath.IsAbs(got) {
		t.Errorf("Expected absolute path, got %q", got)
	}
	if filepath.Base(got) != "index.js" {
		t.Errorf("Unexpected path %q", got)
	}
}

func TestBuildEntryMapDuplicateCaseInsensitive(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "App.js", "app.js")
	if entries, _ := os.ReadDir(tmpDir); len(entries) != 2 {
		t.Skip("file system is case-insensitive")
	}

	_, err := BuildEntryMap(tmpDir, ".js", &Options{CaseInsensitive: true})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected *DuplicateKeyError, got %T", err)
	}
	if dup.First != filepath.Join(tmpDir, "App.js") || dup.Second != filepath.Join(tmpDir, "app.js") {
		t.Errorf("Unexpected collision paths: %s, %s", dup.First, dup.Second)
	}

	// Without case folding both names are distinct.
	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries, got %v", entries)
	}
}

func TestBuildEntryMapDuplicateLastWins(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "Nav/menu.js", "nav/menu.js")
	if entries, _ := os.ReadDir(tmpDir); len(entries) != 2 {
		t.Skip("file system is case-insensitive")
	}

	entries, err := BuildEntryMap(tmpDir, ".js", &Options{
		CaseInsensitive: true,
		OnDuplicate:     DuplicateLastWins,
	})
	if err != nil {
		t.Fatalf("Expected last-wins to succeed, got %v", err)
	}

	// "Nav" sorts before "nav", so nav/menu.js is visited last.
	want := EntryMap{"nav/menu": filepath.Join(tmpDir, "nav", "menu.js")}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestBuildEntryMapPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "ok.js", "locked/secret.js")
	locked := filepath.Join(tmpDir, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0755)

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
	if entries != nil {
		t.Errorf("Expected no partial map, got %v", entries)
	}
}

func TestBuildEntryMapSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "real/a.js", "shared/lib.js")
	if err := os.Symlink(filepath.Join(tmpDir, "shared", "lib.js"), filepath.Join(tmpDir, "linked.js")); err != nil {
		t.Fatal(err)
	}
	// A loop back to the root.
	if err := os.Symlink(tmpDir, filepath.Join(tmpDir, "real", "loop")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(tmpDir, "missing.js"), filepath.Join(tmpDir, "dangling.js")); err != nil {
		t.Fatal(err)
	}

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := EntryMap{
		"real/a":     filepath.Join(tmpDir, "real", "a.js"),
		"shared/lib": filepath.Join(tmpDir, "shared", "lib.js"),
		"linked":     filepath.Join(tmpDir, "linked.js"),
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}

	followed, err := BuildEntryMap(tmpDir, ".js", &Options{FollowSymlinks: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, followed); diff != "" {
		t.Errorf("loop should not add entries (-want +got):\n%s", diff)
	}
}

func TestBuildEntryMapFollowsSymlinkedDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := t.TempDir()
	writeTree(t, outside, "plugin.js")
	tmpDir := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(tmpDir, "plugins")); err != nil {
		t.Fatal(err)
	}

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("symlinked dir should not be followed by default, got %v", entries)
	}

	entries, err = BuildEntryMap(tmpDir, ".js", &Options{FollowSymlinks: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := entries["plugins/plugin"]; got != filepath.Join(tmpDir, "plugins", "plugin.js") {
		t.Errorf("plugins/plugin = %q, entries %v", got, entries)
	}
}

func TestBuildEntryMapSymlinkedDirInsideRootWalkedOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	tests := []struct {
		name string
		link string
		real string
		want string
	}{
		// The link sorts before its target, so it reaches the directory first.
		{name: "link first", link: "alink", real: "zreal", want: "alink/x"},
		{name: "target first", link: "zlink", real: "areal", want: "areal/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeTree(t, tmpDir, tt.real+"/x.js")
			if err := os.Symlink(filepath.Join(tmpDir, tt.real), filepath.Join(tmpDir, tt.link)); err != nil {
				t.Fatal(err)
			}

			entries, err := BuildEntryMap(tmpDir, ".js", &Options{FollowSymlinks: true})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{tt.want}, entries.Names()); diff != "" {
				t.Errorf("unexpected names (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildEntryMapSkipsBareSuffixFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, ".js", "sub/.js", "sub/a.js")

	entries, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"sub/a"}, entries.Names()); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
}

func TestBuildEntryMapPrunePaths(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "config.json", ".entrymap/state.json", "other/.entrymap/keep.json")

	entries, err := BuildEntryMap(tmpDir, ".json", &Options{
		Prune: []string{filepath.Join(tmpDir, ".entrymap")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"config", "other/.entrymap/keep"}, entries.Names()); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
}

func TestOptionsPruneDir(t *testing.T) {
	tmpDir := t.TempDir()
	opts := &Options{
		SkipCommonDirs: true,
		Exclude:        []string{"legacy/**"},
		Prune:          []string{filepath.Join(tmpDir, "state")},
	}
	tests := []struct {
		name, rel string
		want      bool
	}{
		{"node_modules", "node_modules", true},
		{"legacy", "legacy", true},
		{"state", "state", true},
		{"src", "src", false},
		{"state", "src/state", false},
	}
	for _, tt := range tests {
		abs := filepath.Join(tmpDir, filepath.FromSlash(tt.rel))
		if got := opts.PruneDir(tt.name, tt.rel, abs); got != tt.want {
			t.Errorf("PruneDir(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestBuildEntryMapSkipCommonDirs(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "main.js", "node_modules/pkg/index.js", ".git/hooks/x.js")

	entries, err := BuildEntryMap(tmpDir, ".js", &Options{SkipCommonDirs: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"main"}, entries.Names()); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}

	all, err := BuildEntryMap(tmpDir, ".js", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 entries without pruning, got %v", all.Names())
	}
}

func TestBuildEntryMapExclude(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir,
		"index.js",
		"index.test.js",
		"legacy/old.js",
		"pages/home.js",
		"pages/__tests__/home.js",
	)

	entries, err := BuildEntryMap(tmpDir, ".js", &Options{
		Exclude: []string{"**/*.test.js", "legacy/**", "**/__tests__"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"index", "pages/home"}, entries.Names()); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
}

func TestEntryMapDiff(t *testing.T) {
	prev := EntryMap{"a": "/r/a.js", "b": "/r/b.js", "c": "/r/c.js"}
	cur := EntryMap{"a": "/r/a.js", "c": "/r/C.js", "d": "/r/d.js"}

	added, removed := cur.Diff(prev)
	if diff := cmp.Diff([]string{"c", "d"}, added); diff != "" {
		t.Errorf("added (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "c"}, removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want DuplicatePolicy
		ok   bool
	}{
		{"", DuplicateError, true},
		{"error", DuplicateError, true},
		{"last-wins", DuplicateLastWins, true},
		{"overwrite", DuplicateLastWins, true},
		{"first-wins", DuplicateError, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuplicatePolicy(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDuplicatePolicy(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
