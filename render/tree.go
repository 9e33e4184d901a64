package render

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"entrymap/bundle"
	"entrymap/scanner"

	"github.com/charmbracelet/lipgloss"
)

// row is one line of a tree: an entry name and what it points at.
type row struct {
	name   string
	target string
}

// Tree renders the entry map grouped by top-level directory. Paths are shown
// relative to root when possible.
func Tree(w io.Writer, root string, entries scanner.EntryMap) {
	rows := make([]row, 0, len(entries))
	for _, name := range entries.Names() {
		rows = append(rows, row{name: name, target: relTo(root, entries[name])})
	}
	title := fmt.Sprintf("%s · entries", filepath.Base(root))
	summary := fmt.Sprintf("%d entries", len(rows))
	renderRows(w, title, summary, rows)
}

// Targets renders a bundle plan in the same layout as Tree, pointing each
// entry at its output file.
func Targets(w io.Writer, root string, m *bundle.Manifest) {
	rows := make([]row, 0, len(m.Targets))
	for _, t := range m.Targets {
		rows = append(rows, row{name: t.Name, target: t.Output})
	}
	title := fmt.Sprintf("%s · bundles → %s", filepath.Base(root), m.Output.Dir)
	summary := fmt.Sprintf("%d bundles", len(rows))
	renderRows(w, title, summary, rows)
}

func renderRows(w io.Writer, title, summary string, rows []row) {
	st := newStyles(lipgloss.NewRenderer(w))
	width := widthOf(w)

	fmt.Fprintln(w, st.box.Render(st.title.Render(title)))

	if len(rows) == 0 {
		fmt.Fprintln(w, st.muted.Render("  No entries found."))
		return
	}

	groups := make(map[string][]row)
	for _, r := range rows {
		groups[groupOf(r.name)] = append(groups[groupOf(r.name)], r)
	}
	var groupNames []string
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	// Top-level entries first, then directories in order.
	sort.Slice(groupNames, func(i, j int) bool {
		if groupNames[i] == "" || groupNames[j] == "" {
			return groupNames[i] == ""
		}
		return groupNames[i] < groupNames[j]
	})

	for _, group := range groupNames {
		fmt.Fprintln(w)
		header := "./"
		if group != "" {
			header = group + "/"
		}
		rule := strings.Repeat("═", max(1, 60-lipgloss.Width(header)-1))
		fmt.Fprintf(w, "%s %s\n", st.group.Render(header), st.muted.Render(rule))

		members := groups[group]
		for i, r := range members {
			branch := "├── "
			if i == len(members)-1 {
				branch = "└── "
			}
			name := strings.TrimPrefix(r.name, group+"/")
			if group == "" {
				name = r.name
			}
			prefix := "  " + branch + name + " ───▶ "
			target := truncateLeft(r.target, width-lipgloss.Width(prefix))
			fmt.Fprintf(w, "  %s%s %s %s\n",
				st.muted.Render(branch), st.name.Render(name), st.muted.Render("───▶"), st.path.Render(target))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s · %d groups\n", summary, len(groupNames))
}

// groupOf returns the top-level directory of a name, "" for names at the
// root.
func groupOf(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// relTo returns path relative to root in slash form, or path unchanged.
func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
