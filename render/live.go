package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"entrymap/scanner"
	"entrymap/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// historySize is how many past updates the live view lists.
const historySize = 5

type updateMsg watch.Update

// closedMsg is sent once the update channel is closed.
type closedMsg struct{}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates <-chan watch.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

// Live is a bubbletea model showing the entry map of a running watch and
// the latest changes to it.
type Live struct {
	root    string
	suffix  string
	updates <-chan watch.Update
	st      styles

	entries scanner.EntryMap
	history []watch.Update
	lastErr error
	now     time.Time
	width   int
	height  int
	done    bool
}

// NewLive returns a live view starting from entries and fed by updates.
func NewLive(root, suffix string, entries scanner.EntryMap, updates <-chan watch.Update) Live {
	return Live{
		root:    root,
		suffix:  suffix,
		updates: updates,
		st:      newStyles(lipgloss.DefaultRenderer()),
		entries: entries,
		now:     time.Now(),
		width:   GetTerminalWidth(),
	}
}

func (m Live) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case updateMsg:
		u := watch.Update(msg)
		m.lastErr = u.Err
		if u.Entries != nil {
			m.entries = u.Entries
		}
		m.history = append(m.history, u)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
		return m, waitForUpdate(m.updates)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	}
	return m, nil
}

func (m Live) View() string {
	var sb strings.Builder

	title := fmt.Sprintf("watching %s for *%s", filepath.Base(m.root), m.suffix)
	sb.WriteString(m.st.box.Render(m.st.title.Render(title)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%d entries", len(m.entries))
	if len(m.history) > 0 {
		last := m.history[len(m.history)-1]
		fmt.Fprintf(&sb, " · updated %s ago", m.now.Sub(last.Time).Round(time.Second))
	}
	sb.WriteString("\n")
	if m.lastErr != nil {
		sb.WriteString(m.st.err.Render("✗ " + m.lastErr.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	// Leave room for the header, history and footer.
	limit := len(m.entries)
	if m.height > 0 {
		limit = max(1, m.height-8-2*len(m.history))
	}
	names := m.entries.Names()
	for i, name := range names {
		if i == limit {
			fmt.Fprintf(&sb, "  %s\n", m.st.muted.Render(fmt.Sprintf("+%d more", len(names)-limit)))
			break
		}
		path := truncateLeft(relTo(m.root, m.entries[name]), m.width-3-lipgloss.Width(name))
		fmt.Fprintf(&sb, "  %s %s\n", m.st.name.Render(name), m.st.path.Render(path))
	}

	if len(m.history) > 0 {
		sb.WriteString("\n")
		for i := len(m.history) - 1; i >= 0; i-- {
			sb.WriteString(m.changeLine(m.history[i]))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(CenterString(m.st.muted.Render("q to quit"), m.width))
	sb.WriteString("\n")
	return sb.String()
}

func (m Live) changeLine(u watch.Update) string {
	stamp := m.st.muted.Render(u.Time.Format("15:04:05"))
	if u.Err != nil {
		return fmt.Sprintf("%s %s", stamp, m.st.err.Render("build failed"))
	}
	var parts []string
	for _, name := range u.Added {
		parts = append(parts, m.st.added.Render("+"+name))
	}
	for _, name := range u.Removed {
		parts = append(parts, m.st.removed.Render("-"+name))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s %s", stamp, m.st.added.Render("recovered"))
	}
	return fmt.Sprintf("%s %s", stamp, strings.Join(parts, " "))
}

// RunLive runs the live view until the user quits or updates is closed.
func RunLive(m Live) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
