package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"entrymap/config"
	"entrymap/render"
	"entrymap/watch"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// updateBuffer is how many updates may queue for the printer before new
// ones are dropped.
const updateBuffer = 16

type watchFlagValues struct {
	live     bool
	detach   bool
	debounce time.Duration
}

func newWatchCmd(rootFlags *rootFlagValues) *cobra.Command {
	scanFlags := &scanFlagValues{}
	watchFlags := &watchFlagValues{}

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Keep the entry map up to date as files change",
		Long: `Build the entry map, then rebuild it whenever an entry file is created,
removed or renamed under root. Changes are printed as they happen and the
current map is kept in the state directory for 'entrymap watch status'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootFlags, scanFlags, watchFlags, args)
		},
	}

	addScanFlags(cmd.Flags(), scanFlags)
	cmd.Flags().BoolVar(&watchFlags.live, "live", false, "show a live view instead of a change log")
	cmd.Flags().BoolVar(&watchFlags.detach, "detach", false, "run the watch in the background")
	cmd.Flags().DurationVar(&watchFlags.debounce, "debounce", 0, "quiet period before a rebuild (default 100ms)")

	cmd.AddCommand(newWatchStatusCmd(rootFlags))
	cmd.AddCommand(newWatchStopCmd(rootFlags))
	return cmd
}

func runWatch(cmd *cobra.Command, rootFlags *rootFlagValues, scanFlags *scanFlagValues, watchFlags *watchFlagValues, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), rootFlags.verbose)

	cfg, err := loadConfig(rootFlags)
	if err != nil {
		return err
	}
	describeConfig(logger, cfg)
	applyRoot(cfg, args)
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.Debounce = watchFlags.debounce
	}
	if err := applyScanFlags(cmd.Flags(), scanFlags, cfg); err != nil {
		return err
	}

	if watch.IsRunning(cfg.Watch.StateDir) {
		return fmt.Errorf("watch already running for %s (see 'entrymap watch status')", cfg.Watch.StateDir)
	}
	if watchFlags.detach {
		return detach(cmd.OutOrStdout())
	}

	return serveWatch(cmd, cfg, logger, watchFlags.live)
}

// serveWatch runs the daemon in the foreground until the context is
// cancelled or the live view is closed.
func serveWatch(cmd *cobra.Command, cfg *config.Config, logger *log.Logger, live bool) error {
	updates := make(chan watch.Update, updateBuffer)
	daemon, err := watch.NewDaemon(watch.Config{
		Root:     cfg.Root,
		Suffix:   cfg.Suffix,
		Options:  cfg.ScanOptions(cfg.Root),
		Debounce: cfg.Watch.Debounce,
		StateDir: cfg.Watch.StateDir,
		OnChange: func(u watch.Update) {
			select {
			case updates <- u:
			default:
				logger.Warn("dropping update, output is behind")
			}
		},
	}, logger)
	if err != nil {
		return err
	}
	if err := daemon.Start(); err != nil {
		return err
	}
	defer daemon.Stop()

	if err := watch.WritePID(daemon.StateDir()); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	defer watch.RemovePID(daemon.StateDir())

	if live {
		return render.RunLive(render.NewLive(daemon.Root(), cfg.Suffix, daemon.Entries(), updates))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d entries under %s\n", SuccessStyle.Render("✓ watching"), daemon.EntryCount(), daemon.Root())

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			drainUpdates(out, updates)
			return nil
		case <-daemon.Done():
			return nil
		case u := <-updates:
			printUpdate(out, u)
		}
	}
}

// drainUpdates prints the updates already queued.
func drainUpdates(w io.Writer, updates <-chan watch.Update) {
	for {
		select {
		case u := <-updates:
			printUpdate(w, u)
		default:
			return
		}
	}
}

// printUpdate writes one change line per added or removed entry.
func printUpdate(w io.Writer, u watch.Update) {
	stamp := SubtitleStyle.Render(u.Time.Format("15:04:05"))
	if u.Err != nil {
		fmt.Fprintf(w, "%s %s %v\n", stamp, ErrorStyle.Render("✗ build failed:"), u.Err)
		return
	}
	for _, name := range u.Added {
		fmt.Fprintf(w, "%s %s\n", stamp, SuccessStyle.Render("+ "+name))
	}
	for _, name := range u.Removed {
		fmt.Fprintf(w, "%s %s\n", stamp, WarningStyle.Render("- "+name))
	}
	if len(u.Added) == 0 && len(u.Removed) == 0 {
		fmt.Fprintf(w, "%s %s\n", stamp, SuccessStyle.Render("✓ build recovered"))
	}
}

// detach re-executes the current command line without --detach in a new
// process group and returns once it has started.
func detach(out io.Writer) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	child := exec.Command(exe, withoutFlag(os.Args[1:], "detach")...)
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	setSysProcAttr(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	fmt.Fprintf(out, "%s (pid %d)\n", SuccessStyle.Render("✓ watch started"), child.Process.Pid)
	return child.Process.Release()
}

// withoutFlag drops every form of a boolean long flag from args.
func withoutFlag(args []string, name string) []string {
	flag := "--" + name
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == flag || strings.HasPrefix(arg, flag+"=") {
			continue
		}
		result = append(result, arg)
	}
	return result
}

func newWatchStatusCmd(rootFlags *rootFlagValues) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootFlags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			state := watch.ReadState(cfg.Watch.StateDir)
			if state == nil {
				if asJSON {
					fmt.Fprintln(out, `{"running":false}`)
					return nil
				}
				fmt.Fprintln(out, WarningStyle.Render("watch not running"))
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}

			fmt.Fprintln(out, TitleStyle.Render("watch running"))
			if pid, err := watch.ReadPID(cfg.Watch.StateDir); err == nil && watch.IsRunning(cfg.Watch.StateDir) {
				fmt.Fprintf(out, "  pid:        %d\n", pid)
			}
			fmt.Fprintf(out, "  root:       %s\n", state.Root)
			fmt.Fprintf(out, "  suffix:     %s\n", state.Suffix)
			fmt.Fprintf(out, "  entries:    %d\n", state.EntryCount)
			fmt.Fprintf(out, "  last build: %s ago\n", time.Since(state.LastBuild).Round(time.Second))
			if state.LastError != "" {
				fmt.Fprintf(out, "  %s %s\n", ErrorStyle.Render("last error:"), state.LastError)
			}
			if n := len(state.RecentEvents); n > 0 {
				e := state.RecentEvents[n-1]
				fmt.Fprintf(out, "  last event: %s %s\n", e.Op, e.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw state as JSON")
	return cmd
}

func newWatchStopCmd(rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a background watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootFlags)
			if err != nil {
				return err
			}
			if !watch.IsRunning(cfg.Watch.StateDir) {
				watch.RemovePID(cfg.Watch.StateDir)
				return fmt.Errorf("no watch running for %s", cfg.Watch.StateDir)
			}
			if err := watch.StopProcess(cfg.Watch.StateDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ watch stopped"))
			return nil
		},
	}
}
