// Package cmd contains the entrymap command line interface.
package cmd

import (
	"context"
	"io"
	"os"
	"syscall"

	"entrymap/config"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version is the release version (set via -ldflags).
var Version = "dev"

// notifySignals cancel the command context. SIGTERM is what "watch stop"
// sends to a detached daemon.
var notifySignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootFlags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "entrymap",
		Short: "Discover bundler entry points",
		Long: TitleStyle.Render("entrymap") + SubtitleStyle.Render(" - discover bundler entry points") + `

entrymap walks a source directory, picks every file ending with a suffix
and maps its logical name (the relative path without the suffix) to its
absolute path, ready to be handed to a bundler as its entry set.

` + SubtitleStyle.Render("Examples:") + `
  entrymap build js                 Print the entry map of js/ as JSON
  entrymap build --format tree      Show entries grouped by directory
  entrymap build --manifest --clean Plan bundles into a clean assets/
  entrymap watch --live             Follow the entry map as files change`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "", "config file (default is ./entrymap.{yaml,toml,json,jsonc})")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newBuildCmd(rootFlags))
	rootCmd.AddCommand(newCleanCmd(rootFlags))
	rootCmd.AddCommand(newWatchCmd(rootFlags))
	return rootCmd
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		NewRootCmd(),
		fang.WithVersion(Version),
		fang.WithNotifySignal(notifySignals...),
	); err != nil {
		os.Exit(1)
	}
}

// newLogger returns the CLI logger writing to w.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "entrymap",
		ReportTimestamp: verbose,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadConfig reads the config file and environment.
func loadConfig(rootFlags *rootFlagValues) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: rootFlags.configPath})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyRoot overrides the configured root with the positional argument.
func applyRoot(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Root = args[0]
	}
}

// describeConfig logs which config file was used.
func describeConfig(logger *log.Logger, cfg *config.Config) {
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	} else {
		logger.Debug("no config file, using defaults")
	}
}
