package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"entrymap/bundle"
	"entrymap/render"
	"entrymap/scanner"

	"github.com/spf13/cobra"
)

type buildFlagValues struct {
	format   string
	manifest bool
	outDir   string
	filename string
	clean    bool
}

func newBuildCmd(rootFlags *rootFlagValues) *cobra.Command {
	scanFlags := &scanFlagValues{}
	buildFlags := &buildFlagValues{}

	cmd := &cobra.Command{
		Use:   "build [root]",
		Short: "Print the entry map of a directory",
		Long: `Walk root (default from config, js) and print every file ending with the
suffix, keyed by its relative path without the suffix.

With --manifest the output is a bundle plan: each entry paired with the
output file named by --filename inside --out-dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, rootFlags, scanFlags, buildFlags, args)
		},
	}

	addScanFlags(cmd.Flags(), scanFlags)
	cmd.Flags().StringVarP(&buildFlags.format, "format", "f", "", "output format: json, yaml, toml or tree")
	cmd.Flags().BoolVarP(&buildFlags.manifest, "manifest", "m", false, "print the bundle plan instead of the entry map")
	cmd.Flags().StringVarP(&buildFlags.outDir, "out-dir", "o", "", "bundle output directory (default assets)")
	cmd.Flags().StringVar(&buildFlags.filename, "filename", "", "bundle filename template, e.g. [name].[hash:8].js")
	cmd.Flags().BoolVar(&buildFlags.clean, "clean", false, "empty the output directory first")
	return cmd
}

func runBuild(cmd *cobra.Command, rootFlags *rootFlagValues, scanFlags *scanFlagValues, buildFlags *buildFlagValues, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), rootFlags.verbose)

	cfg, err := loadConfig(rootFlags)
	if err != nil {
		return err
	}
	describeConfig(logger, cfg)
	applyRoot(cfg, args)

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = buildFlags.format
	}
	if flags.Changed("out-dir") {
		cfg.Output.Dir = buildFlags.outDir
	}
	if flags.Changed("filename") {
		cfg.Output.Filename = buildFlags.filename
	}
	if flags.Changed("clean") {
		cfg.Output.Clean = buildFlags.clean
	}
	if err := applyScanFlags(flags, scanFlags, cfg); err != nil {
		return err
	}

	start := time.Now()
	entries, err := scanner.BuildEntryMap(cfg.Root, cfg.Suffix, cfg.ScanOptions(cfg.Root))
	if err != nil {
		return err
	}
	logger.Debug("built entry map", "root", cfg.Root, "entries", len(entries), "took", time.Since(start))

	if cfg.Output.Clean {
		if err := bundle.Clean(cfg.Output.Dir, cfg.Root); err != nil {
			return err
		}
		logger.Info("cleaned output directory", "dir", cfg.Output.Dir)
	}

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	out := cmd.OutOrStdout()

	if !buildFlags.manifest {
		if cfg.Format == "tree" {
			render.Tree(out, absRoot, entries)
			return nil
		}
		format, err := bundle.ParseFormat(cfg.Format)
		if err != nil {
			return err
		}
		return bundle.EncodeEntries(out, format, entries)
	}

	m, err := bundle.Plan(entries, cfg.BundleOutput())
	if err != nil {
		return err
	}
	if cfg.Format == "tree" {
		render.Targets(out, absRoot, m)
		return nil
	}
	format, err := bundle.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	return m.Encode(out, format)
}
