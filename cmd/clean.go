package cmd

import (
	"fmt"

	"entrymap/bundle"

	"github.com/spf13/cobra"
)

func newCleanCmd(rootFlags *rootFlagValues) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Empty the bundle output directory",
		Long: `Remove everything inside the output directory, keeping the directory
itself. The entry root is protected: clean refuses to run when the output
directory is, or contains, the root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootFlags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out-dir") {
				cfg.Output.Dir = outDir
			}
			if err := bundle.Clean(cfg.Output.Dir, cfg.Root); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ cleaned "+cfg.Output.Dir))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "bundle output directory (default assets)")
	return cmd
}
