package cmd

import (
	"entrymap/config"

	"github.com/spf13/pflag"
)

// scanFlagValues holds the discovery flags shared by build and watch.
type scanFlagValues struct {
	suffix      string
	gitignore   bool
	skipCommon  bool
	exclude     []string
	follow      bool
	caseFold    bool
	onDuplicate string
}

func addScanFlags(fs *pflag.FlagSet, v *scanFlagValues) {
	fs.StringVarP(&v.suffix, "suffix", "s", "", "entry file suffix (default from config, .js)")
	fs.BoolVar(&v.gitignore, "gitignore", false, "skip paths matched by .gitignore files")
	fs.BoolVar(&v.skipCommon, "skip-common-dirs", false, "skip node_modules, .git and similar directories")
	fs.StringSliceVar(&v.exclude, "exclude", nil, "glob of paths to skip, relative to root (repeatable)")
	fs.BoolVar(&v.follow, "follow-symlinks", false, "descend into symlinked directories")
	fs.BoolVar(&v.caseFold, "case-insensitive", false, "treat names differing only in case as duplicates")
	fs.StringVar(&v.onDuplicate, "on-duplicate", "", "duplicate name policy: error or last-wins")
}

// applyScanFlags copies the flags that were set onto cfg and revalidates it.
func applyScanFlags(fs *pflag.FlagSet, v *scanFlagValues, cfg *config.Config) error {
	if fs.Changed("suffix") {
		cfg.Suffix = v.suffix
	}
	if fs.Changed("gitignore") {
		cfg.Scan.Gitignore = v.gitignore
	}
	if fs.Changed("skip-common-dirs") {
		cfg.Scan.SkipCommonDirs = v.skipCommon
	}
	if fs.Changed("exclude") {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, v.exclude...)
	}
	if fs.Changed("follow-symlinks") {
		cfg.Scan.FollowSymlinks = v.follow
	}
	if fs.Changed("case-insensitive") {
		cfg.Scan.CaseInsensitive = v.caseFold
	}
	if fs.Changed("on-duplicate") {
		cfg.Scan.OnDuplicate = v.onDuplicate
	}
	return cfg.Validate()
}
