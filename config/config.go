// Package config loads entrymap settings from a config file, environment
// variables and defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entrymap/bundle"
	"entrymap/scanner"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

const (
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "entrymap"
	// EnvPrefix prefixes environment overrides (ENTRYMAP_SUFFIX, ...).
	EnvPrefix = "ENTRYMAP"
)

// Config is the full set of settings.
type Config struct {
	Root   string       `mapstructure:"root"`
	Suffix string       `mapstructure:"suffix"`
	Format string       `mapstructure:"format"`
	Output OutputConfig `mapstructure:"output"`
	Scan   ScanConfig   `mapstructure:"scan"`
	Watch  WatchConfig  `mapstructure:"watch"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// OutputConfig configures bundle planning.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Filename string `mapstructure:"filename"`
	Clean    bool   `mapstructure:"clean"`
}

// ScanConfig configures entry discovery.
type ScanConfig struct {
	Gitignore       bool     `mapstructure:"gitignore"`
	SkipCommonDirs  bool     `mapstructure:"skip_common_dirs"`
	Exclude         []string `mapstructure:"exclude"`
	FollowSymlinks  bool     `mapstructure:"follow_symlinks"`
	CaseInsensitive bool     `mapstructure:"case_insensitive"`
	OnDuplicate     string   `mapstructure:"on_duplicate"`
}

// WatchConfig configures the watch daemon.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	StateDir string        `mapstructure:"state_dir"`
}

// DefaultConfig mirrors the layout the tool was built for: entries under
// js/, bundles written to assets/[name].bundle.js.
func DefaultConfig() *Config {
	return &Config{
		Root:   "js",
		Suffix: ".js",
		Format: "json",
		Output: OutputConfig{
			Dir:      bundle.DefaultDir,
			Filename: bundle.DefaultFilename,
		},
		Scan: ScanConfig{
			Exclude:     []string{},
			OnDuplicate: scanner.DuplicateError.String(),
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
			StateDir: ".entrymap",
		},
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is an explicit config path; it must exist.
	ConfigFile string
	// SearchDir is searched for entrymap.{yaml,yml,toml,json,jsonc} when
	// ConfigFile is empty. Defaults to the working directory.
	SearchDir string
}

// Load reads configuration. A missing config file in the search directory is
// not an error; a missing explicit file is.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path == "" {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		path = findConfigFile(dir)
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.File = path

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("root", d.Root)
	v.SetDefault("suffix", d.Suffix)
	v.SetDefault("format", d.Format)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.filename", d.Output.Filename)
	v.SetDefault("output.clean", d.Output.Clean)
	v.SetDefault("scan.gitignore", d.Scan.Gitignore)
	v.SetDefault("scan.skip_common_dirs", d.Scan.SkipCommonDirs)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("scan.follow_symlinks", d.Scan.FollowSymlinks)
	v.SetDefault("scan.case_insensitive", d.Scan.CaseInsensitive)
	v.SetDefault("scan.on_duplicate", d.Scan.OnDuplicate)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.state_dir", d.Watch.StateDir)
}

var extensions = []string{"yaml", "yml", "toml", "json", "jsonc"}

func findConfigFile(dir string) string {
	for _, ext := range extensions {
		path := filepath.Join(dir, ConfigFileName+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// readFile loads path into v. JSONC has its comments and trailing commas
// stripped and is then read as JSON.
func readFile(v *viper.Viper, path string) error {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext != "jsonc" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Root, &c.Output.Dir, &c.Watch.StateDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("config: expanding %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the settings that the scanner and planner would otherwise
// reject later.
func (c *Config) Validate() error {
	var errs []error
	if c.Suffix == "" {
		errs = append(errs, errors.New("suffix must not be empty"))
	}
	if c.Format != "tree" {
		if _, err := bundle.ParseFormat(c.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := scanner.ParseDuplicatePolicy(c.Scan.OnDuplicate); !ok {
		errs = append(errs, fmt.Errorf("unknown on_duplicate policy %q", c.Scan.OnDuplicate))
	}
	if err := scanner.ValidateExclude(c.Scan.Exclude); err != nil {
		errs = append(errs, err)
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ScanOptions converts the scan settings into scanner options. The gitignore
// cache is anchored at root.
func (c *Config) ScanOptions(root string) *scanner.Options {
	policy, _ := scanner.ParseDuplicatePolicy(c.Scan.OnDuplicate)
	opts := &scanner.Options{
		SkipCommonDirs:  c.Scan.SkipCommonDirs,
		Exclude:         c.Scan.Exclude,
		FollowSymlinks:  c.Scan.FollowSymlinks,
		CaseInsensitive: c.Scan.CaseInsensitive,
		OnDuplicate:     policy,
	}
	if c.Scan.Gitignore {
		opts.Ignore = scanner.NewGitIgnoreCache(root)
	}
	return opts
}

// BundleOutput converts the output settings for the planner.
func (c *Config) BundleOutput() bundle.OutputConfig {
	return bundle.OutputConfig{Dir: c.Output.Dir, Filename: c.Output.Filename}
}
