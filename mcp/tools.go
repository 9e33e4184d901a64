package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entrymap/bundle"
	"entrymap/config"
	"entrymap/render"
	"entrymap/scanner"

	"github.com/mitchellh/go-homedir"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Input types for tools
type BuildInput struct {
	Path            string   `json:"path" jsonschema:"Directory to scan for entry files"`
	Suffix          string   `json:"suffix,omitempty" jsonschema:"Entry file suffix (default: .js)"`
	Gitignore       bool     `json:"gitignore,omitempty" jsonschema:"Skip paths matched by .gitignore files"`
	SkipCommonDirs  bool     `json:"skip_common_dirs,omitempty" jsonschema:"Skip node_modules, .git and similar directories"`
	Exclude         []string `json:"exclude,omitempty" jsonschema:"Glob patterns of paths to skip, relative to path (e.g. legacy/**)"`
	FollowSymlinks  bool     `json:"follow_symlinks,omitempty" jsonschema:"Descend into symlinked directories"`
	CaseInsensitive bool     `json:"case_insensitive,omitempty" jsonschema:"Treat names differing only in letter case as duplicates"`
	OnDuplicate     string   `json:"on_duplicate,omitempty" jsonschema:"What to do when two files map to the same name: error (default) or last-wins"`
	Format          string   `json:"format,omitempty" jsonschema:"Output format: json (default), yaml, toml or tree"`
}

type PlanInput struct {
	Path            string   `json:"path" jsonschema:"Directory to scan for entry files"`
	Suffix          string   `json:"suffix,omitempty" jsonschema:"Entry file suffix (default: .js)"`
	Gitignore       bool     `json:"gitignore,omitempty" jsonschema:"Skip paths matched by .gitignore files"`
	SkipCommonDirs  bool     `json:"skip_common_dirs,omitempty" jsonschema:"Skip node_modules, .git and similar directories"`
	Exclude         []string `json:"exclude,omitempty" jsonschema:"Glob patterns of paths to skip, relative to path"`
	FollowSymlinks  bool     `json:"follow_symlinks,omitempty" jsonschema:"Descend into symlinked directories"`
	CaseInsensitive bool     `json:"case_insensitive,omitempty" jsonschema:"Treat names differing only in letter case as duplicates"`
	OnDuplicate     string   `json:"on_duplicate,omitempty" jsonschema:"What to do when two files map to the same name: error (default) or last-wins"`
	OutDir          string   `json:"out_dir,omitempty" jsonschema:"Output directory (default: assets)"`
	Filename        string   `json:"filename,omitempty" jsonschema:"Output filename template (default: [name].bundle.js)"`
	Format          string   `json:"format,omitempty" jsonschema:"Output format: json (default), yaml, toml or tree"`
}

type WatchInput struct {
	Path            string `json:"path" jsonschema:"Directory to watch"`
	Suffix          string `json:"suffix,omitempty" jsonschema:"Entry file suffix (default: .js)"`
	Gitignore       bool   `json:"gitignore,omitempty" jsonschema:"Skip paths matched by .gitignore files"`
	SkipCommonDirs  bool   `json:"skip_common_dirs,omitempty" jsonschema:"Skip node_modules, .git and similar directories"`
	FollowSymlinks  bool   `json:"follow_symlinks,omitempty" jsonschema:"Descend into symlinked directories"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"Treat names differing only in letter case as duplicates"`
	OnDuplicate     string `json:"on_duplicate,omitempty" jsonschema:"What to do when two files map to the same name: error (default) or last-wins"`
}

type PathInput struct {
	Path string `json:"path" jsonschema:"Directory of a running watch"`
}

// EmptyInput for tools that don't need parameters
type EmptyInput struct{}

// resolvePath expands ~ and makes path absolute.
func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// config turns the input into validated settings rooted at the input path.
func (in BuildInput) config() (*config.Config, error) {
	root, err := resolvePath(in.Path)
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	cfg.Root = root
	if in.Suffix != "" {
		cfg.Suffix = in.Suffix
	}
	if in.Format != "" {
		cfg.Format = in.Format
	}
	if in.OnDuplicate != "" {
		cfg.Scan.OnDuplicate = in.OnDuplicate
	}
	cfg.Scan.Gitignore = in.Gitignore
	cfg.Scan.SkipCommonDirs = in.SkipCommonDirs
	cfg.Scan.Exclude = in.Exclude
	cfg.Scan.FollowSymlinks = in.FollowSymlinks
	cfg.Scan.CaseInsensitive = in.CaseInsensitive
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (in PlanInput) config() (*config.Config, error) {
	cfg, err := BuildInput{
		Path:            in.Path,
		Suffix:          in.Suffix,
		Gitignore:       in.Gitignore,
		SkipCommonDirs:  in.SkipCommonDirs,
		Exclude:         in.Exclude,
		FollowSymlinks:  in.FollowSymlinks,
		CaseInsensitive: in.CaseInsensitive,
		OnDuplicate:     in.OnDuplicate,
		Format:          in.Format,
	}.config()
	if err != nil {
		return nil, err
	}
	if in.OutDir != "" {
		cfg.Output.Dir = in.OutDir
	}
	if in.Filename != "" {
		cfg.Output.Filename = in.Filename
	}
	return cfg, nil
}

// buildError explains a failed build, with a hint for name collisions
// (only possible with case_insensitive).
func buildError(err error) string {
	var dup *scanner.DuplicateKeyError
	if errors.As(err, &dup) {
		return fmt.Sprintf("Build error: %v\nRename one of the files, or pass on_duplicate=last-wins to keep the later one.", err)
	}
	return "Build error: " + err.Error()
}

func handleBuildEntries(ctx context.Context, req *mcp.CallToolRequest, input BuildInput) (*mcp.CallToolResult, any, error) {
	cfg, err := input.config()
	if err != nil {
		return errorResult("Invalid input: " + err.Error()), nil, nil
	}

	entries, err := scanner.BuildEntryMap(cfg.Root, cfg.Suffix, cfg.ScanOptions(cfg.Root))
	if err != nil {
		return errorResult(buildError(err)), nil, nil
	}

	var buf bytes.Buffer
	if cfg.Format == "tree" {
		render.Tree(&buf, cfg.Root, entries)
		return textResult(buf.String()), nil, nil
	}
	format, err := bundle.ParseFormat(cfg.Format)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if err := bundle.EncodeEntries(&buf, format, entries); err != nil {
		return errorResult("Encode error: " + err.Error()), nil, nil
	}
	return textResult(buf.String()), nil, nil
}

func handlePlanBundles(ctx context.Context, req *mcp.CallToolRequest, input PlanInput) (*mcp.CallToolResult, any, error) {
	cfg, err := input.config()
	if err != nil {
		return errorResult("Invalid input: " + err.Error()), nil, nil
	}

	entries, err := scanner.BuildEntryMap(cfg.Root, cfg.Suffix, cfg.ScanOptions(cfg.Root))
	if err != nil {
		return errorResult(buildError(err)), nil, nil
	}
	m, err := bundle.Plan(entries, cfg.BundleOutput())
	if err != nil {
		return errorResult("Plan error: " + err.Error()), nil, nil
	}

	var buf bytes.Buffer
	if cfg.Format == "tree" {
		render.Targets(&buf, cfg.Root, m)
		return textResult(buf.String()), nil, nil
	}
	format, err := bundle.ParseFormat(cfg.Format)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if err := m.Encode(&buf, format); err != nil {
		return errorResult("Encode error: " + err.Error()), nil, nil
	}
	return textResult(buf.String()), nil, nil
}

func handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	cwd, _ := os.Getwd()

	watchStatus := "none"
	if active := sessions.list(); len(active) > 0 {
		var parts []string
		for _, s := range active {
			parts = append(parts, fmt.Sprintf("%s (%d entries)", s.daemon.Root(), s.daemon.EntryCount()))
		}
		watchStatus = fmt.Sprintf("%d active: %s", len(active), strings.Join(parts, ", "))
	}

	return textResult(fmt.Sprintf(`entrymap MCP server v%s
Status: connected
Working directory: %s
Active watches: %s

Available tools:
  build_entries - Entry map of a directory
  plan_bundles  - Entries paired with their output files

Live watch tools:
  start_watch   - Start watching a directory for entry changes
  stop_watch    - Stop watching a directory
  get_updates   - Changes since the last call`, version, cwd, watchStatus)), nil, nil
}

// === WATCH HANDLERS ===

func handleStartWatch(ctx context.Context, req *mcp.CallToolRequest, input WatchInput) (*mcp.CallToolResult, any, error) {
	cfg, err := BuildInput{
		Path:            input.Path,
		Suffix:          input.Suffix,
		Gitignore:       input.Gitignore,
		SkipCommonDirs:  input.SkipCommonDirs,
		FollowSymlinks:  input.FollowSymlinks,
		CaseInsensitive: input.CaseInsensitive,
		OnDuplicate:     input.OnDuplicate,
	}.config()
	if err != nil {
		return errorResult("Invalid input: " + err.Error()), nil, nil
	}

	s, existed, err := sessions.start(cfg)
	if err != nil {
		return errorResult("Failed to start watch: " + err.Error()), nil, nil
	}
	if existed {
		return textResult(fmt.Sprintf("Already watching: %s\nUse get_updates to see recent changes.", s.daemon.Root())), nil, nil
	}

	return textResult(fmt.Sprintf(`Watch started for: %s
Tracking %d entries (*%s)

The entry map is rebuilt in the background when entry files are created,
removed or renamed. Use get_updates to see what changed.`, s.daemon.Root(), s.daemon.EntryCount(), cfg.Suffix)), nil, nil
}

func handleStopWatch(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	root, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}
	if !sessions.stop(root) {
		return textResult(fmt.Sprintf("Not watching: %s", root)), nil, nil
	}
	return textResult(fmt.Sprintf("Watch stopped for: %s", root)), nil, nil
}

func handleGetUpdates(ctx context.Context, req *mcp.CallToolRequest, input PathInput) (*mcp.CallToolResult, any, error) {
	root, err := resolvePath(input.Path)
	if err != nil {
		return errorResult("Invalid path: " + err.Error()), nil, nil
	}
	s := sessions.get(root)
	if s == nil {
		return errorResult(fmt.Sprintf("Not watching: %s\nUse start_watch first.", root)), nil, nil
	}

	updates := s.drain()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Updates: %s ===\n", root))
	sb.WriteString(fmt.Sprintf("Entries: %d\n\n", s.daemon.EntryCount()))
	if len(updates) == 0 {
		sb.WriteString("No changes since the last call.\n")
	}
	for _, u := range updates {
		stamp := u.Time.Format("15:04:05")
		if u.Err != nil {
			sb.WriteString(fmt.Sprintf("  %s  FAILED  %v\n", stamp, u.Err))
			continue
		}
		for _, name := range u.Added {
			sb.WriteString(fmt.Sprintf("  %s  +  %s\n", stamp, name))
		}
		for _, name := range u.Removed {
			sb.WriteString(fmt.Sprintf("  %s  -  %s\n", stamp, name))
		}
		if len(u.Added) == 0 && len(u.Removed) == 0 {
			sb.WriteString(fmt.Sprintf("  %s  build recovered\n", stamp))
		}
	}
	if err := s.daemon.LastError(); err != nil {
		sb.WriteString(fmt.Sprintf("\nLast build failed: %v\n", err))
	}

	return textResult(sb.String()), nil, nil
}
