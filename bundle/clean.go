package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrProtectedPath is returned when Clean would delete a protected path.
var ErrProtectedPath = errors.New("bundle: refusing to clean")

// Clean removes everything inside dir, keeping dir itself. A missing dir is
// not an error. Clean refuses to run when dir is, or contains, any of the
// protected paths (typically the entry root). Every child is attempted; the
// failures are returned together.
func Clean(dir string, protect ...string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("bundle: resolving %s: %w", dir, err)
	}
	for _, p := range protect {
		absP, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("bundle: resolving %s: %w", p, err)
		}
		if within(absDir, absP) {
			return fmt.Errorf("%w %s: it contains %s", ErrProtectedPath, absDir, absP)
		}
	}

	children, err := os.ReadDir(absDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bundle: reading %s: %w", absDir, err)
	}

	var errs *multierror.Error
	for _, child := range children {
		if err := os.RemoveAll(filepath.Join(absDir, child.Name())); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
