package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the scan root does not exist or is not a
	// directory.
	ErrNotFound = errors.New("scanner: root not found")
	// ErrPermissionDenied is returned when a directory or file cannot be read.
	ErrPermissionDenied = errors.New("scanner: permission denied")
	// ErrDuplicateKey is returned when two files normalize to the same name.
	ErrDuplicateKey = errors.New("scanner: duplicate entry name")
	// ErrEmptySuffix is returned when no suffix is given.
	ErrEmptySuffix = errors.New("scanner: empty suffix")
)

// DuplicateKeyError describes a name collision between two files.
type DuplicateKeyError struct {
	Name   string
	First  string
	Second string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("scanner: duplicate entry name %q: %s and %s", e.Name, e.First, e.Second)
}

// Is lets errors.Is match ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
