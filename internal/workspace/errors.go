package workspace

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("workspace not found")
	ErrTooManyWorkspaces = errors.New("too many open workspaces")
	ErrNoFiles           = errors.New("no files provided")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidSize       = errors.New("invalid file size")
)

// ExtensionError rejects an upload whose extension is not on the allow-list.
type ExtensionError struct {
	Ext string
}

func (e *ExtensionError) Error() string {
	if e.Ext == "" {
		return "extension not allowed: file has no extension"
	}
	return "extension not allowed: " + e.Ext
}

func newErrTooLarge(name string, limit int64) error {
	return fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, limit)
}
