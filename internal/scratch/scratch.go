// Package scratch owns the working area downloads and frame extraction
// run in. Every pipeline call gets its own directory and must remove it
// on all exit paths.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Root is the parent of all per-call scratch directories. A lock file
// keeps a second service instance (or the ops CLI) from sharing the area.
type Root struct {
	dir  string
	lock *flock.Flock
}

// NewRoot prepares the scratch area under dir and acquires its lock.
// An empty dir falls back to a clipline directory under the system temp.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "clipline")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "scratch.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire scratch lock: %w", err)
	}
	if !ok {
		return nil, errors.New("scratch root is in use by another process")
	}

	return &Root{dir: dir, lock: lock}, nil
}

// Dir returns the root directory path.
func (r *Root) Dir() string {
	return r.dir
}

// MkDir creates a fresh scratch directory for one pipeline call.
func (r *Root) MkDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp(r.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

// Close releases the root lock. Per-call directories are cleaned by their
// owners, not here.
func (r *Root) Close() error {
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("release scratch lock: %w", err)
	}
	return nil
}
