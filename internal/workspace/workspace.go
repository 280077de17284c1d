// Package workspace validates the source/replica pair and guards the
// replica against concurrent mirror processes.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

const lockSuffix = ".lock"

var (
	ErrSameTree = errors.New("source and replica are the same directory")
	// ErrNestedTree guards against a replica inside its own source (or
	// the reverse), which would make passes feed on their own output.
	ErrNestedTree = errors.New("source and replica overlap")
	ErrLocked     = errors.New("replica locked by another process")
)

// Workspace holds the resolved absolute roots of one mirror pair. The
// advisory lock lives next to the replica, not inside it, so the prune
// pass never sees it.
type Workspace struct {
	SourceDir  string
	ReplicaDir string

	flock *flock.Flock
}

func New(sourceDir, replicaDir string) (*Workspace, error) {
	source, err := utils.ResolvePath(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source path %s: %w", sourceDir, err)
	}
	replica, err := utils.ResolvePath(replicaDir)
	if err != nil {
		return nil, fmt.Errorf("resolve replica path %s: %w", replicaDir, err)
	}

	if source == replica {
		return nil, ErrSameTree
	}
	if isWithin(source, replica) || isWithin(replica, source) {
		return nil, ErrNestedTree
	}

	return &Workspace{
		SourceDir:  source,
		ReplicaDir: replica,
		flock:      flock.New(replica + lockSuffix),
	}, nil
}

// Lock takes the replica's advisory lock so that two mirror processes
// cannot interleave passes over the same replica.
func (w *Workspace) Lock() error {
	if err := utils.EnsureParent(w.flock.Path()); err != nil {
		return fmt.Errorf("create replica parent directory: %w", err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock replica: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Unlock releases the lock and removes the lock file. It is a no-op
// when this process does not hold the lock.
func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock replica: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// LockPath returns the lock file's location, for logs.
func (w *Workspace) LockPath() string {
	return w.flock.Path()
}

// isWithin reports whether path is a strict descendant of root.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
