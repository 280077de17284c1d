// Package mirror implements one-way tree reconciliation: after a pass,
// the replica directory is an exact copy of the source directory.
// Comparison is by content fingerprint, never by modification time.
package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// ErrSourceMissing reports a source root that does not denote an
// existing directory. The pass is skipped rather than propagated: a
// vanished source must never empty the replica.
var ErrSourceMissing = errors.New("source directory missing")

// Reconciler synchronizes a replica tree with a source tree in two
// passes. The first walks the source and propagates new or changed
// entries, the second walks the replica and prunes entries the source
// no longer has.
type Reconciler struct {
	log    *slog.Logger
	rules  *RuleList
	dryRun bool
}

type Option func(*Reconciler)

// WithRules installs exclusion rules. Excluded paths are invisible to
// both passes.
func WithRules(rules *RuleList) Option {
	return func(r *Reconciler) { r.rules = rules }
}

// WithDryRun makes passes report planned actions without mutating the
// replica.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) { r.dryRun = dryRun }
}

func NewReconciler(logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{log: logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.dryRun {
		r.log = r.log.With("dryRun", true)
	}
	return r
}

// sourceIndex holds the relative paths recorded while walking the
// source, split by kind. The prune pass deletes replica entries that
// are in neither set. Passes run on a single worker, so the sets need
// no locking.
type sourceIndex struct {
	dirs  mapset.Set[string]
	files mapset.Set[string]
}

func newSourceIndex() *sourceIndex {
	return &sourceIndex{
		dirs:  mapset.NewThreadUnsafeSet[string](),
		files: mapset.NewThreadUnsafeSet[string](),
	}
}

// Synchronize runs one full pass and reports what it did. On
// ErrSourceMissing the replica is untouched and the report is empty.
// Any other error means the pass aborted partway; actions applied
// before the abort stay in the report.
func (r *Reconciler) Synchronize(sourceRoot, replicaRoot string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	if !utils.DirExists(sourceRoot) {
		r.log.Warn("source directory missing, skipping pass", "source", sourceRoot)
		return report, ErrSourceMissing
	}

	if !utils.DirExists(replicaRoot) {
		r.log.Info("creating replica root", "path", replicaRoot)
		if !r.dryRun {
			if err := utils.EnsureDir(replicaRoot); err != nil {
				return report, fmt.Errorf("create replica root: %w", err)
			}
		}
	}

	index := newSourceIndex()
	if err := r.propagate(sourceRoot, replicaRoot, index, report); err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("propagate: %w", err)
	}
	tPropagate := time.Since(start)

	tPruneStart := time.Now()
	r.prune(replicaRoot, ".", index, report)
	report.Duration = time.Since(start)

	r.log.Debug("pass timing", "tsPropagate", tPropagate, "tsPrune", time.Since(tPruneStart), "tsTotal", report.Duration)
	return report, nil
}

// propagate walks the source tree and makes the replica cover it:
// directories are created, files copied when the replica counterpart
// is missing or fingerprints differ. Every visited path lands in the
// index so the prune pass knows what to keep. Per-file failures are
// logged and skipped; broader failures abort the pass so prune cannot
// delete entries the walk merely failed to see.
func (r *Reconciler) propagate(sourceRoot, replicaRoot string, index *sourceIndex, report *Report) error {
	return filepath.WalkDir(sourceRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", p, walkErr)
		}

		relPath, err := filepath.Rel(sourceRoot, p)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", p, err)
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if r.rules.Excluded(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		replicaPath := filepath.Join(replicaRoot, relPath)
		if d.IsDir() {
			index.dirs.Add(relPath)
			return r.ensureReplicaDir(relPath, replicaPath, report)
		}

		index.files.Add(relPath)
		r.syncFile(p, relPath, replicaPath, d, report)
		return nil
	})
}

// ensureReplicaDir creates the replica directory if needed. A regular
// file occupying the path is deleted first. Directory-level failures
// abort the pass, everything below the directory depends on it.
func (r *Reconciler) ensureReplicaDir(relPath, replicaPath string, report *Report) error {
	info, err := os.Lstat(replicaPath)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		r.log.Info("deleting replica file", "path", relPath, "reason", ReasonKindMismatch)
		if !r.dryRun {
			if err := os.Remove(replicaPath); err != nil {
				return fmt.Errorf("remove %s: %w", replicaPath, err)
			}
		}
		report.record(ActionDeletedFile, relPath, ReasonKindMismatch, 0)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", replicaPath, err)
	}

	r.log.Info("creating replica directory", "path", relPath)
	if !r.dryRun {
		if err := os.MkdirAll(replicaPath, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", replicaPath, err)
		}
	}
	report.record(ActionCreatedDir, relPath, ReasonMissingInReplica, 0)
	return nil
}

// syncFile brings one replica file in line with its source
// counterpart. Failures here are isolated: logged, recorded as
// skipped, and the walk moves on to the next entry.
func (r *Reconciler) syncFile(sourcePath, relPath, replicaPath string, d fs.DirEntry, report *Report) {
	srcInfo, err := d.Info()
	if err != nil {
		r.log.Error("stat source file", "path", relPath, "error", err)
		report.skip(relPath, err)
		return
	}
	if srcInfo.Mode()&fs.ModeSymlink != 0 {
		// copies follow links, so the target supplies content and metadata
		srcInfo, err = os.Stat(sourcePath)
		if err != nil {
			r.log.Error("stat source file", "path", relPath, "error", err)
			report.skip(relPath, err)
			return
		}
		if srcInfo.IsDir() {
			r.log.Warn("skipping symlink to directory", "path", relPath)
			report.skip(relPath, errors.New("symlink resolves to a directory"))
			return
		}
	}

	replicaInfo, err := os.Lstat(replicaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		// ENOTDIR happens when a dry run leaves a kind-mismatched
		// ancestor in place, a real pass has already replaced it
		r.copyFile(sourcePath, relPath, replicaPath, srcInfo, ReasonMissingInReplica, report)
		return
	case err != nil:
		r.log.Error("stat replica file", "path", relPath, "error", err)
		report.skip(relPath, err)
		return
	}

	if replicaInfo.IsDir() {
		// a directory occupies the file's path
		r.log.Info("deleting replica directory", "path", relPath, "reason", ReasonKindMismatch)
		if !r.dryRun {
			if err := os.RemoveAll(replicaPath); err != nil {
				r.log.Error("remove replica directory", "path", relPath, "error", err)
				report.skip(relPath, err)
				return
			}
		}
		report.record(ActionDeletedDir, relPath, ReasonKindMismatch, 0)
		r.copyFile(sourcePath, relPath, replicaPath, srcInfo, ReasonMissingInReplica, report)
		return
	}

	sourceSum, err := FingerprintFile(sourcePath)
	if err != nil {
		r.log.Error("fingerprint source file", "path", relPath, "error", err)
		report.skip(relPath, err)
		return
	}
	replicaSum, err := FingerprintFile(replicaPath)
	if err != nil {
		r.log.Error("fingerprint replica file", "path", relPath, "error", err)
		report.skip(relPath, err)
		return
	}
	if sourceSum == replicaSum {
		// content already mirrored, metadata differences don't matter
		return
	}

	r.copyFile(sourcePath, relPath, replicaPath, srcInfo, ReasonContentMismatch, report)
}

func (r *Reconciler) copyFile(sourcePath, relPath, replicaPath string, srcInfo fs.FileInfo, why Reason, report *Report) {
	r.log.Info("copying file", "path", relPath, "reason", why, "size", humanize.Bytes(uint64(srcInfo.Size())))

	size := srcInfo.Size()
	if !r.dryRun {
		written, err := copyFileContents(sourcePath, replicaPath, srcInfo)
		if err != nil {
			r.log.Error("copy file", "path", relPath, "error", err)
			report.skip(relPath, err)
			return
		}
		size = written
	}
	report.record(ActionCopiedFile, relPath, why, size)
}

// copyFileContents copies source bytes over the replica path, then
// mirrors the source's permission bits and modification time.
func copyFileContents(sourcePath, replicaPath string, srcInfo fs.FileInfo) (int64, error) {
	in, err := os.Open(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(replicaPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("open replica: %w", err)
	}

	written, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return written, fmt.Errorf("write replica: %w", err)
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close replica: %w", err)
	}

	if err := os.Chmod(replicaPath, srcInfo.Mode().Perm()); err != nil {
		return written, fmt.Errorf("chmod replica: %w", err)
	}
	if err := os.Chtimes(replicaPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return written, fmt.Errorf("set replica mtime: %w", err)
	}
	return written, nil
}

// prune removes replica entries the source walk did not record under
// either kind. A path indexed as the opposite kind is a mismatch the
// propagate pass replaces, so it is left alone here. Orphaned
// directories are removed whole without descending. Each directory
// listing is snapshotted by ReadDir before any deletion in it.
// Failures only ever hide a deletion until the next pass, so they are
// logged and skipped rather than aborting.
func (r *Reconciler) prune(replicaRoot, relDir string, index *sourceIndex, report *Report) {
	dirPath := filepath.Join(replicaRoot, relDir)
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if relDir == "." && errors.Is(err, fs.ErrNotExist) {
			// replica root never materialized (dry run)
			return
		}
		r.log.Error("read replica directory", "path", relDir, "error", err)
		report.skip(relDir, err)
		return
	}

	for _, entry := range entries {
		relPath := path.Join(relDir, entry.Name())
		if r.rules.Excluded(relPath, entry.IsDir()) {
			continue
		}
		replicaPath := filepath.Join(replicaRoot, relPath)

		if entry.IsDir() {
			if index.dirs.Contains(relPath) {
				r.prune(replicaRoot, relPath, index, report)
				continue
			}
			if index.files.Contains(relPath) {
				// the source has a file here, replacing the directory is
				// the propagate pass's job
				continue
			}
			r.log.Info("deleting replica directory", "path", relPath, "reason", ReasonAbsentInSource)
			if !r.dryRun {
				if err := os.RemoveAll(replicaPath); err != nil {
					r.log.Error("remove replica directory", "path", relPath, "error", err)
					report.skip(relPath, err)
					continue
				}
			}
			report.record(ActionDeletedDir, relPath, ReasonAbsentInSource, 0)
			continue
		}

		if index.files.Contains(relPath) || index.dirs.Contains(relPath) {
			continue
		}
		r.log.Info("deleting replica file", "path", relPath, "reason", ReasonAbsentInSource)
		if !r.dryRun {
			if err := os.Remove(replicaPath); err != nil {
				r.log.Error("remove replica file", "path", relPath, "error", err)
				report.skip(relPath, err)
				continue
			}
		}
		report.record(ActionDeletedFile, relPath, ReasonAbsentInSource, 0)
	}
}
