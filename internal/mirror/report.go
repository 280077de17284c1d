package mirror

import "time"

// ActionType labels a single mutation applied to the replica tree.
type ActionType string

const (
	ActionCreatedDir  ActionType = "created_dir"
	ActionCopiedFile  ActionType = "copied_file"
	ActionDeletedFile ActionType = "deleted_file"
	ActionDeletedDir  ActionType = "deleted_dir"
)

// Reason records why an action was taken.
type Reason string

const (
	// ReasonMissingInReplica marks entries present in the source with no
	// replica counterpart.
	ReasonMissingInReplica Reason = "missing_in_replica"
	// ReasonContentMismatch marks files whose fingerprints diverged.
	ReasonContentMismatch Reason = "content_mismatch"
	// ReasonAbsentInSource marks replica entries with no source counterpart.
	ReasonAbsentInSource Reason = "absent_in_source"
	// ReasonKindMismatch marks replica entries shadowing a source entry of
	// the other kind (file vs directory).
	ReasonKindMismatch Reason = "kind_mismatch"
)

// Action is one replica mutation, in the order it was applied.
type Action struct {
	Type    ActionType
	RelPath string
	Reason  Reason
	Size    int64 // bytes copied, set for ActionCopiedFile only
}

// Skip records an entry whose operation failed and was left behind for
// the next pass.
type Skip struct {
	RelPath string
	Err     error
}

// Report is the outcome of one synchronization pass. An empty Actions
// slice means the replica already mirrored the source.
type Report struct {
	Actions  []Action
	Skipped  []Skip
	Duration time.Duration
}

func (r *Report) record(t ActionType, relPath string, why Reason, size int64) {
	r.Actions = append(r.Actions, Action{Type: t, RelPath: relPath, Reason: why, Size: size})
}

func (r *Report) skip(relPath string, err error) {
	r.Skipped = append(r.Skipped, Skip{RelPath: relPath, Err: err})
}

// Changed reports whether the pass mutated the replica at all.
func (r *Report) Changed() bool {
	return len(r.Actions) > 0
}

func (r *Report) count(t ActionType) int {
	n := 0
	for _, a := range r.Actions {
		if a.Type == t {
			n++
		}
	}
	return n
}

func (r *Report) CreatedDirs() int  { return r.count(ActionCreatedDir) }
func (r *Report) CopiedFiles() int  { return r.count(ActionCopiedFile) }
func (r *Report) DeletedFiles() int { return r.count(ActionDeletedFile) }
func (r *Report) DeletedDirs() int  { return r.count(ActionDeletedDir) }

// BytesCopied sums the payload of every copy in the pass.
func (r *Report) BytesCopied() int64 {
	var total int64
	for _, a := range r.Actions {
		if a.Type == ActionCopiedFile {
			total += a.Size
		}
	}
	return total
}
