package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/ingestflow/store"
)

// relocate moves rec's metadata from one state prefix to another.
//
// The mirror is updated first when branch is set: the file is moved with
// git mv if it exists on that branch, and the branch is pushed. The store
// is updated second and is authoritative: the object is copied, the copy's
// ETag is checked against the listed one, and only then is the source
// deleted. rec's state and key change only after the store phase succeeds.
//
// Re-running a relocation that already completed is a no-op: the mirror
// move is skipped because the source file is gone, and the store phase sees
// the destination present and the source absent.
func (m *Machine) relocate(ctx context.Context, rec *Record, from, to State, branch string, log *slog.Logger) error {
	if branch != "" {
		if err := m.relocateMirror(rec, from, to, branch, log); err != nil {
			return err
		}
	}

	src, dst := rec.KeyFor(from), rec.KeyFor(to)
	if err := m.moveObject(ctx, rec.ETag, src, dst, log); err != nil {
		return err
	}

	rec.MetadataKey = dst
	rec.State = to
	m.recorder.Transition(from.String(), to.String())
	log.Info("relocated metadata", "from", from.String(), "to", to.String(), "key", dst)
	return nil
}

func (m *Machine) relocateMirror(rec *Record, from, to State, branch string, log *slog.Logger) error {
	rel := rec.RelPath()
	oldRel, newRel := from.String()+"/"+rel, to.String()+"/"+rel

	moved, err := m.mirror.MoveFile(branch, oldRel, newRel, fmt.Sprintf("change state from %s to %s", from, to))
	if err != nil {
		return fmt.Errorf("move %s in branch %s: %w", oldRel, branch, err)
	}
	if !moved {
		log.Debug("metadata file not in branch, skipping move", "path", oldRel, "branch", branch)
		if branch == m.mirror.MainBranch() {
			return nil
		}
	}
	if err := m.mirror.Push(branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}

// moveObject copies src to dst, confirms the copy by ETag and deletes src.
func (m *Machine) moveObject(ctx context.Context, listedETag, src, dst string, log *slog.Logger) error {
	srcExists, err := m.store.Exists(ctx, src)
	if err != nil {
		return err
	}
	if !srcExists {
		dstExists, err := m.store.Exists(ctx, dst)
		if err != nil {
			return err
		}
		if dstExists {
			log.Info("metadata already relocated", "key", dst)
			return nil
		}
		return &store.Error{Op: "relocate", Key: src, Err: store.ErrNotFound}
	}

	etag, err := m.store.Copy(ctx, src, dst)
	if err != nil {
		if errors.Is(err, store.ErrNoCopyResult) {
			return &CopyUnverifiedError{Src: src, Dst: dst, Err: err}
		}
		return err
	}

	if store.NormalizeETag(etag) == "" || store.NormalizeETag(listedETag) == "" {
		m.discardCopy(ctx, dst, log)
		return &CopyUnverifiedError{Src: src, Dst: dst}
	}
	if !store.SameETag(etag, listedETag) {
		m.discardCopy(ctx, dst, log)
		return &ETagMismatchError{Src: src, Dst: dst, Listed: listedETag, Returned: etag}
	}

	if err := m.store.Delete(ctx, src); err != nil {
		return fmt.Errorf("copied to %s but could not delete original: %w", dst, err)
	}
	return nil
}

// discardCopy removes an unconfirmed copy so only the source remains.
func (m *Machine) discardCopy(ctx context.Context, dst string, log *slog.Logger) {
	if err := m.store.Delete(ctx, dst); err != nil {
		log.Warn("failed to remove unconfirmed copy", "error", err, "key", dst)
	}
}
