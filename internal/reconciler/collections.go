package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

// DeleteOutcome describes what DeleteCollection managed to remove.
type DeleteOutcome struct {
	Name             string
	SegmentID        string
	MetadataDeleted  bool
	DirectoryRemoved bool
	// DirectoryErr is set when metadata went away but the directory did not.
	// It wraps ErrPartialCollectionDeletion.
	DirectoryErr error
}

// Partial reports whether the collection is gone but left an orphan behind.
func (o DeleteOutcome) Partial() bool {
	return o.MetadataDeleted && o.DirectoryErr != nil
}

// DeleteCollection removes a collection's metadata through the store and then
// its VECTOR segment directory. The segment id is looked up first because it
// cannot be recovered by name once the metadata is gone.
//
// A directory removal failure does not fail the call: the outcome is marked
// partial and the leftover directory is picked up by the next DeleteOrphans.
func (r *Reconciler) DeleteCollection(ctx context.Context, name string) (DeleteOutcome, error) {
	out := DeleteOutcome{Name: name}

	segID, err := r.root.segmentFor(ctx, name)
	if err != nil {
		logging.Warnf("[reconciler] %v; %s's directory will be left for the orphan sweep", err, name)
	}
	out.SegmentID = segID

	if err := r.store.DeleteCollection(ctx, name); err != nil {
		if chroma.IsNotFound(err) {
			return out, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return out, fmt.Errorf("delete collection %s: %w", name, err)
	}
	out.MetadataDeleted = true
	logging.Infof("[reconciler] deleted collection %s", name)

	removed, err := r.removeSegmentDir(segID)
	if err != nil {
		out.DirectoryErr = fmt.Errorf("%w: %s: %w", ErrPartialCollectionDeletion, name, err)
		logging.Errorf("[reconciler] %v", out.DirectoryErr)
		return out, nil
	}
	out.DirectoryRemoved = removed
	return out, nil
}

// removeSegmentDir removes the segment directory if it exists. It returns
// false with no error when there is nothing to remove.
func (r *Reconciler) removeSegmentDir(segID string) (bool, error) {
	if segID == "" {
		return false, nil
	}
	path := r.root.SegmentPath(segID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &DirectoryError{Name: segID, Err: err}
	}
	if err := r.removeAll(path); err != nil {
		return false, &DirectoryError{Name: segID, Err: err}
	}
	logging.Infof("[reconciler] removed segment directory %s", segID)
	return true, nil
}

// BatchResult collects per-collection outcomes of DeleteCollections.
type BatchResult struct {
	Requested int
	Outcomes  []DeleteOutcome
	Errors    map[string]error
}

// Succeeded returns the number of collections whose metadata was deleted.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.MetadataDeleted {
			n++
		}
	}
	return n
}

func (b BatchResult) Summary() string {
	return fmt.Sprintf("Successfully deleted %d of %d requested collections", b.Succeeded(), b.Requested)
}

// DeleteCollections deletes each name in turn. One failure never stops the
// rest of the batch.
func (r *Reconciler) DeleteCollections(ctx context.Context, names []string) BatchResult {
	res := BatchResult{Requested: len(names), Errors: make(map[string]error)}
	for _, name := range names {
		out, err := r.DeleteCollection(ctx, name)
		res.Outcomes = append(res.Outcomes, out)
		if err != nil {
			logging.Errorf("[reconciler] delete %s: %v", name, err)
			res.Errors[name] = err
		}
	}
	logging.Infof("[reconciler] %s", res.Summary())
	return res
}

type ResetStatus int

const (
	// Reset means the collection was deleted and recreated empty.
	Reset ResetStatus = iota + 1
	// FallbackPartialDelete means the reset sequence failed part way and the
	// selected entries were deleted one by one instead.
	FallbackPartialDelete
)

func (s ResetStatus) String() string {
	switch s {
	case Reset:
		return "reset"
	case FallbackPartialDelete:
		return "fallback-partial-delete"
	default:
		return "unknown"
	}
}

// ResetCollection empties a collection by deleting and recreating it under
// the same name and metadata, removing its segment directory in between.
// ids are the entries the caller selected; if the delete or recreate step
// fails they are deleted through the per-entry API instead.
//
// The sequence is not atomic. If the recreate fails after the delete, the
// fallback cannot reach the old collection and the error wraps
// ErrPartialCollectionDeletion; the collection is then absent until
// recreated.
func (r *Reconciler) ResetCollection(ctx context.Context, name string, ids []string) (ResetStatus, error) {
	col, err := r.store.GetCollection(ctx, name)
	if err != nil {
		if chroma.IsNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return 0, fmt.Errorf("get collection %s: %w", name, err)
	}

	segID, err := r.root.segmentFor(ctx, name)
	if err != nil {
		logging.Errorf("[reconciler] reset %s: %v", name, err)
		return r.fallbackDelete(ctx, col, ids, err)
	}

	if err := r.store.DeleteCollection(ctx, name); err != nil {
		logging.Errorf("[reconciler] reset %s: delete: %v", name, err)
		return r.fallbackDelete(ctx, col, ids, err)
	}
	logging.Infof("[reconciler] reset %s: collection deleted", name)

	if _, err := r.removeSegmentDir(segID); err != nil {
		logging.Errorf("[reconciler] reset %s: %v; leaving it for the orphan sweep", name, err)
	}

	if _, err := r.store.CreateCollection(ctx, name, col.Metadata); err != nil {
		logging.Errorf("[reconciler] reset %s: recreate: %v", name, err)
		return r.fallbackDelete(ctx, col, ids, err)
	}
	logging.Infof("[reconciler] reset %s: collection recreated", name)
	return Reset, nil
}

func (r *Reconciler) fallbackDelete(ctx context.Context, col *chroma.Collection, ids []string, cause error) (ResetStatus, error) {
	if len(ids) == 0 {
		return FallbackPartialDelete, fmt.Errorf("%w: %s: %w", ErrPartialCollectionDeletion, col.Name, cause)
	}
	if err := r.store.Delete(ctx, col.ID, chroma.DeleteRequest{IDs: ids}); err != nil {
		logging.Errorf("[reconciler] reset %s: fallback delete of %d entries: %v", col.Name, len(ids), err)
		return FallbackPartialDelete, fmt.Errorf("%w: %s: %w", ErrPartialCollectionDeletion, col.Name, errors.Join(cause, err))
	}
	logging.Infof("[reconciler] reset %s: deleted %d entries individually", col.Name, len(ids))
	return FallbackPartialDelete, nil
}
