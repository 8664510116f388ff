package reconciler

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable means chroma.sqlite3 is missing, locked or has an
	// unexpected schema. Callers degrade to an empty live mapping.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrNotFound means the named collection is absent from the store.
	ErrNotFound = errors.New("collection not found")

	// ErrPartialCollectionDeletion means one half of a delete or reset went
	// through and the other did not. The next orphan sweep repairs the
	// directory half; a missing collection after a failed reset is visible to
	// a subsequent list call.
	ErrPartialCollectionDeletion = errors.New("partial collection deletion")
)

// DirectoryError reports a single directory that could not be removed.
type DirectoryError struct {
	Name string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("remove directory %s: %v", e.Name, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}
