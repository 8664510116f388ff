// Package reconciler keeps a Chroma persist directory consistent with its
// index: it maps live collections to their VECTOR segment directories, finds
// directories nothing references any more, and deletes or resets collections
// so that metadata and directory go away together.
//
// Deleting a collection is two separate steps (index metadata through the
// store API, then the directory on disk). There is no transaction spanning
// both. A failure between them leaves an orphan directory, and DeleteOrphans
// is the sweep that cleans it up later.
package reconciler

import (
	"context"
	"os"

	"github.com/hetulpatel/chroma-auditor/internal/chroma"
)

// Store is the subset of the vector store API the reconciler drives.
// *chroma.Client satisfies it.
type Store interface {
	ListCollections(ctx context.Context) ([]chroma.Collection, error)
	GetCollection(ctx context.Context, name string) (*chroma.Collection, error)
	CreateCollection(ctx context.Context, name string, metadata map[string]any) (*chroma.Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Delete(ctx context.Context, collectionID string, req chroma.DeleteRequest) error
}

// Reconciler operates on one storage root. It holds no connection between
// calls; each operation opens and closes the index itself.
type Reconciler struct {
	root      StorageRoot
	store     Store
	removeAll func(path string) error
}

type Option func(*Reconciler)

// WithRemoveFunc replaces os.RemoveAll for directory removal.
func WithRemoveFunc(fn func(path string) error) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.removeAll = fn
		}
	}
}

func New(root StorageRoot, store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		root:      root,
		store:     store,
		removeAll: os.RemoveAll,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Root() StorageRoot {
	return r.root
}

// LiveMapping returns every live collection's VECTOR segment id in index
// order. Errors wrap ErrIndexUnavailable.
func (r *Reconciler) LiveMapping(ctx context.Context) ([]LiveSegment, error) {
	return r.root.liveMapping(ctx)
}
