// Package chunks implements the console's chunk operations on top of the
// vector store API: file and fileset views, metadata tagging, deletion and
// CSV export.
package chunks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hetulpatel/chroma-auditor/internal/audit"
	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

var includeDocs = []string{"documents", "metadatas"}

// ErrNoSelection is returned by mutating calls given no ids.
var ErrNoSelection = errors.New("no entries selected")

// Store is the part of the vector store API used for chunk work.
type Store interface {
	GetCollection(ctx context.Context, name string) (*chroma.Collection, error)
	EnsureCollection(ctx context.Context, name string) (*chroma.Collection, error)
	Count(ctx context.Context, collectionID string) (int, error)
	Get(ctx context.Context, collectionID string, req chroma.GetRequest) (*chroma.GetResponse, error)
	Update(ctx context.Context, collectionID string, req chroma.UpdateRequest) error
	Delete(ctx context.Context, collectionID string, req chroma.DeleteRequest) error
}

// Resetter empties a whole collection. *reconciler.Reconciler satisfies it.
type Resetter interface {
	ResetCollection(ctx context.Context, name string, ids []string) (reconciler.ResetStatus, error)
}

// ListCache stores the file and fileset lists of a collection.
type ListCache interface {
	GetList(ctx context.Context, collection, kind string) ([]string, bool, error)
	SetList(ctx context.Context, collection, kind string, values []string) error
	Invalidate(ctx context.Context, collection string) error
}

// Recorder receives an event for every destructive operation.
type Recorder interface {
	Publish(ctx context.Context, ev audit.Event) error
}

const (
	listFiles    = "files"
	listFilesets = "filesets"
)

type Service struct {
	store    Store
	resetter Resetter
	cache    ListCache
	recorder Recorder
}

type Option func(*Service)

func WithCache(c ListCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(store Store, resetter Resetter, opts ...Option) *Service {
	s := &Service{store: store, resetter: resetter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) collection(ctx context.Context, name string) (*chroma.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	col, err := s.store.GetCollection(ctx, name)
	if err != nil {
		if chroma.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", reconciler.ErrNotFound, name)
		}
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return col, nil
}

func (s *Service) fetch(ctx context.Context, col *chroma.Collection, req chroma.GetRequest) ([]Chunk, error) {
	if len(req.Include) == 0 {
		req.Include = includeDocs
	}
	resp, err := s.store.Get(ctx, col.ID, req)
	if err != nil {
		return nil, fmt.Errorf("get entries of %s: %w", col.Name, err)
	}
	return fromGetResponse(resp), nil
}

// All returns every chunk of the collection ordered by file and chunk index.
func (s *Service) All(ctx context.Context, collection string) ([]Chunk, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{})
	if err != nil {
		return nil, err
	}
	sortByFile(cs)
	logging.Debugf("[chunks] loaded %d chunks from %s", len(cs), collection)
	return cs, nil
}

// ByFile returns the chunks whose source_file equals file, in chunk order.
func (s *Service) ByFile(ctx context.Context, collection, file string) ([]Chunk, error) {
	if file == "" {
		return nil, fmt.Errorf("file name is required")
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{Where: map[string]any{KeySourceFile: file}})
	if err != nil {
		return nil, err
	}
	sortByIndex(cs)
	return cs, nil
}

// ByFileset returns the chunks tagged with fileset. Filtering happens here
// rather than in a where clause because the tag is a pipe-joined string.
func (s *Service) ByFileset(ctx context.Context, collection, fileset string) ([]Chunk, error) {
	if fileset == "" {
		return nil, fmt.Errorf("fileset name is required")
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	all, err := s.fetch(ctx, col, chroma.GetRequest{})
	if err != nil {
		return nil, err
	}
	var out []Chunk
	for _, c := range all {
		if c.InFileset(fileset) {
			out = append(out, c)
		}
	}
	sortByFile(out)
	return out, nil
}

// Files lists the distinct source file base names in the collection.
func (s *Service) Files(ctx context.Context, collection string) ([]string, error) {
	return s.cachedList(ctx, collection, listFiles, func(cs []Chunk) []string {
		set := map[string]struct{}{}
		for _, c := range cs {
			if f := c.SourceFile(); f != "" {
				set[baseName(f)] = struct{}{}
			}
		}
		return sortedKeys(set)
	})
}

// Filesets lists the distinct fileset names in the collection.
func (s *Service) Filesets(ctx context.Context, collection string) ([]string, error) {
	return s.cachedList(ctx, collection, listFilesets, func(cs []Chunk) []string {
		set := map[string]struct{}{}
		for _, c := range cs {
			for _, fs := range c.Filesets() {
				set[fs] = struct{}{}
			}
		}
		return sortedKeys(set)
	})
}

func (s *Service) cachedList(ctx context.Context, collection, kind string, build func([]Chunk) []string) ([]string, error) {
	if s.cache != nil {
		if vals, ok, err := s.cache.GetList(ctx, collection, kind); err != nil {
			logging.Warnf("[chunks] cache get %s/%s: %v", collection, kind, err)
		} else if ok {
			return vals, nil
		}
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{Include: []string{"metadatas"}})
	if err != nil {
		return nil, err
	}
	vals := build(cs)
	if s.cache != nil {
		if err := s.cache.SetList(ctx, collection, kind, vals); err != nil {
			logging.Warnf("[chunks] cache set %s/%s: %v", collection, kind, err)
		}
	}
	return vals, nil
}

// Invalidate drops the cached file and fileset lists of a collection. Callers
// that change a collection outside the service use it too.
func (s *Service) Invalidate(ctx context.Context, collection string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, collection); err != nil {
		logging.Warnf("[chunks] cache invalidate %s: %v", collection, err)
	}
}

func (s *Service) record(ctx context.Context, ev audit.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Publish(ctx, ev); err != nil {
		logging.Warnf("[chunks] audit %s %s: %v", ev.Action, ev.Collection, err)
	}
}

// CheckForFiles reports whether the collection has chunks carrying a
// source_file. The message explains why not.
func (s *Service) CheckForFiles(ctx context.Context, collection string) (bool, string, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return false, "", err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{})
	if err != nil {
		return false, "", err
	}
	if len(cs) == 0 {
		return false, fmt.Sprintf("Warning: Collection '%s' is empty", collection), nil
	}
	for _, c := range cs {
		if c.SourceFile() != "" {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf("Warning: No files found in collection '%s' - only chunks without source file metadata", collection), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
