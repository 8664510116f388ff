package chunks

import (
	"context"
	"net/http"
	"sync"

	"github.com/hetulpatel/chroma-auditor/internal/audit"
	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

type memEntry struct {
	id   string
	doc  string
	meta map[string]any
}

// memStore is an in-memory collection store that keeps insertion order.
type memStore struct {
	mu      sync.Mutex
	cols    map[string]string
	entries map[string][]memEntry
	updates int
	gets    int

	// onIngest lets upload tests add entries as the pipeline would.
	onIngest func()
}

func newMemStore() *memStore {
	return &memStore{cols: map[string]string{}, entries: map[string][]memEntry{}}
}

func (m *memStore) add(collection string, es ...memEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cols[collection]
	if !ok {
		id = "col-" + collection
		m.cols[collection] = id
	}
	m.entries[id] = append(m.entries[id], es...)
}

func (m *memStore) meta(collection, entryID string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[m.cols[collection]] {
		if e.id == entryID {
			return e.meta
		}
	}
	return nil
}

func (m *memStore) GetCollection(_ context.Context, name string) (*chroma.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cols[name]
	if !ok {
		return nil, &chroma.APIError{StatusCode: http.StatusNotFound, Body: "Collection " + name + " does not exist."}
	}
	return &chroma.Collection{ID: id, Name: name}, nil
}

func (m *memStore) EnsureCollection(_ context.Context, name string) (*chroma.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cols[name]
	if !ok {
		id = "col-" + name
		m.cols[name] = id
	}
	return &chroma.Collection{ID: id, Name: name}, nil
}

func (m *memStore) Count(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[id]), nil
}

func (m *memStore) Get(_ context.Context, id string, req chroma.GetRequest) (*chroma.GetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	want := map[string]bool{}
	for _, i := range req.IDs {
		want[i] = true
	}
	out := &chroma.GetResponse{}
	for _, e := range m.entries[id] {
		if len(want) > 0 && !want[e.id] {
			continue
		}
		if !matches(e.meta, req.Where) {
			continue
		}
		meta := map[string]any{}
		for k, v := range e.meta {
			meta[k] = v
		}
		out.IDs = append(out.IDs, e.id)
		out.Documents = append(out.Documents, e.doc)
		out.Metadatas = append(out.Metadatas, meta)
	}
	return out, nil
}

func matches(meta, where map[string]any) bool {
	for k, v := range where {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func (m *memStore) Update(_ context.Context, id string, req chroma.UpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	for i, eid := range req.IDs {
		for j := range m.entries[id] {
			e := &m.entries[id][j]
			if e.id != eid {
				continue
			}
			if e.meta == nil {
				e.meta = map[string]any{}
			}
			for k, v := range req.Metadatas[i] {
				if v == nil {
					delete(e.meta, k)
				} else {
					e.meta[k] = v
				}
			}
		}
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, id string, req chroma.DeleteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[string]bool{}
	for _, i := range req.IDs {
		drop[i] = true
	}
	kept := m.entries[id][:0]
	for _, e := range m.entries[id] {
		if !drop[e.id] {
			kept = append(kept, e)
		}
	}
	m.entries[id] = kept
	return nil
}

func (m *memStore) IngestFile(_ context.Context, _ string, _ []byte) error {
	if m.onIngest != nil {
		m.onIngest()
	}
	return nil
}

type stubResetter struct {
	calls  int
	status reconciler.ResetStatus
	err    error
}

func (s *stubResetter) ResetCollection(_ context.Context, _ string, _ []string) (reconciler.ResetStatus, error) {
	s.calls++
	return s.status, s.err
}

type mapCache struct {
	lists       map[string][]string
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{lists: map[string][]string{}}
}

func (c *mapCache) GetList(_ context.Context, collection, kind string) ([]string, bool, error) {
	v, ok := c.lists[collection+"/"+kind]
	return v, ok, nil
}

func (c *mapCache) SetList(_ context.Context, collection, kind string, values []string) error {
	c.lists[collection+"/"+kind] = values
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, collection string) error {
	c.invalidated = append(c.invalidated, collection)
	for k := range c.lists {
		if len(k) > len(collection) && k[:len(collection)+1] == collection+"/" {
			delete(c.lists, k)
		}
	}
	return nil
}

type eventLog struct {
	events []audit.Event
}

func (l *eventLog) Publish(_ context.Context, ev audit.Event) error {
	l.events = append(l.events, ev)
	return nil
}
