package console

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hetulpatel/chroma-auditor/internal/audit"
	"github.com/hetulpatel/chroma-auditor/internal/chunks"
	"github.com/hetulpatel/chroma-auditor/internal/config"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

const (
	liveSeg   = "11111111-2222-3333-4444-555555555555"
	orphanSeg = "99999999-8888-7777-6666-555555555555"
)

type spyCache struct {
	lists       map[string][]string
	invalidated []string
}

func (s *spyCache) GetList(_ context.Context, collection, kind string) ([]string, bool, error) {
	v, ok := s.lists[collection+"/"+kind]
	return v, ok, nil
}

func (s *spyCache) SetList(_ context.Context, collection, kind string, values []string) error {
	s.lists[collection+"/"+kind] = values
	return nil
}

func (s *spyCache) Invalidate(_ context.Context, collection string) error {
	s.invalidated = append(s.invalidated, collection)
	delete(s.lists, collection+"/files")
	delete(s.lists, collection+"/filesets")
	return nil
}

type eventLog struct{ events []audit.Event }

func (l *eventLog) Publish(_ context.Context, ev audit.Event) error {
	l.events = append(l.events, ev)
	return nil
}

func writeIndex(t *testing.T, dir string) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, reconciler.IndexFile))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`
CREATE TABLE collections (id TEXT PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE segments (id TEXT PRIMARY KEY, type TEXT, scope TEXT, collection TEXT);
INSERT INTO collections VALUES ('c1', 'docs');
INSERT INTO segments VALUES ('` + liveSeg + `', 'hnsw', 'VECTOR', 'c1');`)
	require.NoError(t, err)
}

func newChromaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/collections":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "c1", "name": "docs"}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collections":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "c2", "name": "fresh"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/collections/docs":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Collection missing does not exist."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openTestConsole(t *testing.T, withIndex bool) (*Console, string, *eventLog) {
	t.Helper()
	dir := t.TempDir()
	if withIndex {
		writeIndex(t, dir)
	}
	for _, seg := range []string{liveSeg, orphanSeg} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, seg), 0o755))
	}
	srv := newChromaServer(t)
	c, err := Open(context.Background(), config.Config{ChromaPath: dir, ChromaURL: srv.URL})
	require.NoError(t, err)
	log := &eventLog{}
	c.recorder = log
	t.Cleanup(func() { _ = c.Close() })
	return c, dir, log
}

func TestOpenRequiresChromaPath(t *testing.T) {
	_, err := Open(context.Background(), config.Config{})
	require.Error(t, err)
}

func TestCollectionNames(t *testing.T) {
	c, _, _ := openTestConsole(t, true)
	names, err := c.CollectionNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)
}

func TestCleanOrphansRecordsEvent(t *testing.T) {
	c, dir, log := openTestConsole(t, true)

	res, err := c.CleanOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{orphanSeg}, res.Deleted)
	assert.NoDirExists(t, filepath.Join(dir, orphanSeg))
	assert.DirExists(t, filepath.Join(dir, liveSeg))

	require.Len(t, log.events, 1)
	ev := log.events[0]
	assert.Equal(t, audit.ActionDeleteOrphans, ev.Action)
	assert.Equal(t, 1, ev.Succeeded)
	assert.Equal(t, dir, ev.StorageDir)
	assert.False(t, ev.At.IsZero())
}

func TestCleanOrphansDegradedDeletesNothing(t *testing.T) {
	c, dir, log := openTestConsole(t, false)

	res, err := c.CleanOrphans(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.DirExists(t, filepath.Join(dir, orphanSeg))
	assert.DirExists(t, filepath.Join(dir, liveSeg))
	require.Len(t, log.events, 1)
	assert.Equal(t, 0, log.events[0].Succeeded)
	assert.NotEmpty(t, log.events[0].Detail)
}

func TestDeleteCollectionsBatch(t *testing.T) {
	c, dir, log := openTestConsole(t, true)

	res := c.DeleteCollections(context.Background(), []string{"docs", "missing"})
	assert.Equal(t, "Successfully deleted 1 of 2 requested collections", res.Summary())
	assert.NoDirExists(t, filepath.Join(dir, liveSeg))
	require.ErrorIs(t, res.Errors["missing"], reconciler.ErrNotFound)

	require.Len(t, log.events, 1)
	assert.Equal(t, audit.ActionDeleteCollection, log.events[0].Action)
	assert.Equal(t, 1, log.events[0].Failed)

	var buf bytes.Buffer
	PrintBatch(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "deleted docs")
	assert.Contains(t, out, "failed  missing")
	assert.True(t, strings.HasSuffix(out, res.Summary()+"\n"))
}

func TestDeleteCollectionsInvalidatesListCache(t *testing.T) {
	c, _, _ := openTestConsole(t, true)
	spy := &spyCache{lists: map[string][]string{"docs/files": {"stale.txt"}}}
	c.Chunks = chunks.NewService(c.Store, c.Reconciler, chunks.WithCache(spy))

	res := c.DeleteCollections(context.Background(), []string{"docs", "missing"})
	assert.Equal(t, 1, res.Succeeded())
	assert.Equal(t, []string{"docs"}, spy.invalidated)
	assert.NotContains(t, spy.lists, "docs/files")
}

func TestCreateCollectionInvalidatesListCache(t *testing.T) {
	c, _, log := openTestConsole(t, true)
	spy := &spyCache{lists: map[string][]string{"fresh/filesets": {"old"}}}
	c.Chunks = chunks.NewService(c.Store, c.Reconciler, chunks.WithCache(spy))

	require.NoError(t, c.CreateCollection(context.Background(), "fresh"))
	assert.Equal(t, []string{"fresh"}, spy.invalidated)
	assert.NotContains(t, spy.lists, "fresh/filesets")
	require.Len(t, log.events, 1)
	assert.Equal(t, audit.ActionCreateCollection, log.events[0].Action)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, reconciler.Report{
		Live:    []reconciler.LiveSegment{{Collection: "docs", SegmentID: liveSeg}},
		Orphans: []string{orphanSeg},
	})
	out := buf.String()
	assert.Contains(t, out, liveSeg)
	assert.Contains(t, out, "1 orphaned directories")
	assert.Contains(t, out, orphanSeg)

	buf.Reset()
	PrintReport(&buf, reconciler.Report{})
	assert.Contains(t, buf.String(), "No orphaned directories found.")
}

func TestParseSelection(t *testing.T) {
	got, err := ParseSelection("3, 1-2,2", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	got, err = ParseSelection("all", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	got, err = ParseSelection("4-2", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	for _, bad := range []string{"", "0", "6", "x", "1-y", " , "} {
		_, err := ParseSelection(bad, 5)
		assert.Error(t, err, bad)
	}
}

func TestPick(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Pick([]string{"a", "b", "c"}, []int{0, 2}))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a\n\n b"))
	long := strings.Repeat("x", previewLen+5)
	assert.Equal(t, strings.Repeat("x", previewLen)+"...", preview(long))
}

func TestCloseRunsEveryCloserAndReportsFirstError(t *testing.T) {
	var calls []string
	c := &Console{closers: []func() error{
		func() error { calls = append(calls, "cache"); return errors.New("redis gone") },
		func() error { calls = append(calls, "audit"); return errors.New("kafka gone") },
	}}
	err := c.Close()
	require.EqualError(t, err, "redis gone")
	assert.Equal(t, []string{"cache", "audit"}, calls)
}
