package reconciler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hetulpatel/chroma-auditor/internal/chroma"
)

const fakeSchemaSQL = `
CREATE TABLE collections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	dimension INTEGER
);
CREATE TABLE segments (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	scope TEXT NOT NULL,
	collection TEXT REFERENCES collections(id)
);`

// fakeStore mimics a persistent Chroma server: it writes collection and
// segment rows into the root's chroma.sqlite3 and creates a directory per
// VECTOR segment, but like older servers it never removes that directory on
// delete.
type fakeStore struct {
	t       *testing.T
	root    StorageRoot
	db      *sql.DB
	entries map[string]map[string]struct{}

	deleteErr error
	createErr error
}

func newTestRoot(t *testing.T) StorageRoot {
	t.Helper()
	root, err := NewStorageRoot(t.TempDir())
	require.NoError(t, err)
	return root
}

func newFakeStore(t *testing.T, root StorageRoot) *fakeStore {
	t.Helper()
	db, err := sql.Open("sqlite", root.IndexPath())
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(fakeSchemaSQL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &fakeStore{
		t:       t,
		root:    root,
		db:      db,
		entries: make(map[string]map[string]struct{}),
	}
}

// seed inserts a collection with a fixed VECTOR segment id and entries.
func (f *fakeStore) seed(name, segID string, entryIDs ...string) string {
	f.t.Helper()
	colID := uuid.NewString()
	_, err := f.db.Exec(`INSERT INTO collections (id, name) VALUES (?, ?)`, colID, name)
	require.NoError(f.t, err)
	_, err = f.db.Exec(`INSERT INTO segments (id, type, scope, collection) VALUES (?, 'urn:chroma:segment/vector/hnsw-local-persisted', 'VECTOR', ?)`, segID, colID)
	require.NoError(f.t, err)
	_, err = f.db.Exec(`INSERT INTO segments (id, type, scope, collection) VALUES (?, 'urn:chroma:segment/metadata/sqlite', 'METADATA', ?)`, uuid.NewString(), colID)
	require.NoError(f.t, err)
	writeSegmentDir(f.t, f.root, segID)

	set := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		set[id] = struct{}{}
	}
	f.entries[colID] = set
	return colID
}

func (f *fakeStore) count(name string) int {
	f.t.Helper()
	col, err := f.GetCollection(context.Background(), name)
	require.NoError(f.t, err)
	return len(f.entries[col.ID])
}

func (f *fakeStore) ListCollections(ctx context.Context) ([]chroma.Collection, error) {
	rows, err := f.db.QueryContext(ctx, `SELECT id, name FROM collections ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chroma.Collection
	for rows.Next() {
		var c chroma.Collection
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (f *fakeStore) GetCollection(ctx context.Context, name string) (*chroma.Collection, error) {
	var c chroma.Collection
	err := f.db.QueryRowContext(ctx, `SELECT id, name FROM collections WHERE name = ?`, name).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, notExist(name)
	}
	if err != nil {
		return nil, err
	}
	c.Metadata = map[string]any{"hnsw:space": "cosine"}
	return &c, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, metadata map[string]any) (*chroma.Collection, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	segID := uuid.NewString()
	colID := f.seed(name, segID)
	return &chroma.Collection{ID: colID, Name: name, Metadata: metadata}, nil
}

func (f *fakeStore) DeleteCollection(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	col, err := f.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	if _, err := f.db.ExecContext(ctx, `DELETE FROM segments WHERE collection = ?`, col.ID); err != nil {
		return err
	}
	if _, err := f.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, col.ID); err != nil {
		return err
	}
	delete(f.entries, col.ID)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collectionID string, req chroma.DeleteRequest) error {
	set, ok := f.entries[collectionID]
	if !ok {
		return &chroma.APIError{Method: http.MethodPost, Path: "/delete", StatusCode: http.StatusNotFound, Body: "collection not found"}
	}
	for _, id := range req.IDs {
		delete(set, id)
	}
	return nil
}

func notExist(name string) error {
	return &chroma.APIError{
		Method:     http.MethodGet,
		Path:       "/api/v1/collections/" + name,
		StatusCode: http.StatusInternalServerError,
		Body:       fmt.Sprintf(`{"error":"ValueError('Collection %s does not exist.')"}`, name),
	}
}

func writeSegmentDir(t *testing.T, root StorageRoot, name string) {
	t.Helper()
	dir := root.SegmentPath(name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data_level0.bin"), []byte("vectors"), 0o644))
}

func dirExists(root StorageRoot, name string) bool {
	info, err := os.Stat(root.SegmentPath(name))
	return err == nil && info.IsDir()
}
