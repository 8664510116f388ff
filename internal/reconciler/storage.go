package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// IndexFile is the name of the store's metadata index inside the storage root.
const IndexFile = "chroma.sqlite3"

const liveMappingSQL = `
SELECT c.name, s.id
FROM segments s
JOIN collections c ON s.collection = c.id
WHERE s.scope = 'VECTOR'
ORDER BY s.rowid`

const segmentForNameSQL = `
SELECT s.id
FROM segments s
JOIN collections c ON s.collection = c.id
WHERE c.name = ? AND s.scope = 'VECTOR'
LIMIT 1`

// StorageRoot is the store's persist directory: the index file plus one
// directory per VECTOR segment named by the segment id.
type StorageRoot struct {
	path string
}

// NewStorageRoot checks that path is an existing directory.
func NewStorageRoot(path string) (StorageRoot, error) {
	if path == "" {
		return StorageRoot{}, fmt.Errorf("storage root path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return StorageRoot{}, fmt.Errorf("resolve storage root %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return StorageRoot{}, fmt.Errorf("storage root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return StorageRoot{}, fmt.Errorf("storage root %s is not a directory", abs)
	}
	return StorageRoot{path: abs}, nil
}

// Path returns the absolute directory backing the root.
func (s StorageRoot) Path() string {
	return s.path
}

// IndexPath returns the location of chroma.sqlite3.
func (s StorageRoot) IndexPath() string {
	return filepath.Join(s.path, IndexFile)
}

// SegmentPath returns the directory a segment id would occupy.
func (s StorageRoot) SegmentPath(segmentID string) string {
	return filepath.Join(s.path, segmentID)
}

// HasIndex reports whether the index file is present.
func (s StorageRoot) HasIndex() bool {
	info, err := os.Stat(s.IndexPath())
	return err == nil && !info.IsDir()
}

// LiveSegment is one row of the live name to segment id mapping.
type LiveSegment struct {
	Collection string
	SegmentID  string
}

// withIndex opens a read-only connection for the duration of fn.
func (s StorageRoot) withIndex(ctx context.Context, fn func(*sql.DB) error) (err error) {
	if !s.HasIndex() {
		return fmt.Errorf("%w: %s not found", ErrIndexUnavailable, s.IndexPath())
	}
	dsn := (&url.URL{
		Scheme:   "file",
		Path:     s.IndexPath(),
		RawQuery: "mode=ro&_pragma=busy_timeout(2000)",
	}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrIndexUnavailable, s.IndexPath(), err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %v", ErrIndexUnavailable, cerr)
		}
	}()
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return fn(db)
}

func (s StorageRoot) liveMapping(ctx context.Context) ([]LiveSegment, error) {
	var out []LiveSegment
	err := s.withIndex(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, liveMappingSQL)
		if err != nil {
			return fmt.Errorf("%w: query segments: %v", ErrIndexUnavailable, err)
		}
		defer rows.Close()
		for rows.Next() {
			var seg LiveSegment
			if err := rows.Scan(&seg.Collection, &seg.SegmentID); err != nil {
				return fmt.Errorf("%w: scan segment: %v", ErrIndexUnavailable, err)
			}
			out = append(out, seg)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// segmentFor returns the VECTOR segment id of a collection, or "" when the
// index has no such row.
func (s StorageRoot) segmentFor(ctx context.Context, name string) (string, error) {
	var id string
	err := s.withIndex(ctx, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, segmentForNameSQL, name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: lookup segment for %s: %v", ErrIndexUnavailable, name, err)
		}
		return nil
	})
	return id, err
}
