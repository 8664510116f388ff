package chunks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

// Ingestor sends a file through the external splitting and embedding
// pipeline, which writes the resulting chunks into the collection.
type Ingestor interface {
	IngestFile(ctx context.Context, name string, content []byte) error
}

type UploadResult struct {
	NewIDs  []string
	Fileset string
}

func (r UploadResult) Message() string {
	if len(r.NewIDs) == 0 {
		return "File processed but no new chunks were created"
	}
	msg := fmt.Sprintf("File processed successfully into %d chunks", len(r.NewIDs))
	if r.Fileset != "" {
		msg += fmt.Sprintf(" and stored in fileset: %s", r.Fileset)
	}
	return msg
}

// Upload relays the file at path to the pipeline, creating the collection
// first when it does not exist yet, and then stamps the chunks
// it produced with chunk_index, total_chunks, source_file, upload_timestamp
// and, when given, fileset. New chunks are found by diffing the collection's
// ids before and after the pipeline run; settle is how long to wait for the
// pipeline's writes to land.
func (s *Service) Upload(ctx context.Context, ing Ingestor, collection, path, fileset string, settle time.Duration) (UploadResult, error) {
	res := UploadResult{Fileset: fileset}
	content, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read upload: %w", err)
	}
	if strings.TrimSpace(collection) == "" {
		return res, fmt.Errorf("collection name is required")
	}
	col, err := s.store.EnsureCollection(ctx, collection)
	if err != nil {
		return res, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	before, err := s.fetch(ctx, col, chroma.GetRequest{Include: []string{"metadatas"}})
	if err != nil {
		return res, err
	}
	known := make(map[string]struct{}, len(before))
	for _, c := range before {
		known[c.ID] = struct{}{}
	}
	logging.Debugf("[chunks] %s has %d chunks before upload", collection, len(known))

	name := filepath.Base(path)
	if err := ing.IngestFile(ctx, name, content); err != nil {
		return res, fmt.Errorf("ingest %s: %w", name, err)
	}

	if settle > 0 {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(settle):
		}
	}

	after, err := s.fetch(ctx, col, chroma.GetRequest{Include: []string{"metadatas"}})
	if err != nil {
		return res, fmt.Errorf("file processed but listing new chunks failed: %w", err)
	}
	var fresh []Chunk
	for _, c := range after {
		if _, ok := known[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		logging.Warnf("[chunks] no new chunks detected in %s after ingesting %s", collection, name)
		return res, nil
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	req := chroma.UpdateRequest{}
	for i, c := range fresh {
		meta := c.Metadata
		meta[KeyChunkIndex] = i + 1
		meta[KeyTotalChunks] = len(fresh)
		meta[KeySourceFile] = name
		meta[KeyUploadTimestamp] = stamp
		if fileset != "" {
			meta[KeyFileset] = fileset
		}
		req.IDs = append(req.IDs, c.ID)
		req.Metadatas = append(req.Metadatas, meta)
	}
	if err := s.store.Update(ctx, col.ID, req); err != nil {
		return res, fmt.Errorf("file processed but error adding chunk metadata: %w", err)
	}
	s.Invalidate(ctx, collection)
	res.NewIDs = req.IDs
	logging.Infof("[chunks] %s: %d new chunks from %s", collection, len(fresh), name)
	return res, nil
}
