package chunks

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/hetulpatel/chroma-auditor/internal/chroma"
)

// Metadata keys written by the ingestion relay and read by the console views.
const (
	KeySourceFile      = "source_file"
	KeyChunkIndex      = "chunk_index"
	KeyTotalChunks     = "total_chunks"
	KeyFileset         = "fileset"
	KeyUploadTimestamp = "upload_timestamp"
)

// filesetSep joins the fileset names a chunk belongs to.
const filesetSep = "|"

// Chunk is one entry of a collection as the console shows it.
type Chunk struct {
	ID       string
	Document string
	Metadata map[string]any
}

func (c Chunk) SourceFile() string {
	s, _ := c.Metadata[KeySourceFile].(string)
	return s
}

// ChunkIndex returns the chunk_index metadata as an int, accepting the
// numeric and string forms it may have been stored in. Missing means 0.
func (c Chunk) ChunkIndex() int {
	switch v := c.Metadata[KeyChunkIndex].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

// Filesets returns the pipe-separated fileset names of the chunk.
func (c Chunk) Filesets() []string {
	raw, _ := c.Metadata[KeyFileset].(string)
	return splitFilesets(raw)
}

func (c Chunk) InFileset(name string) bool {
	for _, fs := range c.Filesets() {
		if fs == name {
			return true
		}
	}
	return false
}

func splitFilesets(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, filesetSep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fromGetResponse(resp *chroma.GetResponse) []Chunk {
	if resp == nil {
		return nil
	}
	out := make([]Chunk, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		c := Chunk{ID: id}
		if i < len(resp.Documents) {
			c.Document = resp.Documents[i]
		}
		if i < len(resp.Metadatas) && resp.Metadatas[i] != nil {
			c.Metadata = resp.Metadatas[i]
		} else {
			c.Metadata = map[string]any{}
		}
		out = append(out, c)
	}
	return out
}

// sortByFile orders chunks by source file, then chunk index.
func sortByFile(cs []Chunk) {
	sort.SliceStable(cs, func(i, j int) bool {
		if a, b := cs[i].SourceFile(), cs[j].SourceFile(); a != b {
			return a < b
		}
		return cs[i].ChunkIndex() < cs[j].ChunkIndex()
	})
}

func sortByIndex(cs []Chunk) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].ChunkIndex() < cs[j].ChunkIndex()
	})
}

func baseName(p string) string {
	// source_file may have been written on either OS
	return path.Base(strings.ReplaceAll(p, `\`, "/"))
}
