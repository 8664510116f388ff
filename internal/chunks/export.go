package chunks

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

var exportHeader = []string{"Metadata", "File Chunk", "ID"}

// ExportCSV writes chunks as CSV with the metadata rendered as indented JSON.
func ExportCSV(w io.Writer, cs []Chunk) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range cs {
		meta := c.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		b, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", c.ID, err)
		}
		if err := cw.Write([]string{string(b), c.Document, c.ID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes chunks to selected_chunks_<timestamp>.csv under dir
// (the system temp dir when empty) and returns the file path.
func ExportFile(dir string, cs []Chunk, now time.Time) (string, error) {
	if len(cs) == 0 {
		return "", fmt.Errorf("no rows selected for export")
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("selected_chunks_%s.csv", now.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := ExportCSV(f, cs); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
