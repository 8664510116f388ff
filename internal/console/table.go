package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/hetulpatel/chroma-auditor/internal/chunks"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

// previewLen caps document text in chunk tables.
const previewLen = 60

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintNumbered writes items as a 1-based numbered list, the form the menus
// select from.
func PrintNumbered(w io.Writer, header string, items []string) {
	table := newTable(w, "#", header)
	for i, item := range items {
		table.Append([]string{strconv.Itoa(i + 1), item})
	}
	table.Render()
}

func PrintCollection(w io.Writer, info CollectionInfo) {
	table := newTable(w, "Field", "Value")
	seg := info.SegmentID
	if seg == "" {
		seg = "-"
	}
	table.Append([]string{"Name", info.Name})
	table.Append([]string{"ID", info.ID})
	table.Append([]string{"Entries", strconv.Itoa(info.Count)})
	table.Append([]string{"Vector segment", seg})
	table.Render()
}

func PrintChunks(w io.Writer, cs []chunks.Chunk) {
	table := newTable(w, "#", "File", "Chunk", "Filesets", "Preview")
	for i, c := range cs {
		table.Append([]string{
			strconv.Itoa(i + 1),
			c.SourceFile(),
			strconv.Itoa(c.ChunkIndex()),
			strings.Join(c.Filesets(), ","),
			preview(c.Document),
		})
	}
	table.Render()
}

func preview(doc string) string {
	doc = strings.Join(strings.Fields(doc), " ")
	r := []rune(doc)
	if len(r) <= previewLen {
		return doc
	}
	return string(r[:previewLen]) + "..."
}

func PrintReport(w io.Writer, rep reconciler.Report) {
	if rep.Degraded {
		fmt.Fprintf(w, "warning: index unavailable (%v); every candidate directory is listed\n", rep.IndexErr)
	}
	table := newTable(w, "Collection", "Vector segment")
	for _, seg := range rep.Live {
		table.Append([]string{seg.Collection, seg.SegmentID})
	}
	table.Render()
	if len(rep.Orphans) == 0 {
		fmt.Fprintln(w, "No orphaned directories found.")
		return
	}
	fmt.Fprintf(w, "%d orphaned directories:\n", len(rep.Orphans))
	for _, name := range rep.Orphans {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

func PrintSweep(w io.Writer, res reconciler.SweepResult) {
	if res.Degraded {
		fmt.Fprintln(w, "Index unavailable; refusing to delete directories.")
		return
	}
	for _, name := range res.Deleted {
		fmt.Fprintf(w, "deleted %s\n", name)
	}
	for _, de := range res.Failed {
		fmt.Fprintf(w, "failed  %s: %v\n", de.Name, de.Err)
	}
	fmt.Fprintf(w, "Deleted %d orphaned directories\n", res.Count())
}

func PrintBatch(w io.Writer, res reconciler.BatchResult) {
	for _, o := range res.Outcomes {
		switch {
		case !o.MetadataDeleted:
		case o.Partial():
			fmt.Fprintf(w, "deleted %s (directory left behind: %v)\n", o.Name, o.DirectoryErr)
		default:
			fmt.Fprintf(w, "deleted %s\n", o.Name)
		}
	}
	for _, o := range res.Outcomes {
		if err, ok := res.Errors[o.Name]; ok {
			fmt.Fprintf(w, "failed  %s: %v\n", o.Name, err)
		}
	}
	fmt.Fprintln(w, res.Summary())
}
