package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/chroma-auditor/internal/chunks"
	"github.com/hetulpatel/chroma-auditor/internal/console"
)

// selection flags shared by the chunk commands
var (
	selFile    string
	selFileset string
	selRows    string
	selAll     bool
	selYes     bool
)

func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&selFile, "file", "", "only chunks from this source file")
	cmd.Flags().StringVar(&selFileset, "fileset", "", "only chunks in this fileset")
	cmd.MarkFlagsMutuallyExclusive("file", "fileset")
}

func addSelectionFlags(cmd *cobra.Command) {
	addScopeFlags(cmd)
	cmd.Flags().StringVar(&selRows, "rows", "", "row numbers from the chunks listing, e.g. 1,3-5")
	cmd.Flags().BoolVar(&selAll, "all", false, "select every chunk in scope")
	cmd.MarkFlagsMutuallyExclusive("rows", "all")
}

// scoped returns the chunks matching --file or --fileset, or the whole
// collection when neither is set.
func scoped(ctx context.Context) ([]chunks.Chunk, error) {
	switch {
	case selFile != "":
		return app.Chunks.ByFile(ctx, collection, selFile)
	case selFileset != "":
		return app.Chunks.ByFileset(ctx, collection, selFileset)
	default:
		return app.Chunks.All(ctx, collection)
	}
}

// selected resolves --rows / --all against the scoped listing.
func selected(ctx context.Context) ([]chunks.Chunk, []string, error) {
	cs, err := scoped(ctx)
	if err != nil {
		return nil, nil, err
	}
	if selAll {
		return cs, chunks.SelectIDs(cs, allRows(len(cs))), nil
	}
	if selRows == "" {
		return nil, nil, errors.New("select chunks with --rows or --all")
	}
	rows, err := console.ParseSelection(selRows, len(cs))
	if err != nil {
		return nil, nil, err
	}
	ids := chunks.SelectIDs(cs, rows)
	picked := make([]chunks.Chunk, 0, len(rows))
	for _, r := range rows {
		picked = append(picked, cs[r])
	}
	return picked, ids, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List source files in the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, msg, err := app.Chunks.CheckForFiles(cmd.Context(), collection)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(msg)
			return nil
		}
		files, err := app.Chunks.Files(cmd.Context(), collection)
		if err != nil {
			return err
		}
		console.PrintNumbered(os.Stdout, "File", files)
		return nil
	},
}

var filesetsCmd = &cobra.Command{
	Use:   "filesets",
	Short: "List filesets in the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, err := app.Chunks.Filesets(cmd.Context(), collection)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Println("No filesets found.")
			return nil
		}
		console.PrintNumbered(os.Stdout, "Fileset", sets)
		return nil
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "List chunks, optionally for one file or fileset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := scoped(cmd.Context())
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			fmt.Println("No chunks found.")
			return nil
		}
		console.PrintChunks(os.Stdout, cs)
		fmt.Printf("%d chunks\n", len(cs))
		return nil
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <key> <value>",
	Short: "Set a metadata tag on selected chunks",
	Long: `Set a metadata key on the selected chunks. The fileset key is a set:
the value is added to the chunk's existing filesets instead of replacing them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ids, err := selected(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.Chunks.AddTag(cmd.Context(), collection, ids, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Tagged %d chunks with %s=%s\n", len(ids), args[0], args[1])
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <key> <value>",
	Short: "Remove a metadata tag from selected chunks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ids, err := selected(cmd.Context())
		if err != nil {
			return err
		}
		n, err := app.Chunks.RemoveTag(cmd.Context(), collection, ids, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s=%s from %d chunks\n", args[0], args[1], n)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete selected chunks",
	Long: `Delete the selected chunks. Selecting every chunk in the collection
resets it instead: the collection is dropped, its segment directory removed,
and an empty collection of the same name created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ids, err := selected(cmd.Context())
		if err != nil {
			return err
		}
		if !selYes {
			ok, err := console.Confirm(fmt.Sprintf("Delete %d chunks from %s", len(ids), collection))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Nothing deleted.")
				return nil
			}
		}
		msg, err := app.Chunks.DeleteEntries(cmd.Context(), collection, ids)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export selected chunks to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, _, err := selected(cmd.Context())
		if err != nil {
			return err
		}
		dir := exportDir
		if dir == "" {
			dir = app.Config.ExportDir
		}
		if dir == "" {
			dir = "."
		}
		path, err := chunks.ExportFile(dir, cs, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d chunks to %s\n", len(cs), path)
		return nil
	},
}

func init() {
	addScopeFlags(chunksCmd)
	for _, cmd := range []*cobra.Command{tagCmd, untagCmd, deleteCmd, exportCmd} {
		addSelectionFlags(cmd)
	}
	deleteCmd.Flags().BoolVarP(&selYes, "yes", "y", false, "skip the confirmation prompt")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (defaults to EXPORT_DIR or .)")
}
