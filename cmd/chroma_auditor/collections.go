package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/chroma-auditor/internal/console"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections, or inspect one with --collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("collection") {
			info, err := app.Inspect(cmd.Context(), collection)
			if err != nil {
				return err
			}
			console.PrintCollection(os.Stdout, info)
			return nil
		}
		names, err := app.CollectionNames(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No collections found.")
			return nil
		}
		console.PrintNumbered(os.Stdout, "Collection", names)
		return nil
	},
}

var orphansDelete bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Report segment directories no collection references",
	Long: `Compare the segment directories under CHROMA_PATH with the VECTOR
segments recorded in chroma.sqlite3 and report the ones left behind by
deleted collections. With --delete they are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := app.Reconciler.ComputeOrphans(cmd.Context())
		if err != nil {
			return err
		}
		console.PrintReport(os.Stdout, rep)
		if !orphansDelete || len(rep.Orphans) == 0 {
			return nil
		}
		res, err := app.CleanOrphans(cmd.Context())
		if err != nil {
			return err
		}
		console.PrintSweep(os.Stdout, res)
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d orphaned directories could not be removed", len(res.Failed))
		}
		return nil
	},
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansDelete, "delete", false, "remove the orphaned directories")
}
