package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/chroma-auditor/internal/config"
	"github.com/hetulpatel/chroma-auditor/internal/console"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

var (
	collection string
	verbose    bool

	app *console.Console
)

var rootCmd = &cobra.Command{
	Use:   "chroma_auditor",
	Short: "Inspect and maintain a Chroma vector store",
	Long: `chroma_auditor lists, tags, exports and deletes the chunks stored in a
Chroma collection, relays uploads and chat requests through Langflow, and
cleans segment directories that no collection references any more.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logging.InitFromEnv()
		if verbose {
			logging.SetLevel(logging.LevelDebug)
		}
		if collection == "" {
			collection = cfg.DefaultCollection
		}
		c, err := console.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		app = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "collection name (defaults to DEFAULT_COLLECTION)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(filesetsCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
