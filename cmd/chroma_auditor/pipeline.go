package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/chroma-auditor/internal/langflow"
)

var uploadFileset string

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Ingest a file through the Langflow ingestion flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Chunks.Upload(cmd.Context(), app.Langflow, collection, args[0], uploadFileset, app.Config.UploadSettle)
		if err != nil {
			return err
		}
		fmt.Println(res.Message())
		return nil
	},
}

var (
	chatFile    string
	chatFileset string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the Langflow chat flow about one file or fileset",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := langflow.ChatFilter{File: chatFile, Fileset: chatFileset}
		if filter.File == "" && filter.Fileset == "" {
			return errors.New("chat needs --file or --fileset")
		}
		reply, err := app.Langflow.Chat(cmd.Context(), strings.Join(args, " "), filter)
		if err != nil {
			return err
		}
		fmt.Printf("[%s]\n%s\n", filter, reply)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFileset, "fileset", "", "fileset to place the new chunks in")
	chatCmd.Flags().StringVar(&chatFile, "file", "", "restrict retrieval to this source file")
	chatCmd.Flags().StringVar(&chatFileset, "fileset", "", "restrict retrieval to this fileset")
	chatCmd.MarkFlagsMutuallyExclusive("file", "fileset")
}
