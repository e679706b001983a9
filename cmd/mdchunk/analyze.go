package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdchunk/internal/pipeline"
)

func newAnalyzeCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file]",
		Short: "Show the content profile and strategy scores without chunking",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ck, err := root.newChunker(cmd)
			if err != nil {
				return err
			}

			var text string
			if len(args) == 0 || args[0] == "-" {
				text, err = readStdin(cmd)
			} else {
				text, err = readDocument(args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ck.Analyze(text))
		},
	}
}

func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	src, err := pipeline.ParseFile(filepath.Base(path), data, true)
	if err != nil {
		return "", err
	}
	return src.Markdown, nil
}
