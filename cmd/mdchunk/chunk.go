package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/pipeline"
)

type chunkFlags struct {
	format      string
	concurrency int
	pdfFallback bool
}

func newChunkCmd(root *rootFlags) *cobra.Command {
	opts := &chunkFlags{}
	cmd := &cobra.Command{
		Use:   "chunk [files...]",
		Short: "Chunk documents",
		Long: `Chunk one or more documents. With no files, or "-", text is read from stdin
and treated as Markdown. Files are converted by extension first (md, txt, csv,
html, pdf, docx).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(opts.format) {
				return fmt.Errorf("unknown format %q (json, jsonl, text)", opts.format)
			}
			ck, err := root.newChunker(cmd)
			if err != nil {
				return err
			}
			results, err := chunkInputs(cmd, ck, args, opts)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results, opts.format)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json, jsonl or text")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 4, "Documents chunked in parallel")
	cmd.Flags().BoolVar(&opts.pdfFallback, "pdftotext", true, "Fall back to pdftotext for PDFs without extractable text")
	return cmd
}

func validFormat(f string) bool {
	switch f {
	case "json", "jsonl", "text":
		return true
	}
	return false
}

func chunkInputs(cmd *cobra.Command, ck *chunker.Chunker, args []string, opts *chunkFlags) ([]pipeline.BatchResult, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		text, err := readStdin(cmd)
		if err != nil {
			return nil, err
		}
		return []pipeline.BatchResult{{Filename: "-", Result: ck.Chunk(text)}}, nil
	}

	items := make([]pipeline.BatchItem, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		items = append(items, pipeline.BatchItem{Filename: filepath.Base(path), Data: data})
	}
	results, err := pipeline.ChunkBatch(cmd.Context(), ck, nil, items, opts.concurrency, opts.pdfFallback)
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, r := range results {
		if r.Err != "" {
			failed = append(failed, r.Filename+": "+r.Err)
		}
	}
	if len(failed) == len(results) {
		return nil, fmt.Errorf("no documents chunked: %s", strings.Join(failed, "; "))
	}
	for _, f := range failed {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", f)
	}
	return results, nil
}

func writeResults(w io.Writer, results []pipeline.BatchResult, format string) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, r := range results {
			if r.Result == nil {
				continue
			}
			for _, c := range r.Result.Chunks {
				line := map[string]any{
					"source":     r.Filename,
					"content":    c.Content,
					"start_line": c.StartLine,
					"end_line":   c.EndLine,
					"metadata":   c.Metadata,
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
		}
		return nil
	case "text":
		for _, r := range results {
			if r.Result == nil {
				continue
			}
			for i, c := range r.Result.Chunks {
				fmt.Fprintf(w, "--- %s #%d lines %d-%d (%s, %d chars) ---\n",
					r.Filename, i, c.StartLine, c.EndLine, r.Result.StrategyUsed, len([]rune(c.Content)))
				fmt.Fprintln(w, c.Content)
			}
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(results) == 1 && results[0].Result != nil {
		return enc.Encode(results[0].Result)
	}
	return enc.Encode(results)
}
