package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/config"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool

	maxSize   int
	minSize   int
	overlap   int
	noOverlap bool
	strategy  string
	mode      string
	adaptive  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "mdchunk",
		Short: "Structure-aware Markdown chunker",
		Long: `mdchunk splits documents into size-bounded chunks for retrieval.

Code blocks, tables and list hierarchies are kept whole, and the chunking
strategy is picked from the document's content profile.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML chunker configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log decisions to stderr")
	pf.IntVar(&opts.maxSize, "max-size", 0, "Maximum chunk size in characters")
	pf.IntVar(&opts.minSize, "min-size", 0, "Minimum chunk size in characters")
	pf.IntVar(&opts.overlap, "overlap", 0, "Overlap size in characters")
	pf.BoolVar(&opts.noOverlap, "no-overlap", false, "Disable overlap between chunks")
	pf.StringVarP(&opts.strategy, "strategy", "s", "", "Force a strategy (auto, code, mixed, list, table, structural, sentences)")
	pf.StringVar(&opts.mode, "mode", "", "Selection mode (strict or weighted)")
	pf.BoolVar(&opts.adaptive, "adaptive", false, "Scale the chunk size to the content")

	cmd.AddCommand(newChunkCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// chunkerConfig builds the chunker configuration from the config file and
// any flags that were set explicitly.
func (o *rootFlags) chunkerConfig(cmd *cobra.Command) (chunker.Config, error) {
	cfg := chunker.DefaultConfig()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadChunkerConfig(o.configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("max-size") {
		cfg.MaxChunkSize = o.maxSize
	}
	if flags.Changed("min-size") {
		cfg.MinChunkSize = o.minSize
	}
	if flags.Changed("overlap") {
		cfg.OverlapSize = o.overlap
	}
	if o.noOverlap {
		cfg.EnableOverlap = false
	}
	if flags.Changed("strategy") {
		cfg.Strategy = o.strategy
	}
	if flags.Changed("mode") {
		cfg.Mode = chunker.SelectionMode(o.mode)
	}
	if flags.Changed("adaptive") {
		cfg.UseAdaptiveSizing = o.adaptive
	}
	return cfg, nil
}

func (o *rootFlags) logger(w io.Writer) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newChunker validates cfg and reports corrections on stderr.
func (o *rootFlags) newChunker(cmd *cobra.Command) (*chunker.Chunker, error) {
	cfg, err := o.chunkerConfig(cmd)
	if err != nil {
		return nil, err
	}
	ck, err := chunker.New(cfg, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	for _, w := range ck.Warnings() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	return ck, nil
}

func readStdin(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no input: pass files or pipe text on stdin")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
