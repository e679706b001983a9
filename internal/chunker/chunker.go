// Package chunker splits Markdown documents into size-bounded chunks while
// keeping code blocks, tables and list hierarchies whole and following the
// header structure. A strategy is chosen per document from its content
// profile, with a fallback chain that always ends in a usable result.
package chunker

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/mdchunk/internal/analyzer"
	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
	"github.com/dgallion1/mdchunk/internal/sizing"
)

// Result is the outcome of chunking one document.
type Result struct {
	Chunks           []doctree.Chunk `json:"chunks"`
	StrategyUsed     string          `json:"strategy_used"`
	FallbackUsed     bool            `json:"fallback_used"`
	Errors           []string        `json:"errors"`
	Warnings         []string        `json:"warnings"`
	Profile          doctree.Profile `json:"profile"`
	Scores           []StrategyScore `json:"scores,omitempty"`
	Coverage         *CoverageReport `json:"coverage,omitempty"`
	EffectiveMaxSize int             `json:"effective_max_size"`
}

// Analysis describes how a document would be chunked.
type Analysis struct {
	Profile          doctree.Profile `json:"profile"`
	EffectiveMaxSize int             `json:"effective_max_size"`
	Strategy         string          `json:"strategy"`
	Scores           []StrategyScore `json:"scores"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// Chunker holds a validated configuration. It keeps no per-document state and
// is safe for concurrent use.
type Chunker struct {
	cfg      Config
	sizer    *sizing.Calculator
	log      *slog.Logger
	warnings []string
}

// New validates cfg and returns a Chunker. Contradictory settings are
// corrected and reported by Warnings; invalid ones return a *ConfigError.
func New(cfg Config, log *slog.Logger) (*Chunker, error) {
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &Chunker{cfg: cfg, log: log, warnings: warnings}
	if cfg.UseAdaptiveSizing {
		calc, err := sizing.New(cfg.AdaptiveSizing)
		if err != nil {
			return nil, &ConfigError{Field: "adaptive_sizing", Message: err.Error()}
		}
		c.sizer = calc
	}
	for _, w := range warnings {
		log.Warn("config corrected", "detail", w)
	}
	return c, nil
}

// Chunk splits text using cfg. It fails only on invalid configuration.
func Chunk(text string, cfg Config) (*Result, error) {
	c, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

// Analyze profiles text with cfg and scores every strategy.
func Analyze(text string, cfg Config) (*Analysis, error) {
	c, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	return c.Analyze(text), nil
}

// Config returns the validated configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Warnings returns the corrections made while validating the configuration.
func (c *Chunker) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// run is the per-document state of one chunking pass.
type run struct {
	cfg      *Config
	doc      *doctree.Document
	tree     *doctree.HeaderTree
	max      int
	log      *slog.Logger
	warnings []string
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
	r.log.Warn(msg)
}

func (r *run) packer() *packer {
	return &packer{limit: r.max, allowOversize: r.cfg.AllowOversize, warn: r.warn}
}

func (r *run) pack(blocks []block) []doctree.Chunk {
	return r.packer().pack(blocks)
}

func (c *Chunker) prepare(text string) *run {
	doc := parser.ParseDocument(text)
	profile := analyzer.Analyze(doc)

	r := &run{
		cfg:  &c.cfg,
		doc:  doc,
		tree: doctree.BuildHeaderTree(doc.Headers),
		max:  c.cfg.MaxChunkSize,
		log:  c.log,
	}
	if c.sizer != nil {
		r.max = c.sizer.Size(profile, c.cfg.MaxChunkSize)
	}
	for _, w := range doc.Warnings {
		r.warn("parsing degradation: " + w)
	}
	return r
}

// Analyze profiles text and scores every strategy without chunking.
func (c *Chunker) Analyze(text string) *Analysis {
	r := c.prepare(text)
	sel := selector{cfg: &c.cfg}
	s, scores, err := sel.selectStrategy(r.doc.Profile)

	a := &Analysis{
		Profile:          r.doc.Profile,
		EffectiveMaxSize: r.max,
		Scores:           scores,
		Warnings:         append(c.Warnings(), r.warnings...),
	}
	if err != nil {
		a.Strategy = StrategyStructural.String()
		a.Warnings = append(a.Warnings, err.Error())
	} else {
		a.Strategy = s.String()
	}
	return a
}

// Chunk splits text. It never fails: strategy errors fall through the fallback
// chain to the sentence strategy, and as a last resort the whole text becomes
// one chunk. Empty input yields no chunks and a warning.
func (c *Chunker) Chunk(text string) *Result {
	res := &Result{
		Chunks:   []doctree.Chunk{},
		Errors:   []string{},
		Warnings: c.Warnings(),
	}
	if strings.TrimSpace(text) == "" {
		res.Warnings = append(res.Warnings, "empty input: no chunks produced")
		return res
	}

	r := c.prepare(text)
	res.Profile = r.doc.Profile
	res.EffectiveMaxSize = r.max

	sel := selector{cfg: &c.cfg}
	first, scores, err := sel.selectStrategy(r.doc.Profile)
	res.Scores = scores
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		c.log.Warn("strategy selection failed", "error", err)
		first = StrategyStructural
		res.FallbackUsed = true
	}
	c.log.Debug("strategy selected", "strategy", first.String(), "mode", c.cfg.Mode,
		"content_type", r.doc.Profile.ContentType, "max_size", r.max)

	chunks, used, fellBack, errs := r.runChain(first)
	res.Errors = append(res.Errors, errs...)
	res.FallbackUsed = res.FallbackUsed || fellBack
	res.StrategyUsed = used.String()

	if c.cfg.EnableOverlap {
		applyOverlap(chunks, &c.cfg, r.max)
	}
	r.enrich(chunks, used)

	coverage, warnings := validate(r.doc, chunks)
	for _, w := range warnings {
		c.log.Warn(w)
	}
	res.Coverage = coverage
	res.Chunks = chunks
	res.Warnings = append(res.Warnings, r.warnings...)
	res.Warnings = append(res.Warnings, warnings...)

	c.log.Debug("chunked document", "strategy", res.StrategyUsed, "chunks", len(chunks),
		"fallback", res.FallbackUsed, "coverage", coverage.Coverage)
	return res
}

// chain lists the strategies to try, starting with first.
func (r *run) chain(first Strategy) []Strategy {
	order := []Strategy{first}
	if r.cfg.EnableFallback {
		order = append(order, StrategyStructural)
		if fb, err := ParseStrategy(r.cfg.FallbackStrategy); err == nil {
			order = append(order, fb)
		}
	}
	order = append(order, StrategySentences)

	seen := make(map[Strategy]bool, len(order))
	out := order[:0]
	for _, s := range order {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// runChain executes strategies in chain order until one succeeds.
func (r *run) runChain(first Strategy) ([]doctree.Chunk, Strategy, bool, []string) {
	var errs []string
	for i, s := range r.chain(first) {
		mark := len(r.warnings)
		chunks, err := r.execute(s)
		if err == nil {
			if i > 0 {
				r.log.Warn("fallback strategy used", "strategy", s.String(), "selected", first.String())
			}
			return chunks, s, i > 0, errs
		}
		r.warnings = r.warnings[:mark]
		errs = append(errs, err.Error())
		r.log.Warn("strategy failed", "strategy", s.String(), "error", err)
	}
	r.log.Warn("all strategies failed; emitting whole text")
	return r.wholeText(), StrategySentences, true, errs
}

// execute runs one strategy, converting panics into a *StrategyError.
func (r *run) execute(s Strategy) (chunks []doctree.Chunk, err error) {
	defer func() {
		if p := recover(); p != nil {
			chunks = nil
			err = &StrategyError{Strategy: s, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	switch s {
	case StrategyCode:
		chunks, err = r.code()
	case StrategyMixed:
		chunks, err = r.mixed()
	case StrategyList:
		chunks, err = r.list()
	case StrategyTable:
		chunks, err = r.table()
	case StrategyStructural:
		chunks, err = r.structural()
	case StrategySentences:
		chunks, err = r.sentences()
	default:
		err = fmt.Errorf("unknown strategy %d", int(s))
	}
	if err != nil {
		return nil, &StrategyError{Strategy: s, Err: err}
	}

	kept := chunks[:0]
	for _, ch := range chunks {
		if err := ch.Validate(); err == nil {
			kept = append(kept, ch)
		}
	}
	if len(kept) == 0 {
		return nil, &StrategyError{Strategy: s, Err: errNoChunks}
	}
	r.log.Debug("strategy produced chunks", "strategy", s.String(), "chunks", len(kept))
	return kept, nil
}
