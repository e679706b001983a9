package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
	"github.com/dgallion1/mdchunk/internal/pathstore"
)

// Publisher is the subset of the pathstore client used to publish chunks.
type Publisher interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error)
	PutLink(ctx context.Context, req pathstore.LinkRequest) error
}

// Worker processes a single document job.
type Worker struct {
	chunker   *chunker.Chunker
	publisher Publisher
	stats     *ChunkStats
	log       *slog.Logger

	pdfFallback          bool
	maxConcurrentPublish int
	retryBase            time.Duration
}

func NewWorker(ck *chunker.Chunker, pub Publisher, stats *ChunkStats, log *slog.Logger, pdfFallback bool, maxPublish int) *Worker {
	if maxPublish <= 0 {
		maxPublish = 1
	}
	return &Worker{
		chunker:              ck,
		publisher:            pub,
		stats:                stats,
		log:                  log,
		pdfFallback:          pdfFallback,
		maxConcurrentPublish: maxPublish,
		retryBase:            time.Second,
	}
}

// ParseFile converts an uploaded file to Markdown using the parser for its extension.
func ParseFile(filename string, data []byte, pdfFallback bool) (*doctree.Source, error) {
	p, err := parser.ForFile(filename)
	if err != nil {
		return nil, err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = pdfFallback
	}
	src, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return src, nil
}

// ChunkDocument chunks src and records the run in stats when stats is non-nil.
func ChunkDocument(ck *chunker.Chunker, stats *ChunkStats, src *doctree.Source) *chunker.Result {
	start := time.Now()
	res := ck.Chunk(src.Markdown)
	if stats != nil {
		stats.Record(time.Since(start).Milliseconds(), res.StrategyUsed, len(res.Chunks), res.FallbackUsed)
	}
	return res
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	src, err := ParseFile(job.Filename, job.FileData(), w.pdfFallback)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseFileData()
	if job.Title != "" {
		src.Title = job.Title
	}
	job.ContentHash = ContentHashHex([]byte(src.Markdown))

	// Phase 1.5: Dedup check
	if w.publisher != nil {
		exists, existingDocID, err := w.checkDuplicate(ctx, job)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("duplicate document, skipping", "existing_doc_id", existingDocID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	res := ChunkDocument(w.chunker, w.stats, src)
	job.SetResult(res)
	for _, e := range res.Errors {
		log.Warn("strategy error", "error", e)
	}
	log.Info("chunked document", "chunks", len(res.Chunks), "strategy", res.StrategyUsed, "fallback", res.FallbackUsed)

	if len(res.Chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	if w.publisher == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 3: Publish chunks with bounded concurrency.
	job.SetStatus(StatusPublishing, "publishing")
	published, hadErrors := w.publish(ctx, job, src, res)
	log.Info("publishing complete", "published", published, "total", len(res.Chunks))

	if hadErrors && published > 0 {
		job.SetStatus(StatusPartial, "done")
	} else if hadErrors {
		job.SetStatus(StatusFailed, "publishing")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) publish(ctx context.Context, job *Job, src *doctree.Source, res *chunker.Result) (int, bool) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	docPrefix := "chunks/" + job.DocID
	source := "mdchunk:" + job.DocID

	type publishResult struct {
		idx int
		err error
	}
	results := make(chan publishResult, len(res.Chunks))
	sem := make(chan struct{}, w.maxConcurrentPublish)

	published := 0
	hadErrors := false
	launched := 0
launch:
	for i, c := range res.Chunks {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break launch
		}
		launched++
		go func(i int, c doctree.Chunk) {
			defer func() { <-sem }()
			req := pathstore.NodeRequest{
				Value: map[string]any{
					"content":    c.Content,
					"start_line": c.StartLine,
					"end_line":   c.EndLine,
					"metadata":   c.Metadata,
				},
				MemoryType: "semantic",
				Salience:   0.5,
				Source:     source,
			}
			err := withRetry(ctx, w.retryBase, func() error {
				return w.publisher.PutNode(ctx, chunkKey(job.DocID, i), req)
			})
			results <- publishResult{idx: i, err: err}
		}(i, c)
	}

	if launched < len(res.Chunks) {
		log.Warn("publishing cancelled", "launched", launched, "total", len(res.Chunks), "error", ctx.Err())
		job.AddError(fmt.Sprintf("chunks %d-%d not published: %s", launched, len(res.Chunks)-1, ctx.Err()))
		hadErrors = true
	}

	ok := make([]bool, len(res.Chunks))
	for range launched {
		r := <-results
		if r.err != nil {
			log.Error("publish failed", "chunk", r.idx, "error", r.err)
			job.AddError(fmt.Sprintf("chunk %d: %s", r.idx, r.err))
			hadErrors = true
			continue
		}
		ok[r.idx] = true
		published++
		job.IncrChunksPublished()
	}

	if ctx.Err() != nil {
		return published, true
	}

	// Link consecutive chunks so readers can walk the document in order.
	for i := 1; i < len(ok); i++ {
		if !ok[i-1] || !ok[i] {
			continue
		}
		err := w.publisher.PutLink(ctx, pathstore.LinkRequest{
			From:    chunkKey(job.DocID, i-1),
			To:      chunkKey(job.DocID, i),
			Weight:  1,
			Summary: "next",
		})
		if err != nil {
			log.Warn("link write failed", "from", i-1, "error", err)
		}
	}

	metaErr := w.publisher.PutNode(ctx, docPrefix+"/meta", pathstore.NodeRequest{
		Value: map[string]any{
			"filename":         job.Filename,
			"title":            src.Title,
			"format":           src.Format,
			"content_hash":     job.ContentHash,
			"total_chunks":     len(res.Chunks),
			"chunks_published": published,
			"strategy":         res.StrategyUsed,
			"fallback_used":    res.FallbackUsed,
			"coverage":         res.Coverage,
			"created_at":       job.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	})
	if metaErr != nil {
		log.Error("meta write failed", "error", metaErr)
		job.AddError(fmt.Sprintf("meta: %s", metaErr))
		hadErrors = true
	}

	// Write hash index for dedup.
	hashPath := fmt.Sprintf("chunks/by_hash/%s/%s", job.ContentHash, job.DocID)
	hashErr := w.publisher.PutNode(ctx, hashPath, pathstore.NodeRequest{
		Value: map[string]any{
			"filename":   job.Filename,
			"created_at": job.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	})
	if hashErr != nil {
		log.Error("hash index write failed", "error", hashErr)
	}

	return published, hadErrors
}

// checkDuplicate checks if this content hash was already published.
func (w *Worker) checkDuplicate(ctx context.Context, job *Job) (bool, string, error) {
	hashPrefix := "chunks/by_hash/" + job.ContentHash
	children, err := w.publisher.ListChildren(ctx, hashPrefix, 1)
	if err != nil {
		return false, "", err
	}
	if len(children) > 0 {
		// Extract doc_id from the key path.
		parts := strings.Split(children[0].Key, ".")
		docID := parts[len(parts)-1]
		return true, docID, nil
	}
	return false, "", nil
}

func chunkKey(docID string, index int) string {
	return fmt.Sprintf("chunks/%s/%d", docID, index)
}
