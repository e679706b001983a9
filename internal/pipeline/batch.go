package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/mdchunk/internal/chunker"
)

// BatchItem is one document of a synchronous batch.
type BatchItem struct {
	Filename string
	Data     []byte
}

// BatchResult is the outcome for one BatchItem. Err is set when the file
// could not be parsed; chunking itself never fails.
type BatchResult struct {
	Filename string          `json:"filename"`
	Title    string          `json:"title,omitempty"`
	Result   *chunker.Result `json:"result,omitempty"`
	Err      string          `json:"error,omitempty"`
}

// ChunkBatch parses and chunks items concurrently, at most limit at a time.
// Results keep the order of items. It returns early with the context error
// when ctx is cancelled.
func ChunkBatch(ctx context.Context, ck *chunker.Chunker, stats *ChunkStats, items []BatchItem, limit int, pdfFallback bool) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].Filename = item.Filename
			src, err := ParseFile(item.Filename, item.Data, pdfFallback)
			if err != nil {
				results[i].Err = err.Error()
				return nil
			}
			results[i].Title = src.Title
			results[i].Result = ChunkDocument(ck, stats, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
