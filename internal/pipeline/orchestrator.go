package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/config"
)

// Orchestrator manages the asynchronous document ingestion pipeline.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	chunker   *chunker.Chunker
	publisher Publisher
	stats     *ChunkStats
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. pub may be nil, in which case chunks
// are kept in the job store only.
func NewOrchestrator(cfg config.Config, ck *chunker.Chunker, pub Publisher, stats *ChunkStats, log *slog.Logger) *Orchestrator {
	if stats == nil {
		stats = NewChunkStats(time.Hour)
	}
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		chunker:   ck,
		publisher: pub,
		stats:     stats,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.chunker, o.publisher, o.stats, o.log, o.cfg.PDFFallbackPdftotext, o.cfg.MaxConcurrentDocs)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Chunker returns the shared chunker for synchronous requests.
func (o *Orchestrator) Chunker() *chunker.Chunker {
	return o.chunker
}

// Stats returns the chunking statistics collector.
func (o *Orchestrator) Stats() *ChunkStats {
	return o.stats
}

// Publishing reports whether chunks are published to pathstore.
func (o *Orchestrator) Publishing() bool {
	return o.publisher != nil
}
