package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/config"
	"github.com/dgallion1/mdchunk/internal/pathstore"
)

type fakePublisher struct {
	mu       sync.Mutex
	nodes    map[string]pathstore.NodeRequest
	links    []pathstore.LinkRequest
	children []pathstore.ListChildrenResponse
	failKey  string

	// transient fails this many PutNode calls with a 503 before succeeding.
	transient int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{nodes: map[string]pathstore.NodeRequest{}}
}

func (f *fakePublisher) PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKey != "" && strings.HasPrefix(key, f.failKey) {
		return errors.New("boom")
	}
	if f.transient > 0 {
		f.transient--
		return &pathstore.StatusError{Op: "put node", Key: key, Status: 503}
	}
	f.nodes[key] = req
	return nil
}

func (f *fakePublisher) ListChildren(ctx context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error) {
	return f.children, nil
}

func (f *fakePublisher) PutLink(ctx context.Context, req pathstore.LinkRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, req)
	return nil
}

const testMarkdown = "# Notes\n\nFirst section text.\n\n## Part\n\n" +
	"```go\nfunc main() {}\n```\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, pub Publisher, maxSize int) *Worker {
	t.Helper()
	cfg := chunker.DefaultConfig()
	cfg.MaxChunkSize = maxSize
	cfg.MinChunkSize = 0
	cfg.TargetChunkSize = maxSize / 2
	cfg.OverlapSize = maxSize / 4
	ck, err := chunker.New(cfg, nil)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	return NewWorker(ck, pub, NewChunkStats(time.Hour), testLogger(), false, 2)
}

func TestWorker_ProcessWithoutPublisher(t *testing.T) {
	w := newTestWorker(t, nil, 4096)
	job := NewJob("j1", "doc1", "notes.md", "", []byte(testMarkdown))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalChunks == 0 || len(job.Chunks()) != snap.Progress.TotalChunks {
		t.Errorf("unexpected chunk count %d", snap.Progress.TotalChunks)
	}
	if snap.ContentHash == "" {
		t.Error("expected content hash")
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released after parsing")
	}
	if got := w.stats.Snapshot().Count; got != 1 {
		t.Errorf("expected one stats sample, got %d", got)
	}
}

func TestWorker_ProcessPublishes(t *testing.T) {
	pub := newFakePublisher()
	w := newTestWorker(t, pub, 60)
	job := NewJob("j2", "doc2", "notes.md", "My Notes", []byte(testMarkdown))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	n := snap.Progress.TotalChunks
	if n < 2 {
		t.Fatalf("expected several chunks, got %d", n)
	}
	if snap.Progress.ChunksPublished != n {
		t.Errorf("published %d of %d", snap.Progress.ChunksPublished, n)
	}
	if _, ok := pub.nodes["chunks/doc2/0"]; !ok {
		t.Error("missing first chunk node")
	}
	meta, ok := pub.nodes["chunks/doc2/meta"]
	if !ok {
		t.Fatal("missing meta node")
	}
	if title := meta.Value.(map[string]any)["title"]; title != "My Notes" {
		t.Errorf("meta title = %v", title)
	}
	if _, ok := pub.nodes["chunks/by_hash/"+snap.ContentHash+"/doc2"]; !ok {
		t.Error("missing hash index node")
	}
	if len(pub.links) != n-1 {
		t.Errorf("expected %d links, got %d", n-1, len(pub.links))
	}
}

func TestWorker_PublishFailures(t *testing.T) {
	pub := newFakePublisher()
	pub.failKey = "chunks/doc3/0"
	w := newTestWorker(t, pub, 60)
	job := NewJob("j3", "doc3", "notes.md", "", []byte(testMarkdown))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected partial, got %q", snap.Status)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected recorded errors")
	}

	pub = newFakePublisher()
	pub.failKey = "chunks/doc4/"
	w = newTestWorker(t, pub, 60)
	job = NewJob("j4", "doc4", "notes.md", "", []byte(testMarkdown))
	w.Process(context.Background(), job)
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected failed, got %q", got)
	}
}

func TestWorker_CancelledContextStopsPublishing(t *testing.T) {
	pub := newFakePublisher()
	w := newTestWorker(t, pub, 60)
	job := NewJob("j9", "doc9", "notes.md", "", []byte(testMarkdown))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", snap.Status)
	}
	if snap.Progress.ChunksPublished != 0 {
		t.Errorf("published %d chunks after cancellation", snap.Progress.ChunksPublished)
	}
	for key := range pub.nodes {
		if strings.HasPrefix(key, "chunks/doc9/") {
			t.Errorf("unexpected node %q", key)
		}
	}
	if !strings.Contains(strings.Join(snap.Progress.Errors, "\n"), context.Canceled.Error()) {
		t.Errorf("expected cancellation error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_SkipsDuplicates(t *testing.T) {
	pub := newFakePublisher()
	pub.children = []pathstore.ListChildrenResponse{{Key: "chunks.by_hash.abc.olddoc"}}
	w := newTestWorker(t, pub, 4096)
	job := NewJob("j5", "doc5", "notes.md", "", []byte(testMarkdown))
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %q", got)
	}
	if len(pub.nodes) != 0 {
		t.Errorf("expected nothing published, got %d nodes", len(pub.nodes))
	}
}

func TestWorker_Failures(t *testing.T) {
	w := newTestWorker(t, nil, 4096)

	job := NewJob("j6", "doc6", "image.png", "", []byte("x"))
	w.Process(context.Background(), job)
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("unsupported file: expected failed, got %q", got)
	}

	job = NewJob("j7", "doc7", "empty.txt", "", []byte("   \n"))
	w.Process(context.Background(), job)
	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Errorf("empty file: expected failed in chunking, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestOrchestrator_ProcessesJobs(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, MaxConcurrentDocs: 2, JobTTL: time.Hour}
	ck, err := chunker.New(chunker.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(cfg, ck, nil, nil, testLogger())
	o.Start(context.Background())

	job := NewJob("o1", "doc", "notes.md", "", []byte(testMarkdown))
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := o.GetJob("o1").Snapshot().Status; s == StatusCompleted || s == StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	o.Stop()

	if got := o.GetJob("o1").Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if o.Publishing() {
		t.Error("expected publishing disabled")
	}
	if o.Stats().Snapshot().Count != 1 {
		t.Error("expected one stats sample")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, nil, nil, nil, testLogger())

	if err := o.Submit(NewJob("q1", "d", "a.md", "", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := o.Submit(NewJob("q2", "d", "a.md", "", nil)); err == nil {
		t.Fatal("expected queue full error")
	}
	if got := o.GetJob("q2").Snapshot().Status; got != StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}

func TestChunkBatch(t *testing.T) {
	ck, err := chunker.New(chunker.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	stats := NewChunkStats(time.Hour)
	items := []BatchItem{
		{Filename: "a.md", Data: []byte(testMarkdown)},
		{Filename: "b.csv", Data: []byte("name,qty\napple,3\npear,4\n")},
		{Filename: "c.exe", Data: []byte("binary")},
		{Filename: "d.txt", Data: []byte("One sentence. Another sentence.")},
	}
	results, err := ChunkBatch(context.Background(), ck, stats, items, 2, false)
	if err != nil {
		t.Fatalf("ChunkBatch: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Filename != items[i].Filename {
			t.Errorf("result %d out of order: %q", i, r.Filename)
		}
	}
	if results[2].Err == "" || results[2].Result != nil {
		t.Errorf("expected parse error for %q", results[2].Filename)
	}
	if results[1].Result == nil || results[1].Result.StrategyUsed != "table" {
		t.Errorf("csv should chunk as a table, got %+v", results[1].Result)
	}
	if stats.Snapshot().Count != 3 {
		t.Errorf("expected 3 stats samples, got %d", stats.Snapshot().Count)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ChunkBatch(ctx, ck, nil, items, 1, false); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWorker_RetriesTransientPublishErrors(t *testing.T) {
	pub := newFakePublisher()
	pub.transient = 2
	w := newTestWorker(t, pub, 4096)
	w.retryBase = time.Millisecond

	job := NewJob("j-retry", "doc-retry", "notes.md", "", []byte(testMarkdown))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed after retries, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.ChunksPublished != snap.Progress.TotalChunks {
		t.Errorf("published %d of %d", snap.Progress.ChunksPublished, snap.Progress.TotalChunks)
	}
}
