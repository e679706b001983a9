package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/mdchunk/internal/chunker"
	"github.com/dgallion1/mdchunk/internal/parser"
	"github.com/dgallion1/mdchunk/internal/pipeline"
)

// chunkRequest is the JSON body for /api/chunk and /api/analyze. Config
// fields that are present override the server defaults.
type chunkRequest struct {
	Text   string          `json:"text"`
	Config json.RawMessage `json:"config,omitempty"`
}

// requestConfig merges a JSON override onto the server's chunker config.
func (s *Server) requestConfig(raw json.RawMessage) (chunker.Config, error) {
	cfg := s.orchestrator.Chunker().Config()
	if len(raw) == 0 {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readChunkInput accepts either a JSON body or a multipart upload with a
// "file" part and an optional "config" JSON field.
func (s *Server) readChunkInput(w http.ResponseWriter, r *http.Request) (string, chunker.Config, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", chunker.Config{}, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		cfg, err := s.requestConfig(json.RawMessage(r.FormValue("config")))
		if err != nil {
			return "", cfg, http.StatusBadRequest, err
		}
		u, code, err := s.formUpload(r)
		if err != nil {
			return "", cfg, code, err
		}
		src, err := pipeline.ParseFile(u.filename, u.data, s.cfg.PDFFallbackPdftotext)
		if err != nil {
			return "", cfg, http.StatusUnprocessableEntity, err
		}
		return src.Markdown, cfg, 0, nil
	}

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", chunker.Config{}, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err)
	}
	cfg, err := s.requestConfig(req.Config)
	if err != nil {
		return "", cfg, http.StatusBadRequest, err
	}
	return req.Text, cfg, 0, nil
}

// handleChunk chunks a single document synchronously.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	text, cfg, code, err := s.readChunkInput(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	ck, err := chunker.New(cfg, s.log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	res := ck.Chunk(text)
	s.orchestrator.Stats().Record(time.Since(start).Milliseconds(), res.StrategyUsed, len(res.Chunks), res.FallbackUsed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	text, cfg, code, err := s.readChunkInput(w, r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	analysis, err := chunker.Analyze(text, cfg)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}

// handleChunkBatch chunks every uploaded "files" part concurrently and returns
// the results in upload order.
func (s *Server) handleChunkBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	cfg, err := s.requestConfig(json.RawMessage(r.FormValue("config")))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ck, err := chunker.New(cfg, s.log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := make([]pipeline.BatchItem, 0, len(files))
	var rejected []pipeline.BatchResult
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			rejected = append(rejected, pipeline.BatchResult{
				Filename: filename,
				Err:      fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}
		data, err := readUpload(fh.Open, s.cfg.MaxUploadBytes)
		if err != nil {
			rejected = append(rejected, pipeline.BatchResult{Filename: filename, Err: err.Error()})
			continue
		}
		items = append(items, pipeline.BatchItem{Filename: filename, Data: data})
	}

	results, err := pipeline.ChunkBatch(r.Context(), ck, s.orchestrator.Stats(), items, s.cfg.MaxConcurrentDocs, s.cfg.PDFFallbackPdftotext)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"results":  results,
		"rejected": rejected,
	})
}
