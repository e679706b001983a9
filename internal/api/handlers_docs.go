package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const docsPrefix = "chunks"

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		jsonError(w, "publishing is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleListDocuments lists the meta node of every published document.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	children, err := s.store.ListChildren(r.Context(), docsPrefix, 1000)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	docs := []map[string]any{}
	for _, child := range children {
		if strings.HasSuffix(child.Key, ".meta") {
			docs = append(docs, map[string]any{
				"key":   child.Key,
				"value": child.Value,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleGetDocument returns a document's meta node and its published chunks.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	docID := chi.URLParam(r, "docID")
	docPrefix := fmt.Sprintf("%s/%s", docsPrefix, docID)

	meta, err := s.store.GetNode(r.Context(), docPrefix+"/meta")
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if meta == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	children, err := s.store.ListChildren(r.Context(), docPrefix, 10000)
	if err != nil {
		jsonError(w, "failed to list chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	chunks := make([]any, 0, len(children))
	for _, child := range children {
		if strings.HasSuffix(child.Key, ".meta") {
			continue
		}
		chunks = append(chunks, child.Value)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id": docID,
		"meta":   meta.Value,
		"chunks": chunks,
	})
}

// handleDeleteDocument deletes a document, its chunks and its hash index entry.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()
	docPrefix := fmt.Sprintf("%s/%s", docsPrefix, docID)

	// The hash lives in the meta node, so read it before the subtree goes.
	hash := s.contentHash(ctx, docPrefix)

	if err := s.store.DeleteNode(ctx, docPrefix, true); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	hashDeleted := false
	if hash != "" {
		hashPath := fmt.Sprintf("%s/by_hash/%s/%s", docsPrefix, hash, docID)
		if err := s.store.DeleteNode(ctx, hashPath, false); err != nil {
			s.log.Warn("hash index delete failed", "doc_id", docID, "error", err)
		} else {
			hashDeleted = true
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":             docID,
		"deleted":            true,
		"hash_index_deleted": hashDeleted,
	})
}

func (s *Server) contentHash(ctx context.Context, docPrefix string) string {
	meta, err := s.store.GetNode(ctx, docPrefix+"/meta")
	if err != nil || meta == nil {
		return ""
	}
	m, ok := meta.Value.(map[string]any)
	if !ok {
		return ""
	}
	hash, _ := m["content_hash"].(string)
	return hash
}
