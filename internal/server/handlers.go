package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/devflow/internal/config"
	"github.com/hyperjump/devflow/internal/ingest"
	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r)
	if err != nil {
		s.fail(w, "root: stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"message": "DevFlow API",
		"stats":   stats,
	})
}

func (s *Server) stats(r *http.Request) (*models.Stats, error) {
	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		return nil, err
	}
	stats.VectorCount = s.vectorIndex.Size()
	stats.IndexBackend = s.vectorIndex.Type()
	return stats, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r)
	if err != nil {
		s.fail(w, "stats failed", err)
		return
	}
	resp := map[string]interface{}{
		"indexed_sources": stats.IndexedSources,
		"total_documents": stats.TotalDocuments,
		"total_searches":  stats.TotalSearches,
		"vector_count":    stats.VectorCount,
		"index_backend":   stats.IndexBackend,
		"config": map[string]interface{}{
			"embedding_provider": s.cfg.Embedding.Provider,
			"dimensions":         s.vectorIndex.Dimensions(),
			"metric":             s.vectorIndex.Metric().String(),
			"chunk_size":         s.cfg.Chunking.ChunkSize,
			"chunk_overlap":      s.cfg.Chunking.ChunkOverlap,
			"database_path":      s.cfg.Storage.DatabasePath,
			"index_path":         s.cfg.Storage.IndexPath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DatabasePath, s.cfg.Storage.IndexPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("n_results", query.NResults))
	answer, err := s.engine.Ask(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", query.Query), zap.Int("n_results", query.NResults))
	resp, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type manualRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

func (s *Server) handleIndexManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "Manual entry"
	}
	res, err := s.ingest.AddText(r.Context(), req.Title, req.Content, req.URL)
	if err != nil {
		s.fail(w, "manual index failed", err)
		return
	}
	s.respondIndexed(w, "Indexed "+req.Title, res)
}

func (s *Server) handleIndexUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	res, err := s.ingest.AddUpload(r.Context(), header.Filename, content)
	if err != nil {
		s.fail(w, "upload index failed", err)
		return
	}
	s.respondIndexed(w, "Indexed "+header.Filename, res)
}

type directoryRequest struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive,omitempty"`
}

func (s *Server) handleIndexDirectory(w http.ResponseWriter, r *http.Request) {
	var req directoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	res, err := s.ingest.AddDirectory(r.Context(), req.Path, recursive)
	if err != nil {
		s.fail(w, "directory index failed", err)
		return
	}
	s.respondIndexed(w, "Indexed directory "+req.Path, res)
}

type bookmarksRequest struct {
	Path   string `json:"path"`
	Scrape bool   `json:"scrape"`
}

func (s *Server) handleIndexBookmarks(w http.ResponseWriter, r *http.Request) {
	var req bookmarksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	res, err := s.ingest.AddBookmarks(r.Context(), req.Path, req.Scrape)
	if err != nil {
		s.fail(w, "bookmarks index failed", err)
		return
	}
	s.respondIndexed(w, "Indexed bookmarks", res)
}

type webRequest struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func (s *Server) handleIndexWeb(w http.ResponseWriter, r *http.Request) {
	var req webRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 5
	}
	res, err := s.ingest.AddWeb(r.Context(), req.Query, req.Count)
	if err != nil {
		s.fail(w, "web index failed", err)
		return
	}
	s.respondIndexed(w, "Indexed web results for "+req.Query, res)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.storage.ListSources(r.Context())
	if err != nil {
		s.fail(w, "list sources failed", err)
		return
	}
	if sources == nil {
		sources = []*models.Source{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	s.logger.Debug("delete source request", zap.Int64("id", id))
	removed, err := s.ingest.DeleteSource(r.Context(), id)
	if err != nil {
		s.fail(w, "delete source failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"source_id":      id,
		"chunks_removed": removed,
	})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.fail(w, "watch add directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, "watch remove directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if s.configPath == "" {
		return
	}
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondIndexed(w http.ResponseWriter, message string, res *ingest.Result) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   message,
		"source_id": res.SourceID,
		"documents": res.Documents,
		"chunks":    res.Chunks,
		"skipped":   res.Skipped,
	})
}

// fail logs err and responds with the status its error kind maps to.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration),
		errors.Is(err, models.ErrDimensionMismatch),
		errors.Is(err, models.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbeddingProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
