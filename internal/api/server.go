// Package api exposes the HTTP endpoints of the import pipeline.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assetdock/assetdock/internal/analyzer"
	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/importer"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/queue"
	"github.com/assetdock/assetdock/internal/repository"
	"github.com/assetdock/assetdock/internal/tabular"
)

// JobStore is the slice of the job repository the API needs.
type JobStore interface {
	Create(ctx context.Context, job *model.ImportJob) error
	Get(ctx context.Context, id string) (*model.ImportJob, error)
}

// BlobStore stores and returns uploaded files.
type BlobStore interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// Enqueuer schedules import executions.
type Enqueuer interface {
	EnqueueExecute(ctx context.Context, payload queue.ExecutePayload) error
}

// Server exposes HTTP endpoints for uploads, analysis and job visibility.
type Server struct {
	cfg      *config.Config
	jobs     JobStore
	store    BlobStore
	queue    Enqueuer
	analyzer *analyzer.Analyzer
	fields   analyzer.FieldKeySource
	logger   *slog.Logger
	server   *http.Server
	once     sync.Once
}

// New constructs a Server. fields may be nil when custom fields are not
// wired up.
func New(cfg *config.Config, jobs JobStore, store BlobStore, enqueuer Enqueuer, an *analyzer.Analyzer, fields analyzer.FieldKeySource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		jobs:     jobs,
		store:    store,
		queue:    enqueuer,
		analyzer: an,
		fields:   fields,
		logger:   logger,
	}
}

// Handler returns the routed handler, exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/imports/", s.handleImportsRoute)
	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportsRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/imports/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	switch parts[0] {
	case "config":
		s.requireMethod(w, r, http.MethodGet, s.handleConfig)
	case "assets":
		s.requireMethod(w, r, http.MethodPost, s.handleUpload)
	case "jobs":
		if len(parts) != 2 || parts[1] == "" {
			http.NotFound(w, r)
			return
		}
		s.requireMethod(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			s.handleJob(w, r, parts[1])
		})
	default:
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		jobID := parts[0]
		switch parts[1] {
		case "analyze":
			s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
				s.handleAnalyze(w, r, jobID)
			})
		case "preview":
			s.requireMethod(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
				s.handlePreview(w, r, jobID)
			})
		case "execute":
			s.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
				s.handleExecute(w, r, jobID)
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string, next http.HandlerFunc) {
	if r.Method != method {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	next(w, r)
}

// handleConfig advertises the upload constraints so clients can validate
// before uploading.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"allowedExtensions": tabular.AllowedExtensions,
		"maxUploadMb":       s.cfg.MaxUploadMBValue(),
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.respondJobError(w, err)
		return
	}
	resp := map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.ErrorMessage != nil {
		resp["error"] = *job.ErrorMessage
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, id string) {
	kind := model.EntityKind(r.URL.Query().Get("type"))
	if kind == "" {
		kind = model.KindAsset
	}
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown entity type %q", kind))
		return
	}
	useAI, _ := strconv.ParseBool(r.URL.Query().Get("useAi"))

	table, _, ok := s.loadTable(r.Context(), w, id)
	if !ok {
		return
	}
	result, err := s.analyzer.Analyze(r.Context(), table, kind, useAI)
	if err != nil {
		s.logger.Error("analyze failed", "job", id, "error", err)
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, id string) {
	table, _, ok := s.loadTable(r.Context(), w, id)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"headers":   table.Headers,
		"preview":   table.Preview(5),
		"totalRows": len(table.Rows),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		s.respondJobError(w, err)
		return
	}
	if job.Status != model.StatusPending {
		respondError(w, http.StatusConflict, fmt.Sprintf("job is %s", job.Status))
		return
	}

	var req model.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Type == "" {
		req.Type = model.KindAsset
	}
	if !req.Type.Valid() {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown entity type %q", req.Type))
		return
	}
	if err := importer.ValidateStrategy(req.Type, req.Strategy, req.Options); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var customKeys []string
	if s.fields != nil {
		if customKeys, err = s.fields.Keys(ctx, string(req.Type)); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load custom fields")
			return
		}
	}
	if err := importer.ValidateMapping(req.Type, req.Options.Mapping, customKeys); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	payload := queue.ExecutePayload{
		JobID:    job.ID,
		Kind:     req.Type,
		Strategy: req.Strategy,
		Options:  req.Options,
	}
	if err := s.queue.EnqueueExecute(ctx, payload); err != nil {
		s.logger.Error("enqueue failed", "job", job.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"jobId":  job.ID,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if limit := s.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+1024)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	filename := filepath.Base(part.FileName())
	ext := strings.ToLower(filepath.Ext(filename))
	if !tabular.ExtensionAllowed(ext) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	tmp, err := s.persistTemp(part, ext)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()

	jobID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", jobID, filename)
	if err := s.uploadToStorage(ctx, objectKey, tmp); err != nil {
		s.logger.Error("upload to storage failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	job := &model.ImportJob{
		ID:        jobID,
		FileName:  filename,
		ObjectKey: objectKey,
		SizeBytes: tmp.size,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("create job failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store metadata")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": string(job.Status),
	})
}

// loadTable fetches the job's uploaded object and parses it. It writes the
// HTTP error itself and reports ok=false when anything fails.
func (s *Server) loadTable(ctx context.Context, w http.ResponseWriter, id string) (*tabular.Table, *model.ImportJob, bool) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		s.respondJobError(w, err)
		return nil, nil, false
	}
	data, err := s.store.Download(ctx, job.ObjectKey)
	if err != nil {
		s.logger.Error("download failed", "job", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load uploaded file")
		return nil, nil, false
	}
	table, err := tabular.Read(bytes.NewReader(data), filepath.Ext(job.FileName))
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("cannot parse file: %v", err))
		return nil, nil, false
	}
	return table, job, true
}

func (s *Server) respondJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Error("job lookup failed", "error", err)
	respondError(w, http.StatusInternalServerError, "job lookup failed")
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
}

// persistTemp streams the multipart part to a temp file while enforcing the
// size cap, so large uploads never land in memory.
func (s *Server) persistTemp(part *multipart.Part, ext string) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "assetdock-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}
	limit := s.cfg.MaxUploadBytes()
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit > 0 && written > limit {
				cleanup()
				return nil, fmt.Errorf("file exceeds limit (%d MB)", s.cfg.MaxUploadMB)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				cleanup()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			cleanup()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		cleanup()
		return nil, errors.New("empty file")
	}
	if _, err := tmpFile.Seek(0, 0); err != nil {
		cleanup()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
	}, nil
}

func (s *Server) uploadToStorage(ctx context.Context, objectKey string, tmp *tempUpload) error {
	if _, err := tmp.f.Seek(0, 0); err != nil {
		return err
	}
	return s.store.Upload(ctx, objectKey, tmp.f, tmp.size, tmp.contentType)
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
