package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/repository"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

// BasePath prefixes every HTTP route.
const BasePath = "/medicalGuideLine/knowledgeExtract"

const (
	Version               = "1.0.0"
	defaultMaxUploadBytes = 100 << 20
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// TaskRegistry is the read/delete side of the task store.
type TaskRegistry interface {
	Get(id string) (tasks.Snapshot, error)
	List() []tasks.Snapshot
	Delete(id string) bool
}

// Submitter starts background extraction.
type Submitter interface {
	SubmitFile(path, filename string) (tasks.Snapshot, error)
	SubmitUpload(tmpPath, filename string) (tasks.Snapshot, error)
}

// Exporter renders a completed task as a workbook.
type Exporter interface {
	ExportTaskXLSX(ctx context.Context, taskID string) ([]byte, string, error)
}

type HTTPDeps struct {
	Tasks          TaskRegistry
	Submitter      Submitter
	Exporter       Exporter
	Archive        repository.ArchiveRepository // nil disables /archive
	UploadDir      string                       // "" = os temp dir
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type httpAPI struct {
	HTTPDeps
}

// NewHTTPHandler builds the chi router for the task API.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	api := &httpAPI{HTTPDeps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Route(BasePath, func(r chi.Router) {
		r.Get("/public/check", api.handleCheck)
		r.Post("/extract", api.handleExtract)
		r.Get("/task/{taskID}", api.handleGetTask)
		r.Delete("/task/{taskID}", api.handleDeleteTask)
		r.Get("/task/{taskID}/export", api.handleExportTask)
		r.Get("/tasks", api.handleListTasks)
		r.Get("/archive", api.handleListArchive)
		r.Get("/archive/{taskID}", api.handleGetArchive)
	})
	return r
}

func (a *httpAPI) handleCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "knowledge extraction API is running",
		"version":     Version,
		"description": "upload a guideline document to extract its medical knowledge",
	})
}

// handleExtract accepts a multipart upload in field "file" and starts a task.
// POST /extract
func (a *httpAPI) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := common.LoggerFromContext(r.Context(), a.Logger)
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds "+strconv.FormatInt(a.MaxUploadBytes, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	v := common.NewValidator().Field("file", filename, common.Required, common.DocumentName, common.MaxLength(255))
	if v.HasErrors() {
		log.Warn("http.extract.rejected", "filename", filename, "error", v.ErrorMessage())
		writeError(w, http.StatusBadRequest, "only .pdf, .txt and .md files are supported")
		return
	}

	tmpPath, err := a.saveUpload(file, filename)
	if err != nil {
		log.Error("http.extract.save_failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "task submission failed: "+err.Error())
		return
	}

	snap, err := a.Submitter.SubmitUpload(tmpPath, filename)
	if err != nil {
		_ = os.Remove(tmpPath)
		status := http.StatusInternalServerError
		if errors.Is(err, tasks.ErrQueueFull) || errors.Is(err, tasks.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "task submission failed: "+err.Error())
		return
	}
	snap.Message = "task submitted, processing"
	writeJSON(w, http.StatusOK, snap)
}

func (a *httpAPI) saveUpload(src io.Reader, filename string) (string, error) {
	dir := a.UploadDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	ext := "." + constants.NormalizeExt(filepath.Ext(filename))
	tmp, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (a *httpAPI) handleGetTask(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Tasks.Get(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, statusFor(err), "task not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type taskListResponse struct {
	Tasks []tasks.Snapshot `json:"tasks"`
	Total int              `json:"total"`
}

func (a *httpAPI) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	list := a.Tasks.List()
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: list, Total: len(list)})
}

func (a *httpAPI) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if !a.Tasks.Delete(chi.URLParam(r, "taskID")) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task record deleted"})
}

func (a *httpAPI) handleExportTask(w http.ResponseWriter, r *http.Request) {
	b, name, err := a.Exporter.ExportTaskXLSX(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (a *httpAPI) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if a.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := a.Archive.ListTasks(r.Context(), limit)
	if err != nil {
		common.LoggerFromContext(r.Context(), a.Logger).Error("http.archive.list_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list, "total": len(list)})
}

func (a *httpAPI) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	if a.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive is not enabled")
		return
	}
	t, err := a.Archive.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LoggerFromContext(r.Context(), a.Logger).Error("http.archive.get_failed", "error", err)
		}
		writeError(w, statusFor(err), "archived task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// statusFor maps application errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// requestLogger logs one line per request and puts a request-scoped logger into the context.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			log := logger.With("request_id", reqID)
			ctx := common.WithRequestID(r.Context(), reqID)
			ctx = common.WithLogger(ctx, log)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
