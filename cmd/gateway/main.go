package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sectioner/internal/app"
	"sectioner/internal/cache"
	"sectioner/internal/content"
	"sectioner/internal/httputil"
	"sectioner/internal/index"
	"sectioner/internal/pipeline"
	"sectioner/internal/queue"
)

type ingestRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,min=1,max=100"`
	Field       string `json:"field" validate:"omitempty,min=1,max=100"`
	Category    string `json:"category" validate:"omitempty,max=100"`
	SourceFile  string `json:"sourcefile" validate:"omitempty,max=200"`
}

type searchRequest struct {
	Query      string   `json:"query" validate:"required,min=2,max=500"`
	Categories []string `json:"categories" validate:"omitempty,max=10,dive,min=1,max=100"`
	Limit      int      `json:"limit" validate:"omitempty,min=1,max=50"`
}

type askRequest struct {
	Question   string   `json:"question" validate:"required,min=3,max=500"`
	Categories []string `json:"categories" validate:"omitempty,max=10,dive,min=1,max=100"`
	Limit      int      `json:"limit" validate:"omitempty,min=1,max=20"`
}

type source struct {
	SectionID  string  `json:"section_id"`
	SourceFile string  `json:"sourcefile,omitempty"`
	SourcePage string  `json:"sourcepage,omitempty"`
	Score      float32 `json:"score"`
	Preview    string  `json:"preview"` // Truncated section content
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/ingest", ingestHandler(deps))
	r.Post("/api/documents", uploadHandler(deps))
	r.Get("/api/jobs/{id}", jobHandler(deps))
	r.Post("/api/search", searchHandler(deps))
	r.Post("/api/ask", askHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func ingestHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if deps.Fetcher == nil {
			httputil.Fail(deps.Log, w, "content source not configured", nil, http.StatusServiceUnavailable)
			return
		}

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		// Fall back to the configured defaults.
		if req.ContentType == "" {
			req.ContentType = deps.Config.ContentType
		}
		if req.Field == "" {
			req.Field = deps.Config.ContentField
		}
		if req.ContentType == "" || req.Field == "" {
			httputil.Fail(deps.Log, w, "content_type and field are required", nil, http.StatusBadRequest)
			return
		}
		if req.SourceFile == "" {
			req.SourceFile = req.ContentType
		}

		job, err := deps.Index.CreateJob(ctx, string(queue.TaskTypeIngest), req.SourceFile)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to create job", err, http.StatusInternalServerError)
			return
		}

		payload := pipeline.IngestPayload{
			JobID:       job.ID,
			ContentType: req.ContentType,
			Field:       req.Field,
			Category:    req.Category,
			SourceFile:  req.SourceFile,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, job.ID, http.StatusInternalServerError, true)
			return
		}
		task := queue.Task{Type: queue.TaskTypeIngest, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue ingest; please retry", err, job.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"job_id": job.ID.String(),
			"status": job.Status,
		})
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Validate file size before parsing
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Validate file size
		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		// Validate file type
		contentType := header.Header.Get("Content-Type")

		// If Content-Type is missing, detect from filename
		if contentType == "" {
			ext := strings.ToLower(filepath.Ext(header.Filename))
			switch ext {
			case ".txt":
				contentType = "text/plain"
			case ".pdf":
				contentType = "application/pdf"
			default:
				httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
				return
			}
		}

		// Validate Content-Type
		allowedTypes := map[string]bool{
			"text/plain":      true,
			"application/pdf": true,
		}
		if !allowedTypes[contentType] {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		raw, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := content.ExtractText(deps.Log, header.Filename, raw)

		job, err := deps.Index.CreateJob(ctx, string(queue.TaskTypeUpload), header.Filename)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to create job", err, http.StatusInternalServerError)
			return
		}

		payload := pipeline.UploadPayload{
			JobID:      job.ID,
			Text:       text,
			Category:   r.FormValue("category"),
			SourceFile: header.Filename,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, job.ID, http.StatusInternalServerError, true)
			return
		}
		task := queue.Task{Type: queue.TaskTypeUpload, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue document; please retry", err, job.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"job_id": job.ID.String(),
			"status": job.Status,
		})
	}
}

// fail is a gateway-specific error handler that can mark jobs as failed
func fail(deps app.Deps, ctx context.Context, w http.ResponseWriter, message string, err error, jobID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("job_id", jobID)
	if markFailed && jobID != uuid.Nil {
		if upErr := deps.Index.UpdateJobStatus(ctx, jobID, index.JobFailed, message); upErr != nil {
			log.Error("failed to mark job failed", "err", upErr)
		}
	}

	httputil.Fail(log, w, message, err, status)
}

func jobHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		jobID, err := uuid.Parse(idStr)
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid job id", err, http.StatusBadRequest)
			return
		}
		job, err := deps.Index.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, index.ErrJobNotFound) {
				httputil.Fail(deps.Log, w, "job not found", err, http.StatusNotFound)
				return
			}
			httputil.Fail(deps.Log, w, "failed to load job", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, job)
	}
}

func searchHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}

		// Validate request
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		if req.Limit == 0 {
			req.Limit = 10
		}

		ctx := r.Context()

		// Check cache first
		cacheKey := cache.Key("search", req.Query, strings.Join(req.Categories, ","), strconv.Itoa(req.Limit))
		if cached, err := deps.Cache.GetSearchResult(ctx, cacheKey); err == nil && cached != nil {
			deps.Log.Info("cache hit", "query", req.Query)
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"hits":   cached.Hits,
				"count":  len(cached.Hits),
				"cached": true,
			})
			return
		}

		// Cache miss - run the query against the index
		hits, err := deps.Index.Search(ctx, req.Query, req.Categories, req.Limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "search failed", err, http.StatusInternalServerError)
			return
		}

		result := &cache.SearchResult{Hits: buildHits(hits)}
		cacheTTL := time.Duration(deps.Config.CacheTTLSeconds) * time.Second
		if err := deps.Cache.SetSearchResult(ctx, cacheKey, result, cacheTTL); err != nil {
			// Log cache write failure but don't fail the request
			deps.Log.Warn("failed to cache result", "err", err)
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"hits":   result.Hits,
			"count":  len(result.Hits),
			"cached": false,
		})
	}
}

func askHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.LLM == nil {
			httputil.Fail(deps.Log, w, "llm not configured", nil, http.StatusServiceUnavailable)
			return
		}

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		if req.Limit == 0 {
			req.Limit = 5
		}

		ctx := r.Context()
		hits, err := deps.Index.Search(ctx, req.Question, req.Categories, req.Limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "search failed", err, http.StatusInternalServerError)
			return
		}
		if len(hits) == 0 {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"answer":     "No matching sections were found for this question.",
				"confidence": 0,
				"sources":    []source{},
			})
			return
		}

		answer, confidence, err := deps.LLM.Answer(ctx, req.Question, buildContext(hits))
		if err != nil {
			httputil.Fail(deps.Log, w, "llm failed", err, http.StatusInternalServerError)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"answer":     answer,
			"confidence": confidence,
			"sources":    buildSources(hits),
		})
	}
}

// buildHits converts index hits into cacheable previews.
func buildHits(hits []index.Hit) []cache.Hit {
	out := make([]cache.Hit, len(hits))
	for i, h := range hits {
		out[i] = cache.Hit{
			ID:         h.Section.ID,
			Preview:    truncate(h.Section.Content, 150),
			Category:   h.Section.Category,
			SourcePage: h.Section.SourcePage,
			SourceFile: h.Section.SourceFile,
			Score:      h.Score,
		}
	}
	return out
}

// buildContext concatenates section contents for the LLM prompt.
func buildContext(hits []index.Hit) string {
	var builder strings.Builder
	for _, h := range hits {
		builder.WriteString(h.Section.Content)
		builder.WriteString("\n")
	}
	return builder.String()
}

// buildSources converts hits into source structs with truncated previews.
func buildSources(hits []index.Hit) []source {
	sources := make([]source, len(hits))
	for i, h := range hits {
		sources[i] = source{
			SectionID:  h.Section.ID,
			SourceFile: h.Section.SourceFile,
			SourcePage: h.Section.SourcePage,
			Score:      h.Score,
			Preview:    truncate(h.Section.Content, 150),
		}
	}
	return sources
}

// truncate limits text to maxLen characters, cutting at word boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Find last space before maxLen to avoid cutting words
	if idx := strings.LastIndex(s[:maxLen], " "); idx > 0 {
		return s[:idx] + "..."
	}
	return s[:maxLen] + "..."
}
