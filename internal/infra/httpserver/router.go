package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	domai "github.com/bryanwahyu/policy-analysis/internal/domain/ai"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
	"github.com/bryanwahyu/policy-analysis/internal/middleware"
)

const (
	serviceName          = "policy-analysis-orchestrator"
	serviceVersion       = "1.0.0"
	estimatedTimeSeconds = 120
)

// JobService is the part of the orchestrator the HTTP layer needs.
type JobService interface {
	Submit(req jobs.JobRequest) (string, error)
	Get(id string) (jobs.Job, bool)
}

type Options struct {
	Environment        string
	TempDir            string
	ReportsDir         string
	MaxUploadBytes     int64
	BlockPrivateURLs   bool
	CORSOrigins        []string
	APIKeys            map[string]string
	AnalyzerConfigured func() bool
}

type Deps struct {
	Jobs    JobService
	Metrics *middleware.Metrics
	Limiter *middleware.RateLimiter
	Health  map[string]middleware.HealthChecker
	Logger  arbor.ILogger
}

type Router struct {
	jobs   JobService
	opts   Options
	logger arbor.ILogger
	now    func() time.Time
}

func NewRouter(deps Deps, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.AnalyzerConfigured == nil {
		opts.AnalyzerConfigured = func() bool { return false }
	}
	logger := deps.Logger
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}

	r := &Router{jobs: deps.Jobs, opts: opts, logger: logger, now: time.Now}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/", r.handleRoot)
	mux.Get("/health", middleware.HealthHandler(deps.Health, func() map[string]any {
		return map[string]any{
			"service":             serviceName,
			"environment":         opts.Environment,
			"analyzer_configured": opts.AnalyzerConfigured(),
		}
	}))
	mux.Get("/livez", middleware.LivenessHandler(metrics.StartTime))
	mux.Get("/readyz", middleware.ReadinessHandler(deps.Health))
	mux.Get("/metrics", metrics.Handler)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if deps.Limiter != nil {
			rt.Use(middleware.RateLimitMiddleware(deps.Limiter))
		}

		rt.Post("/webhook/policy-uploaded", r.wrap(r.handlePolicyUploaded))
		rt.Post("/webhook/test", r.wrap(r.handleWebhookTest))
		rt.Post("/analysis/upload", r.wrap(r.handleUpload))
		rt.Get("/analysis/{id}/status", r.wrap(r.handleStatus))
		rt.Get("/analysis/{id}/report", r.wrap(r.handleReport))
	})

	return mux
}

// httpError carries an explicit status through wrap.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func statusError(status int, format string, args ...any) error {
	return &httpError{status: status, msg: fmt.Sprintf(format, args...)}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		switch {
		case errors.As(err, &he):
			http.Error(w, he.msg, he.status)
		case errors.Is(err, jobs.ErrInvalidRequest), errors.Is(err, middleware.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, jobs.ErrJobNotFound):
			http.Error(w, "analysis not found", http.StatusNotFound)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		default:
			r.logger.Error().Err(err).Str("path", req.URL.Path).Msg("Request failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type submitResponse struct {
	Success              bool   `json:"success"`
	AnalysisID           string `json:"analysis_id"`
	Message              string `json:"message"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
}

func queued(w http.ResponseWriter, id string) error {
	return writeJSON(w, http.StatusOK, submitResponse{
		Success:              true,
		AnalysisID:           id,
		Message:              "Policy analysis queued successfully",
		EstimatedTimeSeconds: estimatedTimeSeconds,
	})
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "operational",
	})
}

type policyUploadedPayload struct {
	EventType      string `json:"event_type"`
	PolicyID       string `json:"policy_id" validate:"required,max=128"`
	ClientID       string `json:"client_id" validate:"required,max=128"`
	ClientName     string `json:"client_name" validate:"required,max=256"`
	ClientIndustry string `json:"client_industry" validate:"max=128"`
	FileURL        string `json:"file_url" validate:"required,url"`
	FileName       string `json:"file_name" validate:"required,max=512"`
	FileSize       *int64 `json:"file_size"`
	UploadedBy     string `json:"uploaded_by"`
	PolicyType     string `json:"policy_type" validate:"max=128"`
	Renewal        bool   `json:"renewal"`
	Priority       string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	CallbackURL    string `json:"callback_url" validate:"omitempty,url"`
}

// POST /webhook/policy-uploaded
func (r *Router) handlePolicyUploaded(w http.ResponseWriter, req *http.Request) error {
	var body policyUploadedPayload
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil {
		return statusError(http.StatusBadRequest, "invalid JSON body: %v", err)
	}
	if err := middleware.ValidateStruct(body); err != nil {
		return err
	}
	if err := middleware.ValidateURL(body.FileURL, r.opts.BlockPrivateURLs); err != nil {
		return err
	}
	if body.CallbackURL != "" {
		if err := middleware.ValidateURL(body.CallbackURL, r.opts.BlockPrivateURLs); err != nil {
			return err
		}
	}

	id, err := r.jobs.Submit(jobs.JobRequest{
		FileURL:  body.FileURL,
		FileName: middleware.SanitizeString(body.FileName),
		Subject: jobs.Subject{
			Name:       middleware.SanitizeString(body.ClientName),
			Industry:   middleware.SanitizeString(body.ClientIndustry),
			PolicyType: middleware.SanitizeString(body.PolicyType),
			Renewal:    body.Renewal,
		},
		PolicyID:    body.PolicyID,
		ClientID:    body.ClientID,
		Priority:    body.Priority,
		CallbackURL: body.CallbackURL,
	})
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("analysis_id", id).
		Str("policy_id", body.PolicyID).
		Str("client_id", body.ClientID).
		Msg("Policy upload webhook accepted")
	return queued(w, id)
}

// POST /webhook/test
func (r *Router) handleWebhookTest(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"status":                    "connected",
		"timestamp":                 r.now().UTC().Format(time.RFC3339),
		"webhook_secret_configured": len(r.opts.APIKeys) > 0,
		"analyzer_configured":       r.opts.AnalyzerConfigured(),
	})
}

var uploadExtensions = map[string]bool{".pdf": true, ".txt": true}

// POST /analysis/upload
// Multipart: file, client_name, client_industry, policy_type, renewal,
// policy_id, client_id, callback_url.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return statusError(http.StatusRequestEntityTooLarge, "file exceeds %d bytes", r.opts.MaxUploadBytes)
		}
		return statusError(http.StatusBadRequest, "invalid multipart body: %v", err)
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("file")
	if err != nil {
		return statusError(http.StatusBadRequest, "file is required")
	}
	defer file.Close()

	name, err := middleware.SanitizeFileName(header.Filename)
	if err != nil {
		return err
	}
	if !uploadExtensions[strings.ToLower(filepath.Ext(name))] {
		return statusError(http.StatusBadRequest, "unsupported file type: %s", filepath.Ext(name))
	}

	callback := req.FormValue("callback_url")
	if callback != "" {
		if err := middleware.ValidateURL(callback, r.opts.BlockPrivateURLs); err != nil {
			return err
		}
	}
	renewal := false
	if v := req.FormValue("renewal"); v != "" {
		renewal, err = strconv.ParseBool(v)
		if err != nil {
			return statusError(http.StatusBadRequest, "renewal must be a boolean")
		}
	}

	if err := os.MkdirAll(r.opts.TempDir, 0o755); err != nil {
		return fmt.Errorf("prepare temp dir: %w", err)
	}
	local := filepath.Join(r.opts.TempDir, uuid.NewString()+"_"+name)
	out, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(local)
		return fmt.Errorf("save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(local)
		return fmt.Errorf("save upload: %w", err)
	}

	id, err := r.jobs.Submit(jobs.JobRequest{
		LocalPath: local,
		FileName:  name,
		Subject: jobs.Subject{
			Name:       middleware.SanitizeString(req.FormValue("client_name")),
			Industry:   middleware.SanitizeString(req.FormValue("client_industry")),
			PolicyType: middleware.SanitizeString(req.FormValue("policy_type")),
			Renewal:    renewal,
		},
		PolicyID:    middleware.SanitizeString(req.FormValue("policy_id")),
		ClientID:    middleware.SanitizeString(req.FormValue("client_id")),
		CallbackURL: callback,
	})
	if err != nil {
		os.Remove(local)
		return err
	}

	r.logger.Info().Str("analysis_id", id).Str("file_name", name).Int64("size", header.Size).Msg("Policy upload accepted")
	return queued(w, id)
}

func (r *Router) lookup(req *http.Request) (jobs.Job, error) {
	id := chi.URLParam(req, "id")
	if middleware.ValidateJobID(id) != nil {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	job, ok := r.jobs.Get(id)
	if !ok {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	return job, nil
}

// GET /analysis/{id}/status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	job, err := r.lookup(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, job)
}

// GET /analysis/{id}/report
// Redirects when the report was uploaded, otherwise serves the local file.
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	job, err := r.lookup(req)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusCompleted {
		return statusError(http.StatusConflict, "report not ready: analysis is %s", job.Status)
	}
	if job.Result == nil || job.Result.ReportPath == nil || *job.Result.ReportPath == "" {
		return statusError(http.StatusNotFound, "no report was generated for this analysis")
	}

	path := *job.Result.ReportPath
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		http.Redirect(w, req, path, http.StatusFound)
		return nil
	}

	if !within(r.opts.ReportsDir, path) {
		return statusError(http.StatusNotFound, "report not available")
	}
	if _, err := os.Stat(path); err != nil {
		return statusError(http.StatusNotFound, "report file missing")
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, req, path)
	return nil
}

func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
