package httpserver

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appanalysis "github.com/bryanwahyu/pattern-analyzer/internal/application/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/application/stream"
	domain "github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
	"github.com/bryanwahyu/pattern-analyzer/internal/middleware"
)

const defaultMaxUpload = 32 << 20

type Options struct {
	CORSOrigins       []string
	MaxUploadBytes    int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	StreamAuth        middleware.Policy
}

type Deps struct {
	Analysis *appanalysis.Service
	Stream   *stream.Generator
	Verifier middleware.TokenVerifier
	// Checkers are reported on /health.
	Checkers map[string]middleware.HealthChecker
}

type Router struct {
	analysisSvc *appanalysis.Service
	streamGen   *stream.Generator
	maxUpload   int64
	upgrader    websocket.Upgrader
}

func NewRouter(deps Deps, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.StreamAuth == "" {
		opts.StreamAuth = middleware.PolicyOptional
	}

	r := &Router{
		analysisSvc: deps.Analysis,
		streamGen:   deps.Stream,
		maxUpload:   opts.MaxUploadBytes,
		upgrader:    newUpgrader(opts.CORSOrigins),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID, middleware.Logging, middleware.Metrics, chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.HealthHandler(deps.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(deps.Checkers, "database", "storage"))
	mux.Handle("/metrics", promhttp.Handler())

	mux.Group(func(api chi.Router) {
		api.Use(middleware.RateLimit(opts.RateLimitRequests, opts.RateLimitWindow))

		api.Group(func(rt chi.Router) {
			rt.Use(middleware.Authenticate(deps.Verifier, middleware.PolicyRequired))
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
			rt.Get("/download/{file_id}", r.wrap(r.handleDownload))
			rt.Get("/results/history", r.wrap(r.handleHistory))
			rt.Get("/results/download/{file_name}", r.wrap(r.handleDownloadHistorical))
			rt.Get("/test-auth", r.wrap(r.handleTestAuth))
		})

		api.With(middleware.Authenticate(deps.Verifier, opts.StreamAuth)).
			Get("/ws/stream", r.handleStream)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeDetail(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, domain.ErrResultNotFound):
			writeDetail(w, http.StatusNotFound, "File ID not found")
		case errors.Is(err, domain.ErrRecordNotFound):
			writeDetail(w, http.StatusNotFound, "Result not found for user")
		case errors.Is(err, domain.ErrFileMissing):
			writeDetail(w, http.StatusNotFound, "CSV not found on server")
		default:
			logging.Ctx(req.Context()).Error().Err(err).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Msg("request failed")
			writeDetail(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	_ = writeJSON(w, status, map[string]string{"detail": detail})
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// user is always set behind PolicyRequired
func currentUID(req *http.Request) string {
	u, ok := middleware.UserFromContext(req.Context())
	if !ok {
		return ""
	}
	return u.UID
}

// POST /analyze (multipart, field "file")
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return uploadError(err)
	}
	defer req.MultipartForm.RemoveAll()

	f, hdr, err := req.FormFile("file")
	if err != nil {
		return &domain.ValidationError{Msg: "Failed to parse file", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return uploadError(err)
	}

	res, err := r.analysisSvc.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		UserID:   currentUID(req),
		FileName: hdr.Filename,
		Data:     data,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return &domain.ValidationError{Msg: "Failed to parse file: upload too large", Err: err}
	}
	return &domain.ValidationError{Msg: "Failed to parse file", Err: err}
}

// GET /download/{file_id}
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "file_id")
	if !middleware.ValidFileID(id) {
		return domain.ErrResultNotFound
	}

	file, err := r.analysisSvc.Download(req.Context(), id)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", attachment(file.Name))
	_, err = w.Write(file.Body)
	return err
}

// GET /results/history?start_date=DD-MM-YYYY&end_date=DD-MM-YYYY&filename=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	items, err := r.analysisSvc.History(req.Context(), appanalysis.HistoryCommand{
		UserID:    currentUID(req),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		FileName:  middleware.SanitizeString(q.Get("filename")),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, items)
}

// GET /results/download/{file_name}
func (r *Router) handleDownloadHistorical(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "file_name")
	// chi matches on RawPath when the path had escapes Go would not reproduce
	if req.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			return &domain.ValidationError{Msg: "Invalid file name", Err: err}
		}
		name = unescaped
	}

	s, err := r.analysisSvc.DownloadHistorical(req.Context(), currentUID(req), name)
	if err != nil {
		return err
	}
	defer s.Body.Close()

	w.Header().Set("Content-Type", s.ContentType)
	w.Header().Set("Content-Disposition", attachment(s.Name))
	_, err = io.Copy(w, s.Body)
	return err
}

// GET /test-auth
func (r *Router) handleTestAuth(w http.ResponseWriter, req *http.Request) error {
	u, _ := middleware.UserFromContext(req.Context())
	return writeJSON(w, http.StatusOK, map[string]any{
		"message": "Authenticated!",
		"user":    u,
	})
}
