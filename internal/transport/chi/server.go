package chi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
	"github.com/kailas-cloud/cardex/internal/logger"
	healthuc "github.com/kailas-cloud/cardex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cardex/internal/usecase/search"
)

// DefaultMaxUploadBytes bounds the image search request body.
const DefaultMaxUploadBytes = 20 << 20

// Searcher answers retrieval requests.
type Searcher interface {
	SearchImage(ctx context.Context, q searchuc.ImageQuery) ([]domcard.Card, error)
	SearchText(ctx context.Context, query string) ([]domcard.Card, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server serves the retrieval API.
type Server struct {
	search         Searcher
	health         HealthChecker
	logger         *zap.Logger
	maxUploadBytes int64
	imageErrors    []errorHandler
	textErrors     []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:         search,
		health:         health,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	s.imageErrors = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeMissingFile, "image file is empty"),
		sentinelHandler(domain.ErrStoreUnavailable,
			http.StatusInternalServerError, CodeStoreUnavailable, "record store unavailable"),
		sentinelHandler(domain.ErrUnavailable,
			http.StatusBadGateway, CodeVectorizationFailed, "image vectorization failed"),
	}
	s.textErrors = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeMissingQuery, "query parameter q is required"),
		sentinelHandler(domain.ErrNoMatch, http.StatusNotFound, CodeNoMatch, "no matching cards"),
		sentinelHandler(domain.ErrStoreUnavailable,
			http.StatusInternalServerError, CodeStoreQuery, "record store query failed"),
		sentinelHandler(domain.ErrUnavailable,
			http.StatusBadGateway, CodeVectorizationFailed, "query vectorization failed"),
	}
	return s
}

// WithMaxUploadBytes sets the image search body limit.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/image-search", s.ImageSearch)
	r.Get("/text-search", s.TextSearch)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ImageSearch handles POST /image-search.
func (s *Server) ImageSearch(w http.ResponseWriter, r *http.Request) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidContentType, "content type must be multipart/form-data")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	upload, err := readUpload(multipart.NewReader(body, params["boundary"]))
	switch {
	case errors.Is(err, errNoFile):
		writeError(w, http.StatusBadRequest, CodeMissingFile, "no file in request")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, CodeInvalidMultipart, "invalid multipart body")
		return
	}

	cards, err := s.search.SearchImage(r.Context(), searchuc.ImageQuery{
		Data:        upload.data,
		ContentType: upload.contentType,
	})
	if err != nil {
		s.handleDomainError(w, r, s.imageErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsOrEmpty(cards))
}

// TextSearch handles GET /text-search?q=.
func (s *Server) TextSearch(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingQuery, "invalid query parameter q")
		return
	}

	cards, err := s.search.SearchText(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, s.textErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsOrEmpty(cards))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, handlers []errorHandler, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range handlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

var errNoFile = errors.New("no file part")

type upload struct {
	data        []byte
	contentType string
}

// readUpload returns the first part carrying a filename, or the first part
// when none does.
func readUpload(mr *multipart.Reader) (upload, error) {
	var first *upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return upload{}, fmt.Errorf("next part: %w", err)
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return upload{}, fmt.Errorf("read part: %w", err)
		}

		u := upload{data: data, contentType: part.Header.Get("Content-Type")}
		if part.FileName() != "" {
			return u, nil
		}
		if first == nil {
			first = &u
		}
	}
	if first == nil {
		return upload{}, errNoFile
	}
	return *first, nil
}

func cardsOrEmpty(cards []domcard.Card) []domcard.Card {
	if cards == nil {
		return []domcard.Card{}
	}
	return cards
}
