// Package server exposes the HTTP API: the public request, balance, upload
// and search surface, plus the API-key-protected internal surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Ryno2390/Co-Lab/internal/auth"
	"github.com/Ryno2390/Co-Lab/internal/fusion"
	"github.com/Ryno2390/Co-Lab/internal/ledger"
	"github.com/Ryno2390/Co-Lab/internal/model"
	"github.com/Ryno2390/Co-Lab/internal/service"
)

// maxUploadBytes caps inbound upload bodies at the reward size ceiling.
const maxUploadBytes = 1 << 30

// Pipeline runs one request end to end.
type Pipeline interface {
	Process(ctx context.Context, req model.Request) model.FinalResult
}

// Searcher answers content queries.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]fusion.FusedItem, error)
}

// Uploader stores content and pays data rewards.
type Uploader interface {
	Upload(ctx context.Context, uploaderID string, content []byte, metadata map[string]string) (service.UploadResult, error)
}

// Registrar registers specialist sub-AIs.
type Registrar interface {
	Register(ctx context.Context, specialistID, description string, metadata map[string]string) error
}

// Config holds the HTTP server's dependencies.
type Config struct {
	Port           int
	Pipeline       Pipeline
	Ledger         ledger.Ledger
	Uploader       Uploader
	Searcher       Searcher
	Registrar      Registrar
	JWTManager     *auth.JWTManager
	InternalAPIKey string
	Logger         *slog.Logger
}

// HTTPServer serves the public and internal APIs.
type HTTPServer struct {
	server    *http.Server
	pipeline  Pipeline
	ledger    ledger.Ledger
	uploader  Uploader
	searcher  Searcher
	registrar Registrar
	logger    *slog.Logger
}

// NewHTTPServer creates the server and mounts all routes.
func NewHTTPServer(cfg Config) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		pipeline:  cfg.Pipeline,
		ledger:    cfg.Ledger,
		uploader:  cfg.Uploader,
		searcher:  cfg.Searcher,
		registrar: cfg.Registrar,
		logger:    logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireBearer(cfg.JWTManager))
		r.Post("/prompt", s.handlePrompt)
		r.Get("/balance", s.handleBalance)
		r.Post("/upload", s.handleUpload)
		r.Post("/search", s.handleSearch)
	})

	router.Route("/internal/v1", func(r chi.Router) {
		r.Use(auth.RequireAPIKey(cfg.InternalAPIKey))
		r.Post("/specialists", s.handleRegisterSpecialist)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // pipeline runs can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until shutdown.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type promptRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

type promptResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

func (s *HTTPServer) handlePrompt(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.RequesterFromContext(r.Context())

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "missing prompt")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result := s.pipeline.Process(r.Context(), model.Request{
		SessionID:   req.SessionID,
		Prompt:      req.Prompt,
		RequesterID: requesterID,
	})

	status := http.StatusOK
	if result.Outcome == model.OutcomeChargeFailed {
		status = http.StatusPaymentRequired
	} else if result.Outcome == model.OutcomeError {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, promptResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Outcome:   string(result.Outcome),
		Error:     result.Error,
	})
}

type balanceResponse struct {
	RequesterID string `json:"requester_id"`
	Balance     string `json:"balance"`
}

func (s *HTTPServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.RequesterFromContext(r.Context())

	balance, err := s.ledger.GetBalance(r.Context(), requesterID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("balance lookup failed", "requester_id", requesterID, "error", err)
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		RequesterID: requesterID,
		Balance:     balance.String(),
	})
}

type uploadResponse struct {
	ContentKey string `json:"content_key"`
	Reward     string `json:"reward"`
	Rewarded   bool   `json:"rewarded"`
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.RequesterFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading file")
		return
	}

	metadata := map[string]string{}
	if header.Filename != "" {
		metadata["filename"] = header.Filename
	}
	for _, field := range []string{"filename", "description", "tags"} {
		if v := r.FormValue(field); v != "" {
			metadata[field] = v
		}
	}

	result, err := s.uploader.Upload(r.Context(), requesterID, content, metadata)
	if err != nil {
		s.logger.Error("upload failed", "requester_id", requesterID, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ContentKey: result.ContentKey,
		Reward:     result.Reward.String(),
		Rewarded:   result.Rewarded,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchHit struct {
	ContentKey string            `json:"content_key"`
	Score      float64           `json:"score"`
	Snippet    string            `json:"snippet,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Sources    int               `json:"sources"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	results, err := s.searcher.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, item := range results {
		hits = append(hits, searchHit{
			ContentKey: item.Key,
			Score:      item.Fused,
			Snippet:    item.Snippet,
			Metadata:   item.Metadata,
			Sources:    item.Sources,
		})
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}

type registerSpecialistRequest struct {
	SpecialistID string            `json:"specialist_id"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *HTTPServer) handleRegisterSpecialist(w http.ResponseWriter, r *http.Request) {
	var req registerSpecialistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.registrar.Register(r.Context(), req.SpecialistID, req.Description, req.Metadata); err != nil {
		s.logger.Error("specialist registration failed", "specialist_id", req.SpecialistID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
