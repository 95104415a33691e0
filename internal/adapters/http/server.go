package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"threatlens/internal/adapters/virustotal"
	"threatlens/internal/domain"
	"threatlens/internal/ports"
	scanrunner "threatlens/internal/workers/scanrunner"
)

const (
	defaultWaitTimeout = 30
	multipartMemory    = 8 << 20
	// room for multipart boundaries and part headers around the file
	multipartOverhead = 64 << 10
)

type Server struct {
	scanner   ports.Scanner
	history   ports.History
	jobs      ports.JobRepository
	processor scanrunner.ScanProcessor
	maxUpload int64
}

// New builds the HTTP server. maxUploadBytes caps file upload bodies before
// they are parsed; <= 0 disables the cap.
func New(scanner ports.Scanner, history ports.History, jobs ports.JobRepository, processor scanrunner.ScanProcessor, maxUploadBytes int) *Server {
	return &Server{scanner: scanner, history: history, jobs: jobs, processor: processor, maxUpload: int64(maxUploadBytes)}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Post("/scans", s.postScan)
	r.Post("/scans/file", s.postScanFile)
	r.Get("/scans/{id}", s.getScan)
	r.Get("/results/{id}", s.getResult)
	r.Get("/history", s.getHistory)
	r.Get("/history/latest", s.getLatest)
	return r
}

type scanRequestBody struct {
	URL string `json:"url"`
}

type scanAccepted struct {
	ScanID string `json:"scan_id"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	id, err := s.scanner.SubmitURL(r.Context(), body.URL)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.accepted(w, r, id)
}

func (s *Server) postScanFile(w http.ResponseWriter, r *http.Request) {
	tooLarge := fmt.Sprintf("upload too large: limit is %d bytes", s.maxUpload)
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload+multipartOverhead {
			writeError(w, http.StatusBadRequest, tooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, tooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	id, err := s.scanner.SubmitFile(r.Context(), hdr.Filename, content)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.accepted(w, r, id)
}

// accepted answers 202 with the request id, or with the finished result when
// the caller asked to wait.
func (s *Server) accepted(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	if wait, _ := strconv.ParseBool(q.Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, scanAccepted{ScanID: id})
		return
	}

	timeout := defaultWaitTimeout
	if t, err := strconv.Atoi(q.Get("timeout")); err == nil && t > 0 {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	err := scanrunner.ProcessInline(ctx, s.jobs, s.processor, id)
	if errors.Is(err, domain.ErrNotFound) {
		// a background worker claimed the job first
		writeJSON(w, http.StatusAccepted, scanAccepted{ScanID: id})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	req, err := s.scanner.Status(ctx, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if req.ResultID == nil {
		writeError(w, http.StatusInternalServerError, "scan finished without a result")
		return
	}
	res, err := s.scanner.Result(ctx, *req.ResultID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	req, err := s.scanner.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.scanner.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	results, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	res, err := s.history.Latest(r.Context(), r.URL.Query().Get("target"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("http: %v", err)
	}
	writeError(w, code, err.Error())
}

// statusFor maps error kinds to response codes.
func statusFor(err error) int {
	var apiErr *virustotal.Error
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, virustotal.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr), errors.Is(err, virustotal.ErrMissingAPIKey):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
