package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwygoda/vidrelay/internal/domain"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 200
	maxBodySize      = 64 << 10
	maxTimestampSkew = 5 * time.Minute
)

// Submitter accepts messages for background processing.
type Submitter interface {
	Submit(msg domain.Message) error
}

// Server exposes the job journal and a webhook that feeds messages into the
// relay the same way chat updates do.
type Server struct {
	journal   domain.JobJournal
	submitter Submitter
	secret    string
	logger    *slog.Logger
	mux       *http.ServeMux
	server    *http.Server
}

// NewServer creates a new HTTP server. POST /webhook is only served when a
// secret is configured; without one the route does not exist.
func NewServer(journal domain.JobJournal, submitter Submitter, addr, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		journal:   journal,
		submitter: submitter,
		secret:    secret,
		logger:    logger.With(slog.String("component", "http")),
		mux:       http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	if s.secret != "" {
		s.mux.HandleFunc("POST /webhook", s.handleWebhook)
	}
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// webhookRequest is the request body for POST /webhook.
type webhookRequest struct {
	ChatID     int64  `json:"chat_id"`
	MessageID  int    `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
}

// jobResponse is the JSON response for job endpoints.
type jobResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Pattern   string `json:"pattern"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.verifySignature(r, body); err != nil {
		s.logger.Warn("webhook verification failed", slog.Any("error", err))
		s.writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg := domain.Message{
		ID:         req.MessageID,
		ChatID:     req.ChatID,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Text:       req.Text,
	}
	if err := s.submitter.Submit(msg); err != nil {
		if errors.Is(err, domain.ErrInvalidMessage) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit message", slog.Any("error", err))
		s.writeError(w, http.StatusServiceUnavailable, "not accepting messages")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// verifySignature checks X-Signature = hex(SHA256(timestamp + "\n" + body + "\n" + secret)).
func (s *Server) verifySignature(r *http.Request, body []byte) error {
	timestamp := r.Header.Get("X-Timestamp")
	if timestamp == "" {
		return fmt.Errorf("missing X-Timestamp header")
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("invalid X-Timestamp: must be RFC3339")
	}

	skew := time.Since(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		return fmt.Errorf("X-Timestamp too far from current time (skew: %v, max: %v)", skew.Truncate(time.Second), maxTimestampSkew)
	}

	signature := r.Header.Get("X-Signature")
	if signature == "" {
		return fmt.Errorf("missing X-Signature header")
	}

	expected := Sign(timestamp, body, s.secret)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// Sign computes the webhook signature for a request body.
func Sign(timestamp string, body []byte, secret string) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte("\n"))
	h.Write(body)
	h.Write([]byte("\n"))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := s.journal.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job", slog.String("job_id", id), slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxJobsLimit)
	}

	jobs, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list jobs", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, jobToResponse(&jobs[i]))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.Stats(r.Context())
	if err != nil {
		s.logger.Error("job stats", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]int64{
		string(domain.StatusPending):   0,
		string(domain.StatusRunning):   0,
		string(domain.StatusSucceeded): 0,
		string(domain.StatusFailed):    0,
	}
	for status, n := range stats {
		resp[string(status)] = n
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func jobToResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:        job.ID,
		URL:       job.URL,
		Pattern:   job.PatternID,
		Status:    string(job.Status),
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
