// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the HTTP surface of the mail service. Clients POST
// messages which are queued for the worker; the response carries the job
// id that can be used to look up delivery state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bcem/graphmail/internal/mail"
	"github.com/bcem/graphmail/internal/models"
	"github.com/bcem/graphmail/internal/outbox"
)

// maxBodyBytes bounds a message request including base64 attachments.
const maxBodyBytes = 25 << 20

// Enqueuer is the interface the handler needs to queue jobs.
// Implemented by queue.Publisher.
type Enqueuer interface {
	Publish(ctx context.Context, job *models.OutboundJob) (string, error)
}

// RecordReader looks up delivery state. Implemented by outbox.Store.
type RecordReader interface {
	Get(ctx context.Context, id string) (*outbox.Record, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SendRequest is the body of POST /messages.
type SendRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Direct   bool   `json:"direct,omitempty"`
	mail.Message
}

// Handler serves the message API.
type Handler struct {
	queue     Enqueuer
	records   RecordReader
	checks    map[string]Pinger
	validator *requestValidator
}

// NewHandler creates an API handler. records may be nil when the outbox is
// disabled; checks names the backends pinged by /health.
func NewHandler(queue Enqueuer, records RecordReader, checks map[string]Pinger) (*Handler, error) {
	v, err := newRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}
	return &Handler{
		queue:     queue,
		records:   records,
		checks:    checks,
		validator: v,
	}, nil
}

// Routes builds the router for the API endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.ServeHealth)
	r.Route("/messages", func(r chi.Router) {
		r.Post("/", h.ServeSend)
		r.Get("/{id}", h.ServeStatus)
	})
	return r
}

// ServeSend validates and queues a message.
func (h *Handler) ServeSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := h.validate(&req.Message); err != nil {
		var ve ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  "invalid message",
				"fields": ve,
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	job := &models.OutboundJob{
		TenantID: req.TenantID,
		Direct:   req.Direct,
		Message:  req.Message,
	}
	id, err := h.queue.Publish(r.Context(), job)
	if err != nil {
		slog.Error("failed to queue message", "error", err)
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// ServeStatus returns the outbox record of a job.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeError(w, http.StatusNotFound, "message recording is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, outbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		slog.Error("failed to read outbox record", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ID:                rec.ID,
		TenantID:          rec.TenantID,
		Status:            rec.Status,
		InternetMessageID: rec.InternetMessageID,
		Error:             rec.Error,
		UpdatedAt:         rec.UpdatedAt,
	})
}

type statusResponse struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	Status            string    `json:"status"`
	InternetMessageID string    `json:"internet_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ServeHealth pings every configured backend.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	for name, c := range h.checks {
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "backend", name, "error", err)
			http.Error(w, name+" unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// validate checks the fields a message needs before it is queued and fills
// in missing attachment content types. A missing from address is allowed;
// the transport fills in its default.
func (h *Handler) validate(m *mail.Message) error {
	if len(m.Recipients()) == 0 {
		return errors.New("message has no recipients")
	}
	if err := h.validator.Validate(m); err != nil {
		return err
	}
	for i, a := range m.Attachments {
		if a.ContentType == "" {
			m.Attachments[i].ContentType = mail.DetectContentType(a.Filename, a.Body)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve starts the API server on the given port.
// It binds the port immediately and signals readiness via the first returned
// channel before starting to accept connections. The server shuts down when
// ctx ends; the second channel closes once in-flight requests have finished.
func Serve(ctx context.Context, port int, handler *Handler) (ready, done <-chan struct{}, err error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind api port %d: %w", port, err)
	}
	ready, done = ServeListener(ctx, ln, handler)
	return ready, done, nil
}

// ServeListener serves the API on an already bound listener. See Serve.
func ServeListener(ctx context.Context, ln net.Listener, handler *Handler) (ready, done <-chan struct{}) {
	server := &http.Server{
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	readyCh := make(chan struct{})
	doneCh := make(chan struct{})
	served := make(chan struct{})

	go func() {
		defer close(doneCh)
		<-ctx.Done()
		slog.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("api server shutdown error", "error", err)
		}
		<-served
	}()

	go func() {
		defer close(served)
		slog.Info("api server listening", "addr", ln.Addr().String())
		close(readyCh)
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "error", err)
		}
	}()

	return readyCh, doneCh
}
