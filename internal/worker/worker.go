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

// Package worker drains the outbound queue and delivers each job through
// the Graph transport, recording progress in the outbox.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bcem/graphmail/internal/graph"
	"github.com/bcem/graphmail/internal/models"
	"github.com/bcem/graphmail/internal/outbox"
	"github.com/bcem/graphmail/internal/transport"
)

const (
	defaultWait = 5 * time.Second

	// errorBackoff is the pause after a failed queue read.
	errorBackoff = time.Second
)

// JobSource is the interface the worker needs to receive jobs.
// Implemented by queue.Consumer.
type JobSource interface {
	Next(ctx context.Context, wait time.Duration) (*models.OutboundJob, error)
}

// Deduper claims job ids. Implemented by dedup.Filter.
type Deduper interface {
	IsNew(ctx context.Context, jobID string) (bool, error)
}

// Outbox is the interface the worker needs to record delivery state.
// Implemented by outbox.Store.
type Outbox interface {
	Create(ctx context.Context, r outbox.Record) error
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	Recorder(id string) transport.Recorder
}

// Config wires a worker. Dedup and Outbox are optional.
type Config struct {
	Source    JobSource
	Transport *transport.Transport
	Dedup     Deduper
	Outbox    Outbox

	// Wait bounds each blocking queue read.
	Wait time.Duration
}

// Worker delivers queued jobs one at a time.
type Worker struct {
	source    JobSource
	transport *transport.Transport
	dedup     Deduper
	outbox    Outbox
	wait      time.Duration
}

// New creates a worker.
func New(cfg Config) *Worker {
	wait := cfg.Wait
	if wait <= 0 {
		wait = defaultWait
	}
	return &Worker{
		source:    cfg.Source,
		transport: cfg.Transport,
		dedup:     cfg.Dedup,
		outbox:    cfg.Outbox,
		wait:      wait,
	}
}

// Run reads and processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("outbound worker starting", "transport", w.transport.String())

	for {
		if ctx.Err() != nil {
			slog.Info("outbound worker stopping")
			return
		}

		job, err := w.source.Next(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Error("failed to read outbound queue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		// Errors are recorded and logged by Process; delivery is not retried.
		_ = w.Process(ctx, job)
	}
}

// Process delivers a single job. Duplicate jobs are skipped and return nil.
func (w *Worker) Process(ctx context.Context, job *models.OutboundJob) error {
	if w.dedup != nil {
		isNew, err := w.dedup.IsNew(ctx, job.ID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "job_id", job.ID, "error", err)
		} else if !isNew {
			slog.Debug("skipping duplicate job", "job_id", job.ID)
			return nil
		}
	}

	tr := w.transport
	if job.TenantID != "" {
		tr = tr.WithTenant(job.TenantID)
	}

	recording := w.outbox != nil
	if recording {
		if err := w.outbox.Create(ctx, w.record(job, tr.TenantID())); err != nil {
			// Deliver without recording.
			slog.Error("failed to create outbox record", "job_id", job.ID, "error", err)
			recording = false
		}
	}

	slog.Info("delivering outbound message",
		"job_id", job.ID,
		"tenant", tr.TenantID(),
		"direct", job.Direct,
	)

	var err error
	if job.Direct {
		err = tr.SendDirect(ctx, &job.Message)
	} else {
		if recording {
			tr = tr.WithRecorder(w.outbox.Recorder(job.ID))
		}
		_, err = tr.Send(ctx, &job.Message)
	}

	if err != nil {
		slog.Error("outbound delivery failed", failureAttrs(job.ID, err)...)
		if recording {
			if mErr := w.outbox.MarkFailed(ctx, job.ID, err); mErr != nil {
				slog.Error("failed to mark outbox record failed", "job_id", job.ID, "error", mErr)
			}
		}
		return err
	}

	if recording {
		if mErr := w.outbox.MarkSent(ctx, job.ID); mErr != nil {
			slog.Error("failed to mark outbox record sent", "job_id", job.ID, "error", mErr)
		}
	}
	return nil
}

// failureAttrs returns the log attributes for a failed delivery. Graph
// HTTP failures carry the status code, and 429 responses are flagged as
// throttled so they can be told apart from rejected messages.
func failureAttrs(jobID string, err error) []any {
	attrs := []any{"job_id", jobID, "error", err}
	var httpErr *graph.HTTPError
	if errors.As(err, &httpErr) {
		attrs = append(attrs, "status", httpErr.StatusCode, "throttled", httpErr.Throttled())
	}
	return attrs
}

func (w *Worker) record(job *models.OutboundJob, tenantID string) outbox.Record {
	r := outbox.Record{
		ID:       job.ID,
		TenantID: tenantID,
		Subject:  job.Message.Subject,
		Status:   outbox.StatusQueued,
	}
	if len(job.Message.From) > 0 {
		r.FromAddress = job.Message.From[0].Address
	}
	return r
}
