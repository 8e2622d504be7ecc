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

// Package outbox provides a Postgres-backed record of outbound messages.
// Each record tracks a queued job through drafting and sending and keeps
// the internet message id Graph assigned to the draft.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/graphmail/internal/transport"
)

// Record statuses.
const (
	StatusQueued  = "queued"
	StatusDrafted = "drafted"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ErrNotFound is returned when no record matches an id.
var ErrNotFound = errors.New("outbox: record not found")

// Record represents a single outbound message persisted in Postgres.
type Record struct {
	ID                string
	TenantID          string
	FromAddress       string
	Subject           string
	Status            string
	InternetMessageID string
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Store provides operations on outbound message records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an outbox store backed by the given Postgres pool.
// It ensures the outbound_messages table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure outbox schema: %w", err)
	}
	slog.Info("outbox store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS outbound_messages (
			id                  TEXT PRIMARY KEY,
			tenant_id           TEXT NOT NULL,
			from_address        TEXT NOT NULL DEFAULT '',
			subject             TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL DEFAULT 'queued',
			internet_message_id TEXT NOT NULL DEFAULT '',
			error               TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ DEFAULT NOW(),
			updated_at          TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_outbound_status ON outbound_messages(status);
		CREATE INDEX IF NOT EXISTS idx_outbound_internet_id ON outbound_messages(internet_message_id);
	`)
	return err
}

// Create inserts a queued record. Creating an id that already exists is a
// no-op, so a redelivered job keeps its original record.
func (s *Store) Create(ctx context.Context, r Record) error {
	status := r.Status
	if status == "" {
		status = StatusQueued
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbound_messages (id, tenant_id, from_address, subject, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.TenantID, r.FromAddress, r.Subject, status)
	if err != nil {
		return fmt.Errorf("insert outbound message %s: %w", r.ID, err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, from_address, subject, status,
		       internet_message_id, error, created_at, updated_at
		FROM outbound_messages
		WHERE id = $1
	`, id).Scan(
		&r.ID, &r.TenantID, &r.FromAddress, &r.Subject, &r.Status,
		&r.InternetMessageID, &r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outbound message %s: %w", id, err)
	}
	return &r, nil
}

// SetInternetMessageID stores the draft's internet message id and marks
// the record drafted.
func (s *Store) SetInternetMessageID(ctx context.Context, id, internetMessageID string) error {
	return s.update(ctx, id, `
		UPDATE outbound_messages
		SET internet_message_id = $2, status = 'drafted', updated_at = NOW()
		WHERE id = $1
	`, internetMessageID)
}

// MarkSent marks a record sent and clears any previous error.
func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE outbound_messages
		SET status = 'sent', error = '', updated_at = NOW()
		WHERE id = $1
	`)
}

// MarkFailed marks a record failed with the error that stopped it.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, id, `
		UPDATE outbound_messages
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1
	`, msg)
}

// Recorder returns a hook that stores the internet message id on the
// record with the given id.
func (s *Store) Recorder(id string) transport.Recorder {
	return transport.RecorderFunc(func(ctx context.Context, internetMessageID string) error {
		return s.SetInternetMessageID(ctx, id, internetMessageID)
	})
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) update(ctx context.Context, id, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update outbound message %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
