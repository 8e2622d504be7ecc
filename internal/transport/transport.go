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

// Package transport sends generic mail messages through Microsoft Graph.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcem/graphmail/internal/graph"
	"github.com/bcem/graphmail/internal/mail"
)

// DefaultTenantID is the multi-tenant authority used when none is configured.
const DefaultTenantID = "common"

// Scheme names the transport in logs and DSNs.
const Scheme = "microsoft+graph+api"

// Client is the subset of the Graph client the transport needs.
type Client interface {
	Draft(ctx context.Context, tenantID, from string, msg *graph.Message) (*graph.DraftResponse, error)
	Send(ctx context.Context, tenantID, from, messageID string) error
	SendMail(ctx context.Context, tenantID, from string, msg *graph.Message) error
}

// Recorder receives the internet message id of a draft before it is sent.
type Recorder interface {
	RecordMessageID(ctx context.Context, internetMessageID string) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, internetMessageID string) error

// RecordMessageID calls f.
func (f RecorderFunc) RecordMessageID(ctx context.Context, internetMessageID string) error {
	return f(ctx, internetMessageID)
}

// Result identifies a message sent through the draft flow.
type Result struct {
	MessageID         string
	InternetMessageID string
}

// Option configures a Transport.
type Option func(*Transport)

// WithTenantID sets the tenant the transport authenticates against.
func WithTenantID(id string) Option {
	return func(t *Transport) { t.tenantID = id }
}

// WithDefaultFrom sets the from address used for messages that carry none.
func WithDefaultFrom(addr mail.Address) Option {
	return func(t *Transport) { t.defaultFrom = addr }
}

// WithRecorder sets the hook called with each draft's internet message id.
func WithRecorder(r Recorder) Option {
	return func(t *Transport) { t.recorder = r }
}

// Transport converts messages to Graph payloads and dispatches them. A
// Transport is immutable; WithTenant and WithRecorder return copies.
type Transport struct {
	client      Client
	tenantID    string
	defaultFrom mail.Address
	recorder    Recorder
}

// New creates a transport bound to DefaultTenantID unless overridden.
func New(client Client, opts ...Option) *Transport {
	t := &Transport{
		client:   client,
		tenantID: DefaultTenantID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithTenant returns a copy of the transport bound to another tenant.
func (t *Transport) WithTenant(id string) *Transport {
	c := *t
	c.tenantID = id
	return &c
}

// WithRecorder returns a copy of the transport using the given recorder.
func (t *Transport) WithRecorder(r Recorder) *Transport {
	c := *t
	c.recorder = r
	return &c
}

// TenantID returns the tenant the transport is bound to.
func (t *Transport) TenantID() string {
	return t.tenantID
}

func (t *Transport) String() string {
	return Scheme + "://"
}

// Send delivers a message by creating a draft, recording its internet
// message id, and sending the draft.
func (t *Transport) Send(ctx context.Context, msg *mail.Message) (*Result, error) {
	msg, env, err := t.prepare(msg)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, msg, env)
}

// SendEnvelope is Send with an explicit envelope, e.g. to deliver Bcc
// recipients separately.
func (t *Transport) SendEnvelope(ctx context.Context, msg *mail.Message, env mail.Envelope) (*Result, error) {
	if t.tenantID == "" {
		return nil, &graph.ConfigurationMissing{Field: graph.FieldTenantID}
	}
	if env.Sender.Address == "" {
		return nil, &graph.ConfigurationMissing{Field: graph.FieldFromAddress}
	}
	return t.send(ctx, msg, env)
}

func (t *Transport) send(ctx context.Context, msg *mail.Message, env mail.Envelope) (*Result, error) {
	from := mailbox(msg, env)
	payload := BuildPayload(msg, env)

	draft, err := t.client.Draft(ctx, t.tenantID, from, payload)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	if t.recorder != nil {
		if err := t.recorder.RecordMessageID(ctx, draft.InternetMessageID); err != nil {
			return nil, fmt.Errorf("record message id: %w", err)
		}
	}

	if err := t.client.Send(ctx, t.tenantID, from, draft.ID); err != nil {
		return nil, fmt.Errorf("send draft: %w", err)
	}

	slog.Info("sent message",
		"tenant", t.tenantID,
		"from", from,
		"message_id", draft.InternetMessageID,
	)

	return &Result{MessageID: draft.ID, InternetMessageID: draft.InternetMessageID}, nil
}

// SendDirect delivers a message with a single sendMail call. No draft is
// kept and the recorder is not called.
func (t *Transport) SendDirect(ctx context.Context, msg *mail.Message) error {
	msg, env, err := t.prepare(msg)
	if err != nil {
		return err
	}

	from := mailbox(msg, env)
	if err := t.client.SendMail(ctx, t.tenantID, from, BuildPayload(msg, env)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	slog.Info("sent message directly", "tenant", t.tenantID, "from", from)
	return nil
}

// prepare validates the tenant, applies the default from address and
// derives the envelope. The caller's message is not modified.
func (t *Transport) prepare(msg *mail.Message) (*mail.Message, mail.Envelope, error) {
	if t.tenantID == "" {
		return nil, mail.Envelope{}, &graph.ConfigurationMissing{Field: graph.FieldTenantID}
	}

	if len(msg.From) == 0 || msg.From[0].Address == "" {
		if t.defaultFrom.Address == "" {
			return nil, mail.Envelope{}, &graph.ConfigurationMissing{Field: graph.FieldFromAddress}
		}
		c := *msg
		c.From = []mail.Address{t.defaultFrom}
		msg = &c
	}

	env, err := mail.EnvelopeFor(msg)
	if errors.Is(err, mail.ErrNoSender) {
		return nil, mail.Envelope{}, &graph.ConfigurationMissing{Field: graph.FieldFromAddress}
	}
	if err != nil {
		return nil, mail.Envelope{}, err
	}
	return msg, env, nil
}

// mailbox returns the user whose mailbox sends the message: the first From
// address, falling back to the envelope sender.
func mailbox(msg *mail.Message, env mail.Envelope) string {
	if len(msg.From) > 0 && msg.From[0].Address != "" {
		return msg.From[0].Address
	}
	return env.Sender.Address
}
