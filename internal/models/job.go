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

// Package models defines the data structures shared across the mail service.
package models

import (
	"time"

	"github.com/bcem/graphmail/internal/mail"
)

// OutboundJob is a message queued for delivery through Graph.
//
// This struct's JSON serialisation is the queue wire format; producers
// other than the API may push it directly.
type OutboundJob struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenant_id,omitempty"`
	Direct     bool         `json:"direct,omitempty"`
	Message    mail.Message `json:"message"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}
