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

// Package dedup stops a redelivered outbound job from sending its message
// a second time. Jobs reach the queue more than once when an API client
// retries a POST whose 202 it never saw, or when a worker crashes after the
// Graph send but before it acknowledged the job. The first worker to claim
// a job id delivers it; later copies inside the claim window are dropped.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is the claim window. Redeliveries arriving after it has
	// passed are sent again.
	DefaultTTL = 24 * time.Hour

	claimPrefix = "graphmail:job:"
)

// ClaimKey returns the Redis key recording the claim on a job id.
func ClaimKey(jobID string) string {
	return claimPrefix + jobID
}

// Filter records job claims in Redis.
type Filter struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewFilter returns a Filter whose claims last DefaultTTL.
func NewFilter(rdb redis.Cmdable) *Filter {
	return &Filter{rdb: rdb, ttl: DefaultTTL}
}

// IsNew claims jobID and reports whether this call won the claim. A false
// result means another delivery of the same job already claimed it and the
// caller must not send. The claim stores the time it was taken.
func (f *Filter) IsNew(ctx context.Context, jobID string) (bool, error) {
	claimed, err := f.rdb.SetNX(ctx, ClaimKey(jobID), time.Now().UTC().Format(time.RFC3339), f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	return claimed, nil
}
