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

// Package queue moves outbound jobs through a Redis list. Producers LPUSH
// and workers BRPOP, so jobs are consumed in FIFO order.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/graphmail/internal/models"
)

// Publisher pushes outbound jobs onto a Redis list.
type Publisher struct {
	rdb       redis.Cmdable
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb redis.Cmdable, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// Publish assigns the job an id and enqueue time when unset, then pushes it.
// It returns the job id.
func (p *Publisher) Publish(ctx context.Context, job *models.OutboundJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal outbound job: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, data).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("queued outbound message",
		"job_id", job.ID,
		"tenant", job.TenantID,
		"queue", p.queueName,
	)

	return job.ID, nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// Consumer pops outbound jobs from a Redis list.
type Consumer struct {
	rdb       redis.Cmdable
	queueName string
}

// NewConsumer creates a consumer reading the specified queue.
func NewConsumer(rdb redis.Cmdable, queueName string) *Consumer {
	return &Consumer{
		rdb:       rdb,
		queueName: queueName,
	}
}

// Next blocks up to wait for a job. It returns nil, nil when the wait
// elapses with the queue empty.
func (c *Consumer) Next(ctx context.Context, wait time.Duration) (*models.OutboundJob, error) {
	res, err := c.rdb.BRPop(ctx, wait, c.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis BRPOP: %w", err)
	}

	// BRPOP returns [key, value].
	var job models.OutboundJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode outbound job: %w", err)
	}
	return &job, nil
}
