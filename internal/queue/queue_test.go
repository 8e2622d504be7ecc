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

package queue

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/bcem/graphmail/internal/mail"
	"github.com/bcem/graphmail/internal/models"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctr, err := tcredis.Run(t.Context(), "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(t.Context())
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opt)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPublishConsume(t *testing.T) {
	rdb := startRedis(t)
	pub := NewPublisher(rdb, "graphmail:test")
	con := NewConsumer(rdb, "graphmail:test")

	require.NoError(t, pub.Ping(t.Context()))

	first := &models.OutboundJob{
		TenantID: "foo_tenant_id",
		Message: mail.Message{
			From:    mail.Addresses("taylor@laravel.com"),
			To:      mail.Addresses("caleb@livewire.com"),
			Subject: "first",
		},
	}
	id, err := pub.Publish(t.Context(), first)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, first.ID)
	assert.False(t, first.EnqueuedAt.IsZero())

	_, err = pub.Publish(t.Context(), &models.OutboundJob{ID: "fixed", Direct: true, Message: mail.Message{Subject: "second"}})
	require.NoError(t, err)

	got, err := con.Next(t.Context(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "foo_tenant_id", got.TenantID)
	assert.Equal(t, "first", got.Message.Subject)
	assert.Equal(t, "caleb@livewire.com", got.Message.To[0].Address)

	got, err = con.Next(t.Context(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fixed", got.ID)
	assert.True(t, got.Direct)

	got, err = con.Next(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}
