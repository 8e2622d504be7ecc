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

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, server *httptest.Server, cache *mockCache) *Client {
	t.Helper()
	c, err := NewClient(Config{
		ClientID:     "foo_client_id",
		ClientSecret: "foo_client_secret",
		Cache:        cache,
		BaseURL:      server.URL + "/v1.0",
		LoginURL:     server.URL,
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func cachedToken(tenantID, token string) *mockCache {
	cache := newMockCache()
	cache.values[TokenCacheKey(tenantID)] = token
	return cache
}

// TestNewClient_MissingCredentials verifies credentials are validated at
// construction.
func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name:      "client id",
			cfg:       Config{ClientSecret: "s", Cache: newMockCache()},
			wantField: FieldClientID,
		},
		{
			name:      "client secret",
			cfg:       Config{ClientID: "c", Cache: newMockCache()},
			wantField: FieldClientSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			var cfgErr *ConfigurationMissing
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigurationMissing", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

// TestConfigurationMissing_Message verifies the user-facing message.
func TestConfigurationMissing_Message(t *testing.T) {
	err := &ConfigurationMissing{Field: FieldClientID}
	if err.Error() != "The client id is missing from the configuration file." {
		t.Errorf("message = %q", err.Error())
	}
}

// TestDraft_RequestShape verifies URL, auth and Prefer headers, and decoding.
func TestDraft_RequestShape(t *testing.T) {
	var tokenCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/foo_tenant_id/oauth2/v2.0/token" {
			tokenCalls++
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1.0/users/taylor@laravel.com/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer foo_access_token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Prefer"); got != `IdType="ImmutableId"` {
			t.Errorf("Prefer = %q", got)
		}

		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if msg.Subject != "Dev Test" {
			t.Errorf("subject = %q", msg.Subject)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"AAMkAD=","internetMessageId":"<abc@example.com>"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, cachedToken("foo_tenant_id", "foo_access_token"))

	draft, err := c.Draft(context.Background(), "foo_tenant_id", "taylor@laravel.com", &Message{Subject: "Dev Test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.ID != "AAMkAD=" {
		t.Errorf("id = %q", draft.ID)
	}
	if draft.InternetMessageID != "<abc@example.com>" {
		t.Errorf("internetMessageId = %q", draft.InternetMessageID)
	}
	if tokenCalls != 0 {
		t.Errorf("token endpoint calls = %d, want 0 with a cached token", tokenCalls)
	}
}

// TestDraft_MissingID verifies a 2xx response without an id is a ProtocolError.
func TestDraft_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"internetMessageId":"<abc@example.com>"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, cachedToken("t1", "tok"))

	_, err := c.Draft(context.Background(), "t1", "a@example.com", &Message{})

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
	if protoErr.Field != "id" {
		t.Errorf("field = %q, want id", protoErr.Field)
	}
}

// TestSend_EmptyBody verifies the send call posts no body to the draft id.
func TestSend_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/users/taylor@laravel.com/messages/AAMkAD=/send" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("body = %q, want empty", body)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(t, server, cachedToken("t1", "tok"))

	if err := c.Send(context.Background(), "t1", "taylor@laravel.com", "AAMkAD="); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestSendMail_WrapsMessage verifies the sendMail envelope.
func TestSendMail_WrapsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/users/taylor@laravel.com/sendMail" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if string(body["saveToSentItems"]) != "false" {
			t.Errorf("saveToSentItems = %s, want false", body["saveToSentItems"])
		}
		if _, ok := body["message"]; !ok {
			t.Error("expected message key")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(t, server, cachedToken("t1", "tok"))

	if err := c.SendMail(context.Background(), "t1", "taylor@laravel.com", &Message{Subject: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPost_HTTPError verifies non-2xx Graph responses carry status and body.
func TestPost_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":"ApplicationThrottled"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, cachedToken("t1", "tok"))

	err := c.Send(context.Background(), "t1", "a@example.com", "id-1")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests || !httpErr.Throttled() {
		t.Errorf("status = %d, want 429", httpErr.StatusCode)
	}
	if httpErr.Body != `{"error":{"code":"ApplicationThrottled"}}` {
		t.Errorf("body = %q", httpErr.Body)
	}
}

// TestPost_FetchesTokenWhenNotCached verifies the token request precedes the
// Graph call and the fresh token is used as bearer.
func TestPost_FetchesTokenWhenNotCached(t *testing.T) {
	var order []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, r.URL.Path)
		if r.URL.Path == "/t1/oauth2/v2.0/token" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer"}`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(t, server, newMockCache())

	if err := c.SendMail(context.Background(), "t1", "a@example.com", &Message{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "/t1/oauth2/v2.0/token" {
		t.Errorf("request order = %v", order)
	}
}
