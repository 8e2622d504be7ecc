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

// Package graph is a small Microsoft Graph mail client. It creates drafts,
// sends drafts, and sends messages directly, authenticating with
// client-credentials tokens cached per tenant.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// DefaultTimeout bounds a single HTTP call when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Config holds the client credentials and endpoints.
type Config struct {
	ClientID       string
	ClientSecret   string
	AccessTokenTTL time.Duration

	// Cache stores access tokens. Required.
	Cache TokenCache

	// Optional overrides.
	BaseURL    string
	LoginURL   string
	HTTPClient *http.Client
}

// Client talks to the Graph mail endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenProvider
}

// NewClient validates the credentials and creates a client. No network
// call is made here.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, &ConfigurationMissing{Field: FieldClientID}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigurationMissing{Field: FieldClientSecret}
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("graph client: token cache is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     NewTokenProvider(cfg.ClientID, cfg.ClientSecret, cfg.LoginURL, cfg.AccessTokenTTL, cfg.Cache, httpClient),
	}, nil
}

// AccessToken returns the bearer token used for the given tenant.
func (c *Client) AccessToken(ctx context.Context, tenantID string) (string, error) {
	return c.tokens.AccessToken(ctx, tenantID)
}

// Draft creates a draft message in the sender's mailbox and returns its
// immutable id and internet message id.
func (c *Client) Draft(ctx context.Context, tenantID, from string, msg *Message) (*DraftResponse, error) {
	path := fmt.Sprintf("/users/%s/messages", url.PathEscape(from))

	body, err := c.post(ctx, tenantID, path, msg)
	if err != nil {
		return nil, err
	}

	var draft DraftResponse
	if err := json.Unmarshal(body, &draft); err != nil {
		return nil, fmt.Errorf("decode draft response: %w", err)
	}
	if draft.ID == "" {
		return nil, &ProtocolError{Op: "create draft", Field: "id"}
	}
	if draft.InternetMessageID == "" {
		return nil, &ProtocolError{Op: "create draft", Field: "internetMessageId"}
	}

	return &draft, nil
}

// Send sends a previously created draft.
func (c *Client) Send(ctx context.Context, tenantID, from, messageID string) error {
	path := fmt.Sprintf("/users/%s/messages/%s/send", url.PathEscape(from), url.PathEscape(messageID))
	_, err := c.post(ctx, tenantID, path, nil)
	return err
}

// SendMail sends a message in one call without keeping a copy in Sent Items.
func (c *Client) SendMail(ctx context.Context, tenantID, from string, msg *Message) error {
	path := fmt.Sprintf("/users/%s/sendMail", url.PathEscape(from))
	_, err := c.post(ctx, tenantID, path, sendMailRequest{Message: msg, SaveToSentItems: false})
	return err
}

// post issues an authenticated POST and returns the response body.
func (c *Client) post(ctx context.Context, tenantID, path string, payload interface{}) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `IdType="ImmutableId"`)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("graph request failed",
			"tenant", tenantID,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, &HTTPError{
			Method:     http.MethodPost,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}
