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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultLoginURL is the Microsoft identity platform authority.
	DefaultLoginURL = "https://login.microsoftonline.com"

	// DefaultAccessTokenTTL matches the default token lifetime minus headroom.
	DefaultAccessTokenTTL = 3000 * time.Second

	graphScope = "https://graph.microsoft.com/.default"

	tokenCacheKeyPrefix = "microsoft-graph-api-access-token/"
)

// TokenCache stores access tokens keyed by tenant. Any key-value store with
// expiry can back it.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// TokenCacheKey returns the cache key holding the access token for a tenant.
func TokenCacheKey(tenantID string) string {
	return tokenCacheKeyPrefix + tenantID
}

// TokenProvider obtains client-credentials access tokens and caches them
// per tenant.
type TokenProvider struct {
	clientID     string
	clientSecret string
	loginURL     string
	ttl          time.Duration
	cache        TokenCache
	httpClient   *http.Client

	// group collapses concurrent fetches for the same tenant.
	group singleflight.Group
}

// NewTokenProvider creates a token provider. loginURL defaults to
// DefaultLoginURL and ttl to DefaultAccessTokenTTL when zero.
func NewTokenProvider(clientID, clientSecret, loginURL string, ttl time.Duration, cache TokenCache, httpClient *http.Client) *TokenProvider {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		loginURL:     strings.TrimRight(loginURL, "/"),
		ttl:          ttl,
		cache:        cache,
		httpClient:   httpClient,
	}
}

// TokenURL returns the v2.0 token endpoint for a tenant.
func (p *TokenProvider) TokenURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, tenantID)
}

// AccessToken returns a cached token for the tenant when one is present,
// otherwise it requests a new one and caches it.
func (p *TokenProvider) AccessToken(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", &ConfigurationMissing{Field: FieldTenantID}
	}

	key := TokenCacheKey(tenantID)

	token, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		// A broken cache must not block sending; fall through to a fresh fetch.
		slog.Warn("token cache read failed", "tenant", tenantID, "error", err)
	} else if ok {
		return token, nil
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (interface{}, error) {
		return p.fetch(fetchCtx, tenantID, key)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("wait for access token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *TokenProvider) fetch(ctx context.Context, tenantID, key string) (string, error) {
	creds := &clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		TokenURL:     p.TokenURL(tenantID),
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := creds.Token(ctx)
	if err != nil {
		return "", tokenError(creds.TokenURL, err)
	}

	ttl := p.ttl
	if !tok.Expiry.IsZero() {
		if remaining := time.Until(tok.Expiry); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
	}

	if err := p.cache.Set(ctx, key, tok.AccessToken, ttl); err != nil {
		slog.Warn("token cache write failed", "tenant", tenantID, "error", err)
	}

	slog.Info("obtained graph access token",
		"tenant", tenantID,
		"ttl", ttl,
	)

	return tok.AccessToken, nil
}

// tokenError maps oauth2 failures onto the package error taxonomy.
func tokenError(tokenURL string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &HTTPError{
			Method:     http.MethodPost,
			URL:        tokenURL,
			StatusCode: re.Response.StatusCode,
			Body:       string(re.Body),
		}
	}
	// x/oauth2 reports a 2xx response without a token as
	// "oauth2: server response missing access_token" and exports no
	// sentinel for it.
	if strings.Contains(err.Error(), "server response missing access_token") {
		return &ProtocolError{Op: "token request", Field: "access_token"}
	}
	return fmt.Errorf("fetch access token: %w", err)
}
