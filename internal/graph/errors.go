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
	"fmt"
	"net/http"
)

// Configuration fields reported by ConfigurationMissing.
const (
	FieldTenantID     = "tenant id"
	FieldClientID     = "client id"
	FieldClientSecret = "client secret"
	FieldFromAddress  = "from address"
)

// ConfigurationMissing reports a required configuration value that is empty.
// It is always returned before any network call is attempted.
type ConfigurationMissing struct {
	Field string
}

func (e *ConfigurationMissing) Error() string {
	return fmt.Sprintf("The %s is missing from the configuration file.", e.Field)
}

// HTTPError is returned for any non-2xx response from the token endpoint
// or the Graph API.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Throttled reports whether Graph rejected the request with 429.
func (e *HTTPError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ProtocolError is returned when a 2xx response is missing a field the
// caller depends on.
type ProtocolError struct {
	Op    string
	Field string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: response missing %q", e.Op, e.Field)
}
