// Package llmhttp provides shared HTTP plumbing for the LLM backend
// adapters: per-endpoint client selection and request construction.
package llmhttp

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
)

// Request timeouts come from the caller's context (the failover invoker
// bounds each attempt), so the clients themselves carry none.
var (
	secureClient   = &http.Client{}
	insecureClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // G402: admin-configured verify_tls=false for self-hosted endpoints
		},
	}
)

// Client returns the HTTP client matching the endpoint's TLS policy.
func Client(verifyTLS bool) *http.Client {
	if verifyTLS {
		return secureClient
	}
	return insecureClient
}

// BaseURL normalizes an endpoint URL for path joining.
func BaseURL(raw string) string {
	return strings.TrimRight(raw, "/")
}

// NewJSONRequest builds a POST request with a JSON body and optional
// bearer credential.
func NewJSONRequest(ctx context.Context, url string, body io.Reader, bearer string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}
