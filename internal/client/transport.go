package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quicklaunch/internal/config"
)

// Reply is a response received from the remote endpoint.
type Reply struct {
	StatusCode int
	Body       []byte
}

// Transport delivers a generateContent request body to the remote endpoint.
// A non-nil error means no response was received.
type Transport interface {
	Post(ctx context.Context, body []byte) (*Reply, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, body []byte) (*Reply, error)

// Post calls f.
func (f TransportFunc) Post(ctx context.Context, body []byte) (*Reply, error) {
	return f(ctx, body)
}

// HTTPTransport posts requests to the Generative Language REST API.
type HTTPTransport struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTransport creates a REST transport for model. An empty baseURL
// selects the public endpoint.
func NewHTTPTransport(baseURL, model, apiKey string, timeout time.Duration) *HTTPTransport {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(baseURL, "/"), url.PathEscape(model))
	return &HTTPTransport{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the request URL without credentials.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Post sends body and returns the raw reply.
func (t *HTTPTransport) Post(ctx context.Context, body []byte) (*Reply, error) {
	target := t.endpoint
	if t.apiKey != "" {
		target += "?key=" + url.QueryEscape(t.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeJSON)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// Drop the query string so the key never reaches logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, &url.Error{Op: urlErr.Op, URL: t.endpoint, Err: urlErr.Err}
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Reply{StatusCode: resp.StatusCode, Body: data}, nil
}
