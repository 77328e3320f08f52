package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"quicklaunch/internal/config"
	"quicklaunch/internal/logging"
	"quicklaunch/internal/ratelimit"
)

const (
	OpSearch = "search"
	OpChat   = "chat"
)

// Gateway issues search and chat requests to the remote language model,
// retrying failed attempts with a fixed delay. Each operation has at most
// one attempt in flight.
type Gateway struct {
	transport      Transport
	retry          RetryConfig
	limiter        *ratelimit.Limiter
	statusCallback StatusCallback
	sleep          func(ctx context.Context, d time.Duration) error

	searchMu sync.Mutex
	chatMu   sync.Mutex
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(g *Gateway) { g.retry = rc }
}

// WithRateLimiter paces attempts through limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithStatusCallback sets the callback for status updates during operations.
func WithStatusCallback(cb StatusCallback) Option {
	return func(g *Gateway) { g.statusCallback = cb }
}

// NewGateway creates a gateway over transport.
func NewGateway(transport Transport, opts ...Option) *Gateway {
	g := &Gateway{
		transport:      transport,
		retry:          DefaultRetryConfig(),
		statusCallback: &DefaultStatusCallback{},
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGatewayFromConfig builds a gateway with the transport and limits
// selected by cfg.
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Gateway, error) {
	var transport Transport
	switch cfg.API.Transport {
	case config.TransportGenai:
		t, err := NewGenaiTransport(ctx, cfg.API.BaseURL, cfg.API.Model, cfg.API.APIKey)
		if err != nil {
			return nil, err
		}
		transport = t
	case config.TransportHTTP, "":
		transport = NewHTTPTransport(cfg.API.BaseURL, cfg.API.Model, cfg.API.APIKey, cfg.API.Retry.HTTPTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.API.Transport)
	}

	base := []Option{WithRetryConfig(RetryConfigFrom(cfg.API.Retry))}
	if cfg.RateLimit.Enabled {
		base = append(base, WithRateLimiter(ratelimit.NewLimiter(ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.BurstSize,
		})))
	}
	return NewGateway(transport, append(base, opts...)...), nil
}

// RateLimitStats reports how attempts have been paced. It is zero when no
// limiter is configured.
func (g *Gateway) RateLimitStats() ratelimit.Stats { return g.limiter.Stats() }

// SearchApplications asks the model which of candidateNames match query.
// The returned names are whatever the model selected; callers intersect
// them with their own items.
func (g *Gateway) SearchApplications(ctx context.Context, query string, candidateNames []string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	g.searchMu.Lock()
	defer g.searchMu.Unlock()

	body, err := encodeRequest(SearchPrompt(query, candidateNames), mimeJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	var apps []string
	err = g.run(ctx, OpSearch, body, func(reply *Reply) error {
		text, err := replyText(reply.Body)
		if err != nil {
			return err
		}
		apps, err = decodeSearchResult(text, reply.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// SendChatMessage asks the model for app recommendations and returns the
// free-form reply text.
func (g *Gateway) SendChatMessage(ctx context.Context, message string) (string, error) {
	g.chatMu.Lock()
	defer g.chatMu.Unlock()

	body, err := encodeRequest(ChatPrompt(message), "")
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	var text string
	err = g.run(ctx, OpChat, body, func(reply *Reply) error {
		t, err := replyText(reply.Body)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// run drives one operation through Attempting -> (Retrying -> Attempting)*
// -> Succeeded | Failed. parse handles replies that passed transport
// classification and returns an *attemptError on failure.
func (g *Gateway) run(ctx context.Context, op string, body []byte, parse func(*Reply) error) error {
	maxAttempts := g.retry.MaxAttempts()
	var last *attemptError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.retry.RetryDelay
			g.statusCallback.OnStateChange(op, StateRetrying, attempt)
			g.statusCallback.OnRetry(attempt-1, g.retry.MaxRetries, delay, shortReason(last))
			logging.Info("retrying request", "op", op, "attempt", attempt, "delay", delay)

			if err := g.sleep(ctx, delay); err != nil {
				g.statusCallback.OnStateChange(op, StateFailed, attempt-1)
				return err
			}
		}

		g.statusCallback.OnStateChange(op, StateAttempting, attempt)
		if err := g.limiter.Wait(ctx); err != nil {
			g.statusCallback.OnStateChange(op, StateFailed, attempt)
			return fmt.Errorf("rate limit: %w", err)
		}

		last = g.attempt(ctx, body, parse)
		if last == nil {
			g.statusCallback.OnStateChange(op, StateSucceeded, attempt)
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			g.statusCallback.OnStateChange(op, StateFailed, attempt)
			return ctxErr
		}

		logging.Warn("request attempt failed", "op", op, "attempt", attempt, "error", last.Error())
	}

	g.statusCallback.OnStateChange(op, StateFailed, maxAttempts)
	return &GatewayError{
		Op:         op,
		Kind:       last.kind,
		Attempts:   maxAttempts,
		Diagnostic: last.diagnostic,
		Err:        last.err,
	}
}

// attempt performs a single request and classifies its outcome.
func (g *Gateway) attempt(ctx context.Context, body []byte, parse func(*Reply) error) *attemptError {
	reply, err := g.transport.Post(ctx, body)
	if err != nil {
		return &attemptError{kind: ErrTransport, diagnostic: err.Error(), err: err}
	}
	if reply == nil {
		return &attemptError{kind: ErrTransport, err: errors.New("no response")}
	}
	if reply.StatusCode >= http.StatusInternalServerError {
		return &attemptError{
			kind:       ErrServer,
			diagnostic: serverDiagnostic(reply),
			err:        &APIError{StatusCode: reply.StatusCode, Message: http.StatusText(reply.StatusCode)},
		}
	}

	if err := parse(reply); err != nil {
		var ae *attemptError
		if errors.As(err, &ae) {
			return ae
		}
		return &attemptError{kind: ErrDecode, diagnostic: rawDiagnostic(reply.Body), err: err}
	}
	return nil
}

// serverDiagnostic prefers the remote error message over the raw body.
func serverDiagnostic(reply *Reply) string {
	if _, err := replyText(reply.Body); err != nil {
		var ae *attemptError
		if errors.As(err, &ae) && errors.Is(ae.kind, ErrRemote) && ae.diagnostic != "" {
			return ae.diagnostic
		}
	}
	return rawDiagnostic(reply.Body)
}

func shortReason(last *attemptError) string {
	if last == nil {
		return "API error"
	}
	reason := last.Error()
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "overloaded"):
		return "overloaded"
	case errors.Is(last.kind, ErrTransport):
		return "connection error"
	case len(reason) > 50:
		return reason[:47] + "..."
	}
	return reason
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
