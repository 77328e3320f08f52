package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicklaunch/internal/ratelimit"
)

// scriptedTransport replays a fixed sequence of outcomes.
type scriptedTransport struct {
	mu     sync.Mutex
	steps  []func() (*Reply, error)
	calls  int
	bodies [][]byte
}

func (s *scriptedTransport) Post(ctx context.Context, body []byte) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i]()
}

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func ok(text string) func() (*Reply, error) {
	return func() (*Reply, error) {
		return &Reply{StatusCode: 200, Body: textEnvelope(text)}, nil
	}
}

func status(code int, body string) func() (*Reply, error) {
	return func() (*Reply, error) {
		return &Reply{StatusCode: code, Body: []byte(body)}, nil
	}
}

func fail(err error) func() (*Reply, error) {
	return func() (*Reply, error) { return nil, err }
}

func textEnvelope(text string) []byte {
	data, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return data
}

type recordingCallback struct {
	states  []AttemptState
	retries int
}

func (r *recordingCallback) OnStateChange(op string, state AttemptState, attempt int) {
	r.states = append(r.states, state)
}

func (r *recordingCallback) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
	r.retries++
}

func newTestGateway(tr Transport, opts ...Option) (*Gateway, *[]time.Duration) {
	g := NewGateway(tr, opts...)
	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return g, &delays
}

func TestSearchApplicationsOverHTTP(t *testing.T) {
	var got generateRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write(textEnvelope(`{"apps":["Mail"]}`))
	}))
	defer srv.Close()

	g := NewGateway(NewHTTPTransport(srv.URL, "gemini-1.5-flash", "secret", time.Second))
	apps, err := g.SearchApplications(context.Background(), "email", []string{"Safari", "Mail", "Notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mail"}, apps)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
	require.Len(t, got.Contents, 1)
	prompt := got.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"email"`)
	assert.Contains(t, prompt, "Safari, Mail, Notes")
	assert.Contains(t, prompt, `{"apps":`)
}

func TestSearchEmptyQuerySkipsRequest(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){ok(`{"apps":[]}`)}}
	g, _ := newTestGateway(tr)

	apps, err := g.SearchApplications(context.Background(), "   ", []string{"Mail"})
	require.NoError(t, err)
	assert.Nil(t, apps)
	assert.Zero(t, tr.Calls())
}

func TestTransportFailureThenSuccess(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){
		fail(errors.New("connection refused")),
		ok(`{"apps":["Notes"]}`),
	}}
	cb := &recordingCallback{}
	g, delays := newTestGateway(tr, WithStatusCallback(cb))

	apps, err := g.SearchApplications(context.Background(), "write", []string{"Notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, apps)
	assert.Equal(t, 2, tr.Calls())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, *delays)
	assert.Equal(t, []AttemptState{StateAttempting, StateRetrying, StateAttempting, StateSucceeded}, cb.states)
	assert.Equal(t, 1, cb.retries)
}

func TestServerFailuresExhaustBudget(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){status(503, "Service Unavailable")}}
	cb := &recordingCallback{}
	g, delays := newTestGateway(tr, WithStatusCallback(cb))

	_, err := g.SearchApplications(context.Background(), "music", []string{"Music"})
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, 4, gwErr.Attempts)
	assert.Equal(t, "Service Unavailable", gwErr.Diagnostic)
	assert.Equal(t, OpSearch, gwErr.Op)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)

	assert.Equal(t, 4, tr.Calls())
	assert.Len(t, *delays, 3)
	assert.Equal(t, StateFailed, cb.states[len(cb.states)-1])

	// Nothing keeps retrying in the background.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 4, tr.Calls())
}

func TestRemoteErrorIsRetriedAndSurfaced(t *testing.T) {
	body := `{"error":{"code":429,"message":"The model is overloaded. Please try again later.","status":"UNAVAILABLE"}}`
	tr := &scriptedTransport{steps: []func() (*Reply, error){status(429, body)}}
	g, _ := newTestGateway(tr, WithRetryConfig(RetryConfig{MaxRetries: 1, RetryDelay: time.Millisecond}))

	_, err := g.SendChatMessage(context.Background(), "photo editor")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.True(t, IsOverloaded(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, tr.Calls())
}

func TestInnerDocumentDecodeFailureIsRetried(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){
		ok("Sure! Here are some apps: Mail"),
		ok(`{"apps":["Mail","Notes"]}`),
	}}
	g, _ := newTestGateway(tr)

	apps, err := g.SearchApplications(context.Background(), "write", []string{"Mail", "Notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mail", "Notes"}, apps)
	assert.Equal(t, 2, tr.Calls())
}

func TestInnerDocumentShapeMismatchIsRetried(t *testing.T) {
	tests := []struct {
		name  string
		inner string
	}{
		{"empty object", `{}`},
		{"wrong key", `{"results":["Mail"]}`},
		{"null apps", `{"apps":null}`},
		{"trailing text", `{"apps":["Notes"]} hope this helps`},
		{"second document", `{"apps":["Notes"]}{"apps":[]}`},
		{"apps not a list", `{"apps":"Mail"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{steps: []func() (*Reply, error){
				ok(tt.inner),
				ok(`{"apps":["Mail"]}`),
			}}
			cb := &recordingCallback{}
			g, delays := newTestGateway(tr, WithStatusCallback(cb))

			apps, err := g.SearchApplications(context.Background(), "write", []string{"Mail", "Notes"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Mail"}, apps)
			assert.Equal(t, 2, tr.Calls())
			assert.Len(t, *delays, 1)
			assert.Equal(t, 1, cb.retries)
		})
	}
}

func TestInnerDocumentShapeMismatchExhaustsAsDecodeFailure(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){ok(`{"results":["Mail"]}`)}}
	g, _ := newTestGateway(tr)

	_, err := g.SearchApplications(context.Background(), "write", []string{"Mail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 4, tr.Calls())
}

func TestEmptyAppsListIsSuccess(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){ok(`{"apps":[]}`)}}
	g, _ := newTestGateway(tr)

	apps, err := g.SearchApplications(context.Background(), "juggling", []string{"Mail"})
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
	assert.Equal(t, 1, tr.Calls())
}

func TestRateLimitStatsCountAttempts(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){
		fail(errors.New("connection refused")),
		ok(`{"apps":["Mail"]}`),
	}}
	limiter := ratelimit.NewLimiter(ratelimit.Config{Enabled: true, RequestsPerMinute: 600, BurstSize: 5})
	g, _ := newTestGateway(tr, WithRateLimiter(limiter))

	_, err := g.SearchApplications(context.Background(), "mail", []string{"Mail"})
	require.NoError(t, err)

	stats := g.RateLimitStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Zero(t, stats.BlockedRequests)

	plain, _ := newTestGateway(tr)
	assert.Equal(t, ratelimit.Stats{}, plain.RateLimitStats())
}

func TestDecodeFailureDiagnosticIsRawBody(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){status(200, "<html>oops</html>")}}
	g, _ := newTestGateway(tr, WithRetryConfig(RetryConfig{MaxRetries: 0, RetryDelay: time.Millisecond}))

	_, err := g.SendChatMessage(context.Background(), "hi")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, "<html>oops</html>", gwErr.Diagnostic)
	assert.Equal(t, 1, gwErr.Attempts)
}

func TestTransportExhaustionKeepsUnderlyingError(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	tr := &scriptedTransport{steps: []func() (*Reply, error){fail(cause)}}
	g, _ := newTestGateway(tr, WithRetryConfig(RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond}))

	_, err := g.SendChatMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, tr.Calls())
}

func TestSendChatMessage(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){ok("Try **Pixelmator Pro**.")}}
	g, _ := newTestGateway(tr)

	reply, err := g.SendChatMessage(context.Background(), "image editor")
	require.NoError(t, err)
	assert.Equal(t, "Try **Pixelmator Pro**.", reply)

	var req map[string]any
	require.NoError(t, json.Unmarshal(tr.bodies[0], &req))
	_, hasConfig := req["generationConfig"]
	assert.False(t, hasConfig)
	assert.True(t, strings.Contains(string(tr.bodies[0]), "image editor"))
}

func TestCancelledDuringBackoff(t *testing.T) {
	tr := &scriptedTransport{steps: []func() (*Reply, error){status(500, "")}}
	g := NewGateway(tr, WithRetryConfig(RetryConfig{MaxRetries: 3, RetryDelay: time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.SendChatMessage(ctx, "hi")
		done <- err
	}()

	require.Eventually(t, func() bool { return tr.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("gateway did not stop after cancellation")
	}
	assert.Equal(t, 1, tr.Calls())
}

func TestIsOverloaded(t *testing.T) {
	assert.False(t, IsOverloaded(nil))
	assert.True(t, IsOverloaded(errors.New("Model OVERLOADED")))
	assert.False(t, IsOverloaded(errors.New("bad request")))
}
