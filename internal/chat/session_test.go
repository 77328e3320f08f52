package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []string
	block   chan struct{}
}

func (f *fakeChatter) SendChatMessage(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, message)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", nil
}

func (f *fakeChatter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestSession(c Chatter, opts ...Option) *Session {
	return NewSession(c, append([]Option{WithTypeInterval(time.Millisecond)}, opts...)...)
}

func TestGreetingSeedsTranscript(t *testing.T) {
	s := newTestSession(&fakeChatter{}, WithGreeting("Hello! What do you need?"))
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].FromUser)
	assert.Equal(t, "Hello! What do you need?", msgs[0].Text)
}

func TestSendTurnRevealsReply(t *testing.T) {
	c := &fakeChatter{replies: []string{"Try Préview."}}
	s := newTestSession(c)

	require.NoError(t, s.SendTurn(context.Background(), "  pdf viewer  "))
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].FromUser)
	assert.Equal(t, "pdf viewer", msgs[0].Text)
	assert.False(t, msgs[1].FromUser)
	assert.Equal(t, "Try Préview.", msgs[1].Text)
	assert.False(t, s.Awaiting())
	assert.False(t, s.CanRetry())
	assert.Equal(t, []string{"pdf viewer"}, c.Calls())
}

func TestRevealIsIncremental(t *testing.T) {
	c := &fakeChatter{replies: []string{"abcdef"}}
	s := NewSession(c, WithTypeInterval(5*time.Millisecond))

	var mu sync.Mutex
	var seen []string
	s.SetChangeHandler(func() {
		msgs := s.Messages()
		mu.Lock()
		seen = append(seen, msgs[len(msgs)-1].Text)
		mu.Unlock()
	})

	require.NoError(t, s.SendTurn(context.Background(), "hi"))
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "")
	assert.Contains(t, seen, "abc")
	assert.Equal(t, "abcdef", seen[len(seen)-1])
}

func TestSendTurnRejectsEmptyAndConcurrent(t *testing.T) {
	c := &fakeChatter{replies: []string{"ok"}, block: make(chan struct{})}
	s := newTestSession(c)

	assert.ErrorIs(t, s.SendTurn(context.Background(), "   "), ErrEmptyMessage)
	assert.Empty(t, s.Messages())

	require.NoError(t, s.SendTurn(context.Background(), "first"))
	assert.True(t, s.Awaiting())
	assert.ErrorIs(t, s.SendTurn(context.Background(), "second"), ErrTurnInFlight)

	close(c.block)
	s.Wait()
	assert.Len(t, s.Messages(), 2)
	assert.Equal(t, []string{"first"}, c.Calls())
}

func TestFailedTurnShowsMessageAndRetries(t *testing.T) {
	c := &fakeChatter{
		errs:    []error{errors.New("dial tcp: no route to host"), nil},
		replies: []string{"", "Use Mail."},
	}
	s := newTestSession(c)

	require.NoError(t, s.SendTurn(context.Background(), "email"))
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, FailureText, msgs[1].Text)
	assert.True(t, s.CanRetry())

	require.NoError(t, s.RetryLastTurn(context.Background()))
	s.Wait()

	msgs = s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "email", msgs[0].Text)
	assert.Equal(t, "email", msgs[1].Text)
	assert.True(t, msgs[1].FromUser)
	assert.Equal(t, "Use Mail.", msgs[2].Text)
	assert.False(t, s.CanRetry())
	assert.Equal(t, []string{"email", "email"}, c.Calls())
}

func TestRetryResendsUserText(t *testing.T) {
	c := &fakeChatter{errs: []error{errors.New("boom"), errors.New("boom"), nil}, replies: []string{"", "", "ok"}}
	s := newTestSession(c, WithGreeting("hi"))

	require.NoError(t, s.SendTurn(context.Background(), "notes"))
	s.Wait()
	require.NoError(t, s.RetryLastTurn(context.Background()))
	s.Wait()
	require.NoError(t, s.RetryLastTurn(context.Background()))
	s.Wait()

	var user int
	for _, m := range s.Messages() {
		if m.FromUser {
			user++
		}
	}
	// Each retry re-sends the text as a new user message after dropping the
	// failed reply, so the transcript grows by one user message per retry.
	assert.Equal(t, 3, user)
	msgs := s.Messages()
	assert.Equal(t, "ok", msgs[len(msgs)-1].Text)
}

func TestRetryRacingSendKeepsFailedTurn(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := &fakeChatter{errs: []error{errors.New("boom")}}
		s := newTestSession(c)
		require.NoError(t, s.SendTurn(context.Background(), "notes"))
		s.Wait()

		release := make(chan struct{})
		c.mu.Lock()
		c.block = release
		c.mu.Unlock()

		var wg sync.WaitGroup
		var retryErr, sendErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			retryErr = s.RetryLastTurn(context.Background())
		}()
		go func() {
			defer wg.Done()
			sendErr = s.SendTurn(context.Background(), "mail")
		}()
		wg.Wait()

		if retryErr == nil {
			assert.ErrorIs(t, sendErr, ErrTurnInFlight)
		} else {
			assert.ErrorIs(t, retryErr, ErrTurnInFlight)
			assert.NoError(t, sendErr)
			// The failed reply is still on screen.
			assert.Equal(t, FailureText, s.Messages()[1].Text)
		}

		close(release)
		s.Wait()
		s.Close()
	}
}

func TestRetryAfterCloseFails(t *testing.T) {
	c := &fakeChatter{errs: []error{errors.New("boom")}}
	s := newTestSession(c)
	require.NoError(t, s.SendTurn(context.Background(), "notes"))
	s.Wait()
	s.Close()

	assert.ErrorIs(t, s.RetryLastTurn(context.Background()), ErrSessionClosed)
	assert.Len(t, s.Messages(), 2)
}

func TestOverloadedFailureText(t *testing.T) {
	c := &fakeChatter{errs: []error{errors.New("503: The model is overloaded")}}
	s := newTestSession(c)

	require.NoError(t, s.SendTurn(context.Background(), "music"))
	s.Wait()

	msgs := s.Messages()
	assert.Equal(t, OverloadedText, msgs[len(msgs)-1].Text)
}

func TestRetryWithoutFailure(t *testing.T) {
	s := newTestSession(&fakeChatter{})
	assert.ErrorIs(t, s.RetryLastTurn(context.Background()), ErrNothingToRetry)
}

func TestResetDiscardsPendingTurn(t *testing.T) {
	c := &fakeChatter{replies: []string{"late reply"}, block: make(chan struct{})}
	s := newTestSession(c, WithGreeting("hello"))

	require.NoError(t, s.SendTurn(context.Background(), "calendar"))
	s.Reset()
	close(c.block)
	s.Wait()

	assert.Empty(t, s.Messages())
	assert.False(t, s.Awaiting())
	assert.False(t, s.CanRetry())
}

func TestCloseStopsPendingTurn(t *testing.T) {
	c := &fakeChatter{block: make(chan struct{})}
	s := newTestSession(c)

	require.NoError(t, s.SendTurn(context.Background(), "maps"))
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.ErrorIs(t, s.SendTurn(context.Background(), "again"), ErrSessionClosed)
}

func TestChangeHandlerPanicIsRecovered(t *testing.T) {
	s := newTestSession(&fakeChatter{replies: []string{"x"}})
	s.SetChangeHandler(func() { panic("boom") })

	require.NoError(t, s.SendTurn(context.Background(), "hi"))
	s.Wait()
	assert.Equal(t, "x", s.Messages()[1].Text)
}
