package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"quicklaunch/internal/client"
	"quicklaunch/internal/config"
	"quicklaunch/internal/logging"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrTurnInFlight   = errors.New("a reply is still pending")
	ErrNothingToRetry = errors.New("no failed turn to retry")
	ErrSessionClosed  = errors.New("chat session is closed")
)

// Chatter sends one chat turn to the model. *client.Gateway implements it.
type Chatter interface {
	SendChatMessage(ctx context.Context, message string) (string, error)
}

// ChangeHandler is called after the transcript changed.
type ChangeHandler func()

type failedTurn struct {
	placeholderID string
	text          string
}

// Session is a chat transcript with at most one outstanding turn.
// Replies are revealed into their placeholder one rune per TypeInterval.
type Session struct {
	chatter      Chatter
	typeInterval time.Duration

	mu         sync.Mutex
	messages   []Message
	awaiting   bool
	lastFailed *failedTurn
	turn       uint64             // bumped by Reset to orphan pending turns
	cancel     context.CancelFunc // cancels the pending turn and its reveal
	onChange   ChangeHandler
	closed     bool
	wg         sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithTypeInterval sets the delay between revealed runes.
func WithTypeInterval(d time.Duration) Option {
	return func(s *Session) { s.typeInterval = d }
}

// WithGreeting seeds the transcript with an assistant message.
func WithGreeting(text string) Option {
	return func(s *Session) {
		if text != "" {
			s.messages = append(s.messages, newMessage(text, false))
		}
	}
}

// NewSession creates a chat session backed by chatter.
func NewSession(chatter Chatter, opts ...Option) *Session {
	s := &Session{
		chatter:      chatter,
		typeInterval: config.DefaultTypeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetChangeHandler sets the callback for transcript changes.
func (s *Session) SetChangeHandler(handler ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = handler
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Awaiting reports whether a turn is outstanding.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// CanRetry reports whether the last turn failed and may be retried.
func (s *Session) CanRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailed != nil && !s.awaiting
}

// SendTurn appends the user's message and an empty assistant placeholder,
// then asks the model in the background.
func (s *Session) SendTurn(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	err := s.sendTurnLocked(ctx, trimmed)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// RetryLastTurn drops the failed placeholder and sends its text again.
// No other turn can start in between.
func (s *Session) RetryLastTurn(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.awaiting {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	failed := s.lastFailed
	if failed == nil {
		s.mu.Unlock()
		return ErrNothingToRetry
	}
	s.removeLocked(failed.placeholderID)
	err := s.sendTurnLocked(ctx, failed.text)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// sendTurnLocked starts a turn for text. s.mu must be held.
func (s *Session) sendTurnLocked(ctx context.Context, text string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.awaiting {
		return ErrTurnInFlight
	}
	s.lastFailed = nil
	s.messages = append(s.messages, newMessage(text, true))
	placeholder := newMessage("", false)
	s.messages = append(s.messages, placeholder)
	s.awaiting = true

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	turn := s.turn
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer cancel()

		reply, err := s.chatter.SendChatMessage(turnCtx, text)
		if err != nil {
			s.fail(turn, placeholder.ID, text, err)
			return
		}
		s.reveal(turnCtx, turn, placeholder.ID, reply)
	}()
	return nil
}

// fail writes a user-facing error into the placeholder and remembers the turn.
func (s *Session) fail(turn uint64, placeholderID, text string, err error) {
	s.mu.Lock()
	if turn != s.turn {
		s.mu.Unlock()
		return
	}
	msg := FailureText
	if client.IsOverloaded(err) {
		msg = OverloadedText
	}
	logging.Warn("chat turn failed", "error", err)

	if i := s.indexLocked(placeholderID); i >= 0 {
		s.messages[i].Text = msg
	}
	s.lastFailed = &failedTurn{placeholderID: placeholderID, text: text}
	s.awaiting = false
	s.mu.Unlock()
	s.notify()
}

// reveal appends reply to the placeholder one rune per tick. It stops when
// the reply is complete, the placeholder is gone or ctx is cancelled.
func (s *Session) reveal(ctx context.Context, turn uint64, placeholderID, reply string) {
	runes := []rune(reply)
	interval := s.typeInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := 0
	for {
		s.mu.Lock()
		if turn != s.turn {
			s.mu.Unlock()
			return
		}
		i := s.indexLocked(placeholderID)
		if i < 0 || next >= len(runes) {
			s.awaiting = false
			s.mu.Unlock()
			s.notify()
			return
		}
		s.messages[i].Text += string(runes[next])
		next++
		s.mu.Unlock()
		s.notify()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.mu.Lock()
			if turn == s.turn {
				s.awaiting = false
			}
			s.mu.Unlock()
			return
		}
	}
}

// Reset cancels any pending turn and clears the transcript.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.turn++
	s.messages = nil
	s.awaiting = false
	s.lastFailed = nil
	s.mu.Unlock()
	s.notify()
}

// Wait blocks until no turn is running.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels any pending turn and waits for it to stop.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) indexLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) removeLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	handler := s.onChange
	s.mu.Unlock()
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("chat change handler panicked", "panic", r)
		}
	}()
	handler()
}
