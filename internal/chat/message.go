package chat

import "github.com/google/uuid"

// Message is one entry of the chat transcript.
type Message struct {
	ID       string
	Text     string
	FromUser bool
}

func newMessage(text string, fromUser bool) Message {
	return Message{ID: uuid.NewString(), Text: text, FromUser: fromUser}
}

// User-facing texts written into a failed turn's placeholder.
const (
	OverloadedText = "Our assistant is very busy right now. Please try again in a few moments."
	FailureText    = "Sorry, something went wrong. Please check your internet connection and try again."
)
