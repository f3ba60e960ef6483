package coach

import "errors"

// Sentinel errors for coach operations.
var (
	// ErrNilModel is returned by NewService when no model is given.
	ErrNilModel = errors.New("coach: model is nil")

	// ErrMissingMode is returned for a chat request without a mode.
	ErrMissingMode = errors.New("coach: chat mode is required")

	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("coach: chat message is empty")

	// ErrEmptyConversation is returned for an analysis of no messages.
	ErrEmptyConversation = errors.New("coach: conversation has no messages")

	// ErrEmptyReply is returned when the model answers with nothing. Empty
	// replies are treated as failures so they are never cached, and are not
	// retried.
	ErrEmptyReply = errors.New("coach: model returned an empty reply")
)
