package chat

import "github.com/pkg/errors"

var (
	// ErrSubmissionFailed is the only failure a caller sees when a relay call
	// breaks after the user turn was committed.
	ErrSubmissionFailed     = errors.New("Failed to get response")
	ErrSubmissionInFlight   = errors.New("a submission is already in flight")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrEmptyInput           = errors.New("input is empty")
	ErrUnknownConversation  = errors.New("unknown conversation")
	ErrTitleGeneration      = errors.New("title generation failed")
	ErrRelayUnreachable     = errors.New("relay unreachable")
)

// SubmitError reports a failed submission. Its message is generic; Cause is
// kept for logs.
type SubmitError struct {
	Cause error
}

func (e *SubmitError) Error() string { return ErrSubmissionFailed.Error() }

func (e *SubmitError) Unwrap() []error { return []error{ErrSubmissionFailed, e.Cause} }
