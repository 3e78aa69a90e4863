package engine

import "errors"

// Contract errors: the event is dropped and the session left unchanged.
var (
	// ErrUnknownState means the stored state is not a declared enum value.
	ErrUnknownState = errors.New("engine: unknown state")
	// ErrMissingField means a handler needed a session field that is absent.
	ErrMissingField = errors.New("engine: missing required session field")
)

// RetryError is a validation failure recovered by re-prompting the user
// and keeping the session in its prior state.
type RetryError struct {
	Notice string
}

func (e *RetryError) Error() string {
	return "engine: retry: " + e.Notice
}

// Retry builds a RetryError with the given user-facing notice.
func Retry(notice string) error {
	return &RetryError{Notice: notice}
}
