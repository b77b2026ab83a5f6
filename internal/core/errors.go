package core

import "errors"

// Error codes attached to EventError notifications.
const (
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodePublishFailed = "publish_failed"
)

var (
	ErrNoConversation = errors.New("no conversation selected")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrNotConfirmed   = errors.New("conversation has no confirmed id yet")
	ErrSessionStopped = errors.New("session is not running")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
