package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing the generation path.
type ErrorKind string

const (
	// KindConfigurationMissing means no credential is configured.
	KindConfigurationMissing ErrorKind = "configuration_missing"

	// KindChannelUnavailable means the messaging channel to the background
	// process was torn down or the receiving end is gone. It is transient.
	KindChannelUnavailable ErrorKind = "channel_unavailable"

	// KindNeedsReload means retries for an unavailable channel were exhausted.
	KindNeedsReload ErrorKind = "needs_reload"

	// KindServiceError means the remote call failed or returned a malformed payload.
	KindServiceError ErrorKind = "service_error"

	// KindExtractionEmpty means no transcript content was found. It is handled
	// locally by substituting a sentinel and never reaches the user.
	KindExtractionEmpty ErrorKind = "extraction_empty"

	// KindUnknown is used for errors that carry no kind.
	KindUnknown ErrorKind = "unknown"
)

// Error is the typed failure of the generation path.
type Error struct {
	Err     error
	Kind    ErrorKind
	Message string
	Status  int
}

// NewError creates a typed error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a typed error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with a kind.
func WrapError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// WithStatus sets an HTTP-like status code and returns the error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinel kinds work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && other.Message == ""
}

// Sentinels usable with errors.Is.
var (
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}
	ErrChannelUnavailable   = &Error{Kind: KindChannelUnavailable}
	ErrNeedsReload          = &Error{Kind: KindNeedsReload}
	ErrServiceError         = &Error{Kind: KindServiceError}
	ErrExtractionEmpty      = &Error{Kind: KindExtractionEmpty}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var typed *Error
	if !errors.As(err, &typed) {
		return "Error: " + err.Error()
	}
	switch typed.Kind {
	case KindConfigurationMissing:
		return "API key not configured. Run `mailwright settings --api-key <key>` and try again."
	case KindNeedsReload:
		return "The assistant lost its connection to the background service. Please reload the page."
	case KindServiceError:
		return "Error generating response: " + typed.Message
	default:
		return "Error: " + typed.Message
	}
}
