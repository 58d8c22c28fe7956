package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by its origin.
// Params: one of the Kind constants.
// Returns: error category used for logging and matching.
type Kind int

const (
	// KindUnknown is the zero kind for foreign errors.
	KindUnknown Kind = iota
	// KindConfiguration marks bad or missing input parameters.
	KindConfiguration
	// KindUnsupportedSource marks an unrecognized event source or value combination.
	KindUnsupportedSource
	// KindTransport marks non-success HTTP status or malformed remote JSON.
	KindTransport
	// KindRemoteAPI marks an explicit remote error string.
	KindRemoteAPI
	// KindUnknownRemote marks a remote failure without explanation.
	KindUnknownRemote
	// KindMissingField marks an absent expected field.
	KindMissingField
)

var (
	// ErrConfiguration matches any configuration failure via errors.Is.
	ErrConfiguration = &Error{Kind: KindConfiguration}
	// ErrUnsupportedSource matches any unsupported source failure via errors.Is.
	ErrUnsupportedSource = &Error{Kind: KindUnsupportedSource}
	// ErrTransport matches any transport failure via errors.Is.
	ErrTransport = &Error{Kind: KindTransport}
	// ErrRemoteAPI matches any remote API failure via errors.Is.
	ErrRemoteAPI = &Error{Kind: KindRemoteAPI}
	// ErrUnknownRemote matches any unexplained remote failure via errors.Is.
	ErrUnknownRemote = &Error{Kind: KindUnknownRemote}
	// ErrMissingField matches any missing-field failure via errors.Is.
	ErrMissingField = &Error{Kind: KindMissingField}
)

// String returns a short snake-case kind label.
// Params: none.
// Returns: label suitable for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupportedSource:
		return "unsupported_source"
	case KindTransport:
		return "transport"
	case KindRemoteAPI:
		return "remote_api"
	case KindUnknownRemote:
		return "unknown_remote"
	case KindMissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// Error is a categorized failure with an optional cause.
// Params: kind, human-readable message, and wrapped cause.
// Returns: error value that flattens to its message text.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error renders message and cause as one string.
// Params: none.
// Returns: flattened error text.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return e.Message + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

// Unwrap returns the wrapped cause.
// Params: none.
// Returns: cause or nil.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
// Params: target error from errors.Is.
// Returns: true when kinds are equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// New creates a failure of the given kind.
// Params: kind and message.
// Returns: categorized error.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a failure of the given kind with formatted message.
// Params: kind, format, and arguments.
// Returns: categorized error.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing cause.
// Params: kind, cause, and message prefix.
// Returns: categorized error or nil when cause is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the outermost categorized failure in the chain.
// Params: any error.
// Returns: kind or KindUnknown.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}
