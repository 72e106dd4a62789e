package runner

import "errors"

// Kind classifies why an execution request failed.
type Kind string

const (
	KindUnknownVersion   Kind = "UnknownVersion"
	KindEmptyCode        Kind = "EmptyCode"
	KindBackendError     Kind = "BackendError"
	KindExecutionTimeout Kind = "ExecutionTimeout"
)

// Sentinels for errors.Is checks against an *Error.
var (
	ErrUnknownVersion   = &Error{Kind: KindUnknownVersion}
	ErrEmptyCode        = &Error{Kind: KindEmptyCode}
	ErrBackend          = &Error{Kind: KindBackendError}
	ErrExecutionTimeout = &Error{Kind: KindExecutionTimeout}
)

// Error is the terminal failure of one execution request.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsCallerError reports whether err was caused by the request rather than the backend.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrEmptyCode) || errors.Is(err, ErrUnknownVersion)
}
