// Package aerr defines the error kinds used at control-thread API
// boundaries throughout auracore. Audio-thread code never returns or
// panics with one of these; it degrades in place per the policy in
// spec.md §7 and reports through obslog instead.
package aerr

import "fmt"

// Kind classifies why a control-thread call failed.
type Kind int

const (
	// Unspecified is the zero value; avoid constructing errors with it.
	Unspecified Kind = iota
	// InvalidParameter marks a pre-condition violation at an API boundary.
	InvalidParameter
	// FileNotFound marks a resource I/O failure.
	FileNotFound
	// ModalError marks an operation invalid in the object's current state,
	// e.g. fixing an already-fixed scene state.
	ModalError
	// NotImplemented marks a recognized but unimplemented operation.
	NotImplemented
	// NotFound marks a lookup against an id that does not exist in the
	// current scene state.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "InvalidParameter"
	case FileNotFound:
		return "FileNotFound"
	case ModalError:
		return "ModalError"
	case NotImplemented:
		return "NotImplemented"
	case NotFound:
		return "NotFound"
	default:
		return "Unspecified"
	}
}

// Error is the concrete error type returned by control-thread APIs.
// KeyPath, when non-empty, names the offending struct-value key path
// so the error can be associated with the user-visible parameter that
// caused it (spec.md §7, "User-visible behavior").
type Error struct {
	Kind    Kind
	KeyPath string
	Cause   error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf("%s", msg)}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// WithKeyPath returns a copy of e annotated with the struct-value key
// path that triggered it.
func (e *Error) WithKeyPath(path string) *Error {
	cp := *e
	cp.KeyPath = path
	return &cp
}

func (e *Error) Error() string {
	if e.KeyPath != "" {
		return fmt.Sprintf("%s: %s (key %q)", e.Kind, e.Cause, e.KeyPath)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a Kind-only *Error (no Cause) with the
// same Kind, so callers can write errors.Is(err, aerr.ModalErrorSentinel)
// -style checks against the package-level sentinel values below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Cause == nil {
		return e.Kind == other.Kind
	}
	return false
}

// sentinel returns a bare *Error carrying only a Kind, suitable as the
// target of errors.Is(err, aerr.ModalErrorSentinel).
func sentinel(k Kind) *Error { return &Error{Kind: k} }

var (
	InvalidParameterSentinel = sentinel(InvalidParameter)
	FileNotFoundSentinel     = sentinel(FileNotFound)
	ModalErrorSentinel       = sentinel(ModalError)
	NotImplementedSentinel   = sentinel(NotImplemented)
	NotFoundSentinel         = sentinel(NotFound)
)
