// Package errors defines the typed error taxonomy shared by the scraping side
// and the download pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Job taxonomy
	ErrorTypePageStructure   ErrorType = "page_structure_mismatch"
	ErrorTypeFetch           ErrorType = "fetch"
	ErrorTypeArchiveAssembly ErrorType = "archive_assembly"
	ErrorTypeInvalidFilename ErrorType = "invalid_filename"
	ErrorTypeInterrupted     ErrorType = "interrupted"

	// Transport
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a type, an optional HTTP status code and the URL involved
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type) + " error"
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	msg += ": " + e.Message
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an Error of the given type around cause
func Wrap(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// NewPageStructureMismatch reports that a page lacks the markers an adapter needs
func NewPageStructureMismatch(site, missing string) *Error {
	return &Error{
		Type:    ErrorTypePageStructure,
		Message: fmt.Sprintf("cannot parse this page as %s: %s not found", site, missing),
	}
}

// NewFetchFailure reports a single resource that could not be retrieved
func NewFetchFailure(url string, cause error) *Error {
	e := &Error{Type: ErrorTypeFetch, Message: "fetch failed", URL: url, Err: cause}
	var inner *Error
	if stderrors.As(cause, &inner) {
		e.Code = inner.Code
	}
	return e
}

// NewArchiveAssemblyFailure reports that the archive could not be produced
func NewArchiveAssemblyFailure(cause error) *Error {
	return &Error{Type: ErrorTypeArchiveAssembly, Message: "archive assembly failed", Err: cause}
}

// NewInvalidFilename reports a filename the download host refused
func NewInvalidFilename(name, reason string) *Error {
	return &Error{Type: ErrorTypeInvalidFilename, Message: fmt.Sprintf("invalid filename %q: %s", name, reason)}
}

// NewInterrupted reports a download that stopped after the archive was built
func NewInterrupted(reason string) *Error {
	return &Error{Type: ErrorTypeInterrupted, Message: reason}
}

// FromStatus maps a non-2xx HTTP status code to a typed error
func FromStatus(code int, url string) *Error {
	e := &Error{Code: code, URL: url, Message: http.StatusText(code)}
	switch {
	case code == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Type = ErrorTypeAuth
	case code == http.StatusNotFound || code == http.StatusGone:
		e.Type = ErrorTypeNotFound
	case code >= 500:
		e.Type = ErrorTypeServerError
	default:
		e.Type = ErrorTypeUnknown
	}
	if e.Message == "" {
		e.Message = "unexpected status"
	}
	return e
}

// IsType reports whether err or anything it wraps is an Error of type t
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

