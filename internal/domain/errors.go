package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch for the presentation layer.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindServerUnavailable ErrorKind = "server_unavailable"
	KindHTTPStatus        ErrorKind = "http_status"
	KindNetworkFailure    ErrorKind = "network_failure"
)

// User-facing messages per kind. Raw transport errors never reach the UI.
const (
	MessageNotFound          = "API endpoint not found. Please try a different time window."
	MessageServerUnavailable = "Server error. The API might be temporarily unavailable. Please try again later."
	MessageNetworkFailure    = "Failed to load recent earthquake data. Please check your internet connection and try again."
)

// FetchError is a classified fetch failure. Error returns only the
// user-facing message; the cause is kept for logs via Unwrap.
type FetchError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// NewStatusError classifies a non-2xx upstream status.
func NewStatusError(status int, cause error) *FetchError {
	switch status {
	case 404:
		return &FetchError{Kind: KindNotFound, Status: status, Message: MessageNotFound, Err: cause}
	case 500:
		return &FetchError{Kind: KindServerUnavailable, Status: status, Message: MessageServerUnavailable, Err: cause}
	default:
		return &FetchError{
			Kind:    KindHTTPStatus,
			Status:  status,
			Message: fmt.Sprintf("Failed to fetch data with status: %d", status),
			Err:     cause,
		}
	}
}

// NewNetworkError wraps a transport or decoding failure.
func NewNetworkError(cause error) *FetchError {
	return &FetchError{Kind: KindNetworkFailure, Message: MessageNetworkFailure, Err: cause}
}

// KindOf returns the kind of a FetchError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
