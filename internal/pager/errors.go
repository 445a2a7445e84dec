package pager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	"github.com/timmy/picgallery/internal/source"
)

// ErrorKind classifies a failed fetch.
// Values include KindTransport, KindStatus, and KindUnknown.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindUnknown   ErrorKind = "unknown"
)

const (
	msgNetwork = "Network error occurred. Please check your internet connection."
	msgUnknown = "An unknown error occurred."
)

var statusMessages = map[int]string{
	400: "Bad Request: The server could not understand the request.",
	401: "Unauthorized: Access is denied due to invalid credentials.",
	403: "Forbidden: You do not have permission to access this resource.",
	404: "Not Found: The requested resource could not be found.",
	500: "Internal Server Error: The server encountered an error.",
	502: "Bad Gateway: The server received an invalid response from the upstream server.",
	503: "Service Unavailable: The server is currently unable to handle the request.",
	504: "Gateway Timeout: The server took too long to respond.",
}

// FetchError is a classified fetch failure carrying a user-facing message.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface and returns the user-facing message.
func (e *FetchError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Classify converts any fetch error into a FetchError.
// Parameters:
//   - err: error returned by a page source or download.
// Returns:
//   - *FetchError: classified error, or nil when err is nil.
func Classify(err error) *FetchError {
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	var se *source.StatusError
	if errors.As(err, &se) {
		return &FetchError{
			Kind:       KindStatus,
			StatusCode: se.StatusCode,
			Message:    StatusMessage(se.StatusCode, se.Status),
			Err:        err,
		}
	}

	if isTransport(err) {
		return &FetchError{Kind: KindTransport, Message: msgNetwork, Err: err}
	}

	return &FetchError{Kind: KindUnknown, Message: msgUnknown, Err: err}
}

// StatusMessage returns the user-facing message for an HTTP status code.
// Codes outside the fixed table are rendered as "Error: <status>".
func StatusMessage(code int, status string) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	if status == "" {
		status = fmt.Sprintf("%d", code)
	}
	return "Error: " + status
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
