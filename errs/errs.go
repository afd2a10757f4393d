// Package errs defines the error currency crossing the core/API boundary.
// Every failure the service reports to a client is a RequestError; anything
// else collapses to a generic 500 at the API layer.
package errs

import (
	"errors"
	"net/http"
)

// RequestError carries a client-facing message together with the HTTP status
// code the API layer must answer with.
type RequestError struct {
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *RequestError) Error() string {
	return e.Message
}

// New builds a RequestError with the given message and status code.
func New(message string, statusCode int) *RequestError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &RequestError{Message: message, StatusCode: statusCode}
}

// As unwraps err into a *RequestError when possible.
func As(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

// InvalidURL reports a URL that failed an extractor's pattern match.
func InvalidURL(message string) *RequestError {
	return New(message, http.StatusBadRequest)
}

// UnsupportedPlatform reports a URL no registered extractor recognises.
func UnsupportedPlatform() *RequestError {
	return New("Unsupported platform url", http.StatusBadRequest)
}

// NoSuitableFormat reports an extraction that yielded zero usable formats.
// Callers rely on a non-empty formats slice as the success invariant, so this
// is a failure rather than an empty result.
func NoSuitableFormat() *RequestError {
	return New("No suitable formats found for this video", http.StatusNotFound)
}

// DirectURLRequired reports a download request carrying a watch-page URL
// instead of a resolved format URL.
func DirectURLRequired() *RequestError {
	return New("Please select a format before downloading", http.StatusBadRequest)
}

// DownloadTimeout reports an upstream that produced no data within the
// configured window.
func DownloadTimeout() *RequestError {
	return New("Download timed out", http.StatusGatewayTimeout)
}

// RateLimited reports a request rejected by the rate limiter.
func RateLimited() *RequestError {
	return New("Too many requests, please try again later", http.StatusTooManyRequests)
}

// Unexpected is the generic fallback; raw upstream error text never reaches
// the client through it.
func Unexpected(message string) *RequestError {
	return New(message, http.StatusInternalServerError)
}
