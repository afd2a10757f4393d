package errs

import (
	"net/http"
	"strings"
)

// classification maps a known upstream error phrase to the structured
// response the client receives. The phrases come from yt-dlp style tooling
// and platform HTTP failures; substring matching against unstructured error
// text is fragile, so the whole mapping lives in this one table where it can
// be audited and tested on its own.
type classification struct {
	phrase     string
	message    string
	statusCode int
}

var upstreamClassifications = []classification{
	{"Video unavailable", "This video is unavailable or has been removed", http.StatusGone},
	{"Private video", "This video is private", http.StatusForbidden},
	{"Sign in", "This video requires authentication", http.StatusUnauthorized},
	{"copyright", "This video is not available due to copyright restrictions", http.StatusForbidden},
	{"Status code: 410", "This video is no longer available", http.StatusGone},
	{"Status code: 403", "Access to this video is forbidden", http.StatusForbidden},
	{"Status code: 404", "Video not found", http.StatusNotFound},
}

// ClassifyUpstream translates raw upstream error text into a RequestError.
// The first matching phrase wins; unrecognised text collapses to the generic
// extraction failure so upstream internals never leak to the client.
func ClassifyUpstream(err error) *RequestError {
	return classify(err, "Failed to extract video information")
}

// ClassifyDownload is ClassifyUpstream with the download-phase fallback
// message for unrecognised failures.
func ClassifyDownload(err error) *RequestError {
	return classify(err, "Failed to download video")
}

func classify(err error, fallback string) *RequestError {
	if err == nil {
		return nil
	}
	if reqErr, ok := As(err); ok {
		return reqErr
	}
	text := err.Error()
	for _, c := range upstreamClassifications {
		if strings.Contains(text, c.phrase) {
			return New(c.message, c.statusCode)
		}
	}
	return Unexpected(fallback)
}
