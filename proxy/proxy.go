// Package proxy streams remote media bytes to the caller without
// buffering the payload. Failures before the response is committed map
// to the JSON error contract; once bytes have been written the only
// honest signal left is tearing the connection down.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/internal/mimeext"
	"github.com/shaunleeweirong/video-downloader/internal/sanitize"
	"github.com/shaunleeweirong/video-downloader/types"
)

const (
	// DefaultFirstByteTimeout bounds the wait for the first upstream byte.
	// Once data is flowing the transfer runs to completion untimed.
	DefaultFirstByteTimeout = 30 * time.Second

	copyBufferSize = 64 * 1024
)

var log = logger.Get(logger.ComponentProxy)

// Service relays direct media URLs to HTTP clients.
type Service struct {
	client           *client.Client
	firstByteTimeout time.Duration
}

// New builds a Service around a streaming client.
func New(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultFirstByteTimeout
	}
	return &Service{
		client:           client.NewStreaming(),
		firstByteTimeout: timeout,
	}
}

// IsDirectMediaURL reports whether rawURL serves raw media bytes rather
// than a watch page: a googlevideo host, a videoplayback endpoint, or a
// path ending in a known media container.
func IsDirectMediaURL(rawURL string) bool {
	if strings.Contains(rawURL, ".googlevideo.com/") || strings.Contains(rawURL, "videoplayback?") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".mp4") || strings.HasSuffix(path, ".webm")
}

func isYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

// CheckDirectURL gates YouTube watch pages out before any upstream
// connection is made: deciphered googlevideo URLs stream fine, but a
// watch page would just relay HTML. Non-YouTube URLs pass through as-is.
func CheckDirectURL(rawURL string) error {
	if rawURL == "" {
		return errs.InvalidURL("Missing url parameter")
	}
	if isYouTubeURL(rawURL) && !IsDirectMediaURL(rawURL) {
		return errs.DirectURLRequired()
	}
	return nil
}

// Request carries one download to relay.
type Request struct {
	MediaURL string
	Ext      string
	Title    string
}

// Stream relays req.MediaURL to w. Errors returned before any byte is
// written carry the JSON error contract; once the response is committed
// a failed upstream read aborts the connection instead.
func (s *Service) Stream(ctx context.Context, w http.ResponseWriter, req Request) error {
	if err := CheckDirectURL(req.MediaURL); err != nil {
		return err
	}

	// The deadline covers connecting and the first byte only. firstByte
	// disarms it as soon as data arrives.
	upstreamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := time.AfterFunc(s.firstByteTimeout, cancel)
	defer timer.Stop()

	upstream, err := http.NewRequestWithContext(upstreamCtx, http.MethodGet, req.MediaURL, nil)
	if err != nil {
		return errs.InvalidURL("Invalid media url")
	}
	client.ApplyBrowserHeaders(upstream)
	upstream.Header.Set("Accept", "*/*")
	upstream.Header.Del("Accept-Encoding")

	resp, err := s.client.Do(upstream)
	if err != nil {
		if upstreamCtx.Err() != nil && ctx.Err() == nil {
			log.Warn("first byte deadline exceeded for %s", req.MediaURL)
			return errs.DownloadTimeout()
		}
		return errs.ClassifyDownload(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errs.ClassifyDownload(fmt.Errorf("Status code: %d", resp.StatusCode))
	}

	ext := sanitize.Ext(req.Ext)
	w.Header().Set("Content-Type", mimeext.ContentTypeForExt(ext))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", sanitize.AttachmentFilename(req.Title, ext)))
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", resp.ContentLength))
	}

	body := &firstByteReader{r: resp.Body, disarm: timer.Stop}
	reader := NewProgressReader(body, resp.ContentLength, func(p types.DownloadProgress) {
		log.Trace("relayed %d/%d bytes (%.1f%%, %.0f B/s)",
			p.DownloadedBytes, p.TotalBytes, p.Percentage, p.Speed)
	})

	written, err := copyFlushing(w, reader)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; nothing left to tell it.
			log.Debug("client disconnected after %d bytes of %s", written, req.MediaURL)
			return nil
		}
		if written == 0 {
			// Nothing committed yet, so the error contract still applies.
			// The attachment headers must not leak onto the JSON error.
			clearDownloadHeaders(w)
			if upstreamCtx.Err() != nil {
				log.Warn("first byte deadline exceeded for %s", req.MediaURL)
				return errs.DownloadTimeout()
			}
			return errs.ClassifyDownload(err)
		}
		// Headers and data are committed. Kill the connection so the
		// client sees a truncated transfer instead of a silent success.
		log.Error("upstream read failed after %d bytes of %s: %v", written, req.MediaURL, err)
		panic(http.ErrAbortHandler)
	}
	log.Info("relayed %d bytes for %s.%s", written, req.Title, ext)
	return nil
}

// clearDownloadHeaders removes the attachment headers from an
// uncommitted response so a JSON error is not served as a download.
func clearDownloadHeaders(w http.ResponseWriter) {
	w.Header().Del("Content-Type")
	w.Header().Del("Content-Disposition")
	w.Header().Del("Content-Length")
}

// firstByteReader disarms the first-byte deadline on the first
// successful read.
type firstByteReader struct {
	r      io.Reader
	disarm func() bool
	seen   bool
}

func (f *firstByteReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if n > 0 && !f.seen {
		f.seen = true
		f.disarm()
	}
	return n, err
}

// copyFlushing copies reader to w flushing after every chunk, so bytes
// reach the client as they arrive instead of sitting in the server
// buffer.
func copyFlushing(w http.ResponseWriter, reader io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
