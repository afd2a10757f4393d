// Package client provides the HTTP client every extractor and the download
// proxy share: browser-like headers with a randomized User-Agent, redirect
// following, a simple retry policy for transient failures, and transparent
// decoding of compressed response bodies.
package client

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	maxRedirects   = 10

	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 3 * time.Second

	// maxBodyBytes bounds metadata responses; media bytes never go through
	// ReadBody, they are streamed by the proxy.
	maxBodyBytes = 10 << 20

	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerAcceptCharset  = "Accept-Charset"
	headerUserAgent      = "User-Agent"

	acceptValue         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageValue = "en-us,en;q=0.5"
	acceptEncodingValue = "gzip, deflate"
	acceptCharsetValue  = "ISO-8859-1,utf-8;q=0.7,*;q=0.7"

	retryableMinCode = http.StatusInternalServerError
)

// defaultTransport is a tuned transport shared across clients.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
	ForceAttemptHTTP2:     true,
	// Compression is negotiated explicitly so the Content-Encoding switch in
	// ReadBody sees what the upstream actually sent.
	DisableCompression: true,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout  time.Duration
	Retries  int
	ProxyURL string
}

// Client wraps http.Client with browser headers and retry/backoff.
type Client struct {
	HTTPClient *http.Client
	Retries    int
}

// New creates a Client with the shared transport and default timeout.
func New() *Client {
	return NewWith(Config{})
}

// NewStreaming creates a Client for long-lived media transfers: no overall
// request timeout (the caller bounds time to first byte itself) and no
// retries, since a replayed download would restart the stream.
func NewStreaming() *Client {
	c := NewWith(Config{Retries: 1})
	c.HTTPClient.Timeout = 0
	if tr, ok := c.HTTPClient.Transport.(*http.Transport); ok {
		// The caller's own first-byte deadline bounds this phase; the
		// transport timeout would silently cap it.
		tr.ResponseHeaderTimeout = 0
	}
	return c
}

// NewWith creates a Client from cfg. Zero values use defaults.
func NewWith(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	tr := defaultTransport.Clone()
	if cfg.ProxyURL != "" {
		if u, err := url.Parse(cfg.ProxyURL); err == nil {
			tr.Proxy = http.ProxyURL(u)
		}
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		Retries: retries,
	}
}

// ApplyBrowserHeaders sets the spoofed header set on req: a User-Agent drawn
// from the pool per request plus the Accept trio a desktop browser sends.
func ApplyBrowserHeaders(req *http.Request) {
	req.Header.Set(headerUserAgent, RandomUserAgent())
	req.Header.Set(headerAccept, acceptValue)
	req.Header.Set(headerAcceptLanguage, acceptLanguageValue)
	req.Header.Set(headerAcceptEncoding, acceptEncodingValue)
	req.Header.Set(headerAcceptCharset, acceptCharsetValue)
}

// Do performs req with retries for transient errors (HTTP 5xx or network
// failures), backing off exponentially between attempts.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	retries := c.Retries
	if retries < 1 {
		retries = 1
	}

	var body []byte
	if req.Body != nil && req.GetBody == nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}

	var resp *http.Response
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		} else if req.GetBody != nil && attempt > 0 {
			if req.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		resp, err = c.HTTPClient.Do(req)
		if err == nil && resp != nil && resp.StatusCode < retryableMinCode {
			return resp, nil
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if req.Context().Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get performs a GET with the spoofed browser header set.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	ApplyBrowserHeaders(req)
	return c.Do(req)
}

// GetJSON performs a GET, checks for 2xx, and unmarshals the decoded body
// into out. Extra headers override the browser defaults.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	ApplyBrowserHeaders(req)
	req.Header.Set(headerAccept, "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("Status code: %d", resp.StatusCode)
	}

	body, err := ReadBody(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// PostForm sends a form-encoded POST and returns the decoded body on 2xx.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	ApplyBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("Status code: %d", resp.StatusCode)
	}
	return ReadBody(resp)
}

// ReadBody reads a response body, reversing whatever Content-Encoding the
// upstream applied. Bounded to maxBodyBytes; metadata payloads only.
func ReadBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = gzReader.Close() }()
		reader = gzReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		// raw DEFLATE, no wrapper
		reader = resp.Body
	case "bzip2":
		reader = bzip2.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
