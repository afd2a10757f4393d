package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/proxy"
	"github.com/shaunleeweirong/video-downloader/ratelimit"
	"github.com/shaunleeweirong/video-downloader/types"
)

type stubExtractor struct {
	extractor.Base
	video *types.ExtractedVideo
	err   error
}

func (s *stubExtractor) Validate() (string, error) {
	if !strings.Contains(s.URL, "known.example") {
		return "", errs.InvalidURL("no match")
	}
	s.ID = "stub-id"
	return s.ID, nil
}

func (s *stubExtractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.video, nil
}

func newTestGateway(t *testing.T, video *types.ExtractedVideo, extractErr error) *Gateway {
	t.Helper()
	constructor := func(rawURL string, c *client.Client) extractor.Extractor {
		return &stubExtractor{Base: extractor.Base{URL: rawURL}, video: video, err: extractErr}
	}
	reg := extractor.NewRegistry(client.New(), constructor)
	limiter := ratelimit.New(ratelimit.Config{RPS: 1000, Burst: 1000})
	t.Cleanup(limiter.Stop)
	return New(Config{Addr: "127.0.0.1:0"}, reg, proxy.New(time.Second), limiter)
}

func doRequest(g *Gateway, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	g.ec.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	g := newTestGateway(t, nil, nil)
	rec := doRequest(g, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMedias(t *testing.T) {
	video := &types.ExtractedVideo{
		ID:        "stub-id",
		Title:     "A Video",
		OriginURL: "https://known.example/v/1",
		Formats:   []types.VideoFormat{{URL: "https://cdn.example/v.mp4", Ext: "mp4", Quality: "720p"}},
	}
	g := newTestGateway(t, video, nil)

	rec := doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.ExtractedVideo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A Video", got.Title)
	require.Len(t, got.Formats, 1)
	assert.Equal(t, "720p", got.Formats[0].Quality)
}

func TestMediasMissingURL(t *testing.T) {
	g := newTestGateway(t, nil, nil)
	rec := doRequest(g, "/api/medias")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing url parameter"}`, rec.Body.String())
}

func TestMediasUnsupportedPlatform(t *testing.T) {
	g := newTestGateway(t, nil, nil)
	rec := doRequest(g, "/api/medias?url="+url.QueryEscape("https://unknown.example/v/1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Unsupported platform url"}`, rec.Body.String())
}

func TestMediasExtractionFailure(t *testing.T) {
	g := newTestGateway(t, nil, errs.New("This video is private", http.StatusForbidden))
	rec := doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"This video is private"}`, rec.Body.String())
}

func TestMediasUnexpectedErrorStaysGeneric(t *testing.T) {
	g := newTestGateway(t, nil, errors.New("pointer dereference gone wrong"))
	rec := doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details never reach the client.
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestDownloads(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes"))
	}))
	defer upstream.Close()

	g := newTestGateway(t, nil, nil)
	target := "/api/downloads?ext=mp4&title=Clip&url=" + url.QueryEscape(upstream.URL+"/clip.mp4")
	rec := doRequest(g, target)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Clip.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "media-bytes", rec.Body.String())
}

func TestDownloadsRejectsWatchPage(t *testing.T) {
	g := newTestGateway(t, nil, nil)
	target := "/api/downloads?url=" + url.QueryEscape("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	rec := doRequest(g, target)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please select a format before downloading"}`, rec.Body.String())
}

func TestDownloadsMissingURL(t *testing.T) {
	g := newTestGateway(t, nil, nil)
	rec := doRequest(g, "/api/downloads")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing url parameter"}`, rec.Body.String())
}

func TestRateLimitAppliesToAPIRoutes(t *testing.T) {
	constructor := func(rawURL string, c *client.Client) extractor.Extractor {
		return &stubExtractor{Base: extractor.Base{URL: rawURL}}
	}
	reg := extractor.NewRegistry(client.New(), constructor)
	limiter := ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 2})
	defer limiter.Stop()
	g := New(Config{Addr: "127.0.0.1:0"}, reg, proxy.New(time.Second), limiter)

	// Two requests fit the burst, the third is throttled.
	doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	rec := doRequest(g, "/api/medias?url="+url.QueryEscape("https://known.example/v/1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later"}`, rec.Body.String())

	// The health probe is never throttled.
	rec = doRequest(g, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
