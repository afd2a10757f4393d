package tiktok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
	}{
		{"canonical", "https://www.tiktok.com/@someuser/video/7301234567890123456", "7301234567890123456"},
		{"mobile", "https://m.tiktok.com/v/7301234567890123456", "7301234567890123456"},
		{"short link", "https://vm.tiktok.com/ZM8abcdef/", "ZM8abcdef"},
		{"query preserved", "https://www.tiktok.com/@u/video/123456?is_copy_url=1", "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.url, client.New())
			id, err := e.Validate()
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	for _, u := range []string{"https://invalid-url.com", "https://www.youtube.com/watch?v=x"} {
		e := New(u, client.New())
		_, err := e.Validate()
		reqErr, ok := errs.As(err)
		if !ok || reqErr.StatusCode != http.StatusBadRequest {
			t.Errorf("Validate(%q): want 400 RequestError, got %v", u, err)
		}
	}
}

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got == "" {
			t.Error("resolver did not receive the original url")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"title":"Dance","cover":"https://cdn.example/cover.jpg","play":"https://cdn.example/video.mp4"}}`))
	}))
	defer srv.Close()

	old := resolverURL
	resolverURL = srv.URL
	defer func() { resolverURL = old }()

	e := New("https://www.tiktok.com/@u/video/123456", client.New())
	video, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(video.Formats) != 1 {
		t.Fatalf("formats = %d, want 1", len(video.Formats))
	}
	f := video.Formats[0]
	if f.URL != "https://cdn.example/video.mp4" || f.Ext != "mp4" || f.Quality != "HD" {
		t.Errorf("format = %+v", f)
	}
	if f.Width != 1080 || f.Height != 1920 {
		t.Errorf("dimensions = %dx%d, want 1080x1920", f.Width, f.Height)
	}
	if video.Title != "Dance" {
		t.Errorf("title = %q", video.Title)
	}
}

func TestExtractPrefersHDPlay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"play":"https://cdn.example/sd.mp4","hdplay":"https://cdn.example/hd.mp4"}}`))
	}))
	defer srv.Close()

	old := resolverURL
	resolverURL = srv.URL
	defer func() { resolverURL = old }()

	e := New("https://www.tiktok.com/@u/video/123456", client.New())
	video, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if video.Formats[0].URL != "https://cdn.example/hd.mp4" {
		t.Errorf("url = %q, want the hd rendition", video.Formats[0].URL)
	}
	if video.Title != "TikTok Video" {
		t.Errorf("title fallback = %q", video.Title)
	}
}

func TestExtractResolverFailureIs404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":-1,"msg":"url parsing failed"}`))
	}))
	defer srv.Close()

	old := resolverURL
	resolverURL = srv.URL
	defer func() { resolverURL = old }()

	e := New("https://www.tiktok.com/@u/video/123456", client.New())
	_, err := e.Extract(context.Background())
	reqErr, ok := errs.As(err)
	if !ok || reqErr.StatusCode != http.StatusNotFound {
		t.Errorf("want 404 RequestError, got %v", err)
	}
}
