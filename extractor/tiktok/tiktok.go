// Package tiktok extracts TikTok videos through an external resolver that
// returns the no-watermark media URL. The resolver is an opaque collaborator:
// it either answers with usable metadata or the extraction fails.
package tiktok

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/types"
)

// resolverURL is the opaque scraping collaborator; var so tests can stub it.
var resolverURL = "https://www.tikwm.com/api/"

// SetResolverURL points extraction at a different resolver endpoint.
// Meant for configuration at startup, not for concurrent use.
func SetResolverURL(u string) {
	if u != "" {
		resolverURL = u
	}
}

const invalidURLMessage = "Invalid TikTok URL format"

// urlPattern accepts www., m. and vm. hosts; the id group captures either a
// full video ID or a short-link slug.
var urlPattern = regexp.MustCompile(`https?://(?:www\.|m\.|vm\.)?tiktok\.com/(?:@(?:[^/]+)/video/|v/|)(?P<id>[^/?#&]+)`)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves tiktok.com URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor. The full URL, query included, is kept:
// the resolver needs it verbatim.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate captures the platform-native ID from the named group.
func (e *Extractor) Validate() (string, error) {
	m := urlPattern.FindStringSubmatch(e.URL)
	if m == nil {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	id := m[urlPattern.SubexpIndex("id")]
	if id == "" {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	e.ID = id
	return e.ID, nil
}

type resolverResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Title  string `json:"title"`
		Cover  string `json:"cover"`
		Play   string `json:"play"`
		HDPlay string `json:"hdplay"`
	} `json:"data"`
}

// Extract delegates to the resolver and maps its answer into a single HD
// no-watermark format.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if _, err := e.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{"url": {e.URL}, "hd": {"1"}}
	var res resolverResponse
	if err := e.client.GetJSON(ctx, resolverURL+"?"+query.Encode(), nil, &res); err != nil {
		log.Warn("tiktok resolver failed for %s: %v", e.ID, err)
		return nil, errs.New("Failed to extract TikTok video", http.StatusNotFound)
	}
	if res.Code != 0 {
		log.Warn("tiktok resolver rejected %s: %s", e.ID, res.Msg)
		return nil, errs.New("Failed to extract TikTok video", http.StatusNotFound)
	}

	mediaURL := res.Data.HDPlay
	if mediaURL == "" {
		mediaURL = res.Data.Play
	}
	if mediaURL == "" {
		return nil, errs.New("No video URL found in response", http.StatusNotFound)
	}

	title := res.Data.Title
	if title == "" {
		title = "TikTok Video"
	}

	return &types.ExtractedVideo{
		ID:        e.ID,
		Title:     title,
		Thumbnail: res.Data.Cover,
		OriginURL: e.URL,
		Formats: []types.VideoFormat{{
			URL:     mediaURL,
			Ext:     "mp4",
			Quality: "HD",
			// TikTok's portrait canvas
			Width:  1080,
			Height: 1920,
		}},
	}, nil
}
