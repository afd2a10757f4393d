// Package facebook extracts watch-page videos from Open Graph metadata.
package facebook

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/internal/opengraph"
	"github.com/shaunleeweirong/video-downloader/types"
)

const invalidURLMessage = "Invalid Facebook video URL"

var urlPattern = regexp.MustCompile(`https?://(?:www\.|m\.|web\.)?(?:facebook\.com/(?:watch/?\?v=(?P<watch>\d+)|[^/]+/videos/(?P<video>\d+)|reel/(?P<reel>\d+)|share/[vr]/(?P<share>[\w-]+))|fb\.watch/(?P<short>[\w-]+))`)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves facebook.com video, reel, share and fb.watch URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate captures whichever ID group the URL variant carries.
func (e *Extractor) Validate() (string, error) {
	m := urlPattern.FindStringSubmatch(e.URL)
	if m == nil {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	for _, group := range []string{"watch", "video", "reel", "share", "short"} {
		if id := m[urlPattern.SubexpIndex(group)]; id != "" {
			e.ID = id
			return e.ID, nil
		}
	}
	return "", errs.InvalidURL(invalidURLMessage)
}

// Extract fetches the watch page with browser headers and reads the
// og:video tags. Facebook serves the full metadata block to crawlers,
// so no GraphQL round trip is needed for public videos.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if e.ID == "" {
		if _, err := e.Validate(); err != nil {
			return nil, err
		}
	}

	page, err := opengraph.Fetch(ctx, e.client, e.URL)
	if err != nil {
		log.Warn("facebook page fetch failed for %s: %v", e.ID, err)
		return nil, errs.ClassifyUpstream(fmt.Errorf("Failed to extract Facebook video: %w", err))
	}
	if page.VideoURL == "" {
		return nil, errs.New("Could not extract video URL from Facebook page", 404)
	}

	title := page.Title
	if title == "" {
		title = "Facebook Video " + e.ID
	}

	return &types.ExtractedVideo{
		ID:        e.ID,
		Title:     title,
		Thumbnail: page.Image,
		OriginURL: e.URL,
		Formats: []types.VideoFormat{{
			URL:     page.VideoURL,
			Ext:     "mp4",
			Quality: "HD",
		}},
	}, nil
}
