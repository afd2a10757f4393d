// Package linkedin extracts feed post videos from Open Graph metadata.
package linkedin

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

const invalidURLMessage = "Invalid LinkedIn post URL"

var urlPattern = regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/(?:posts/(?P<slug>[\w%.-]+)|feed/update/urn:li:activity:(?P<activity>\d+))`)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves linkedin.com post and feed activity URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate captures the post slug or the numeric activity ID.
func (e *Extractor) Validate() (string, error) {
	m := urlPattern.FindStringSubmatch(e.URL)
	if m == nil {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	if id := m[urlPattern.SubexpIndex("slug")]; id != "" {
		e.ID = id
	} else {
		e.ID = m[urlPattern.SubexpIndex("activity")]
	}
	return e.ID, nil
}

// Extract scrapes the post page og tags. LinkedIn renders og:video
// only for posts carrying native video, so a missing tag means the
// post has no downloadable media.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if e.ID == "" {
		if _, err := e.Validate(); err != nil {
			return nil, err
		}
	}

	page, err := opengraph.Fetch(ctx, e.client, e.URL)
	if err != nil {
		log.Warn("linkedin page fetch failed for %s: %v", e.ID, err)
		return nil, errs.ClassifyUpstream(fmt.Errorf("Failed to extract LinkedIn video: %w", err))
	}
	if page.VideoURL == "" {
		return nil, errs.New("Could not extract video URL from LinkedIn post", 404)
	}

	title := page.Title
	if title == "" {
		title = "LinkedIn Video " + e.ID
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
