// Package twitter extracts tweet videos through the public syndication API.
package twitter

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/types"
)

// syndicationURL is a var so tests can point at a stub server.
var syndicationURL = "https://cdn.syndication.twimg.com/tweet-result"

const (
	invalidURLMessage = "Invalid Twitter URL"
	failText          = "Failed to extract Twitter video"
)

var urlPattern = regexp.MustCompile(`https?://(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/[^/]+/status/(?P<id>\d+)`)

// resolutionRe pulls the WxH segment twitter embeds in variant paths,
// e.g. .../vid/avc1/1280x720/xyz.mp4.
var resolutionRe = regexp.MustCompile(`/(\d+)x(\d+)/`)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves twitter.com and x.com status URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate captures the numeric status ID.
func (e *Extractor) Validate() (string, error) {
	m := urlPattern.FindStringSubmatch(e.URL)
	if m == nil {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	e.ID = m[urlPattern.SubexpIndex("id")]
	return e.ID, nil
}

type tweetResult struct {
	Text string `json:"text"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	Video struct {
		Poster string `json:"poster"`
	} `json:"video"`
	MediaDetails []struct {
		Type      string `json:"type"`
		VideoInfo struct {
			Variants []struct {
				Bitrate     int    `json:"bitrate"`
				ContentType string `json:"content_type"`
				URL         string `json:"url"`
			} `json:"variants"`
		} `json:"video_info"`
	} `json:"mediaDetails"`
}

// Extract queries the syndication endpoint and maps the mp4 variants,
// best bitrate first. HLS playlists are skipped since only the muxed
// mp4 renditions are directly downloadable.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if _, err := e.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{"id": {e.ID}, "lang": {"en"}}
	var tweet tweetResult
	if err := e.client.GetJSON(ctx, syndicationURL+"?"+query.Encode(), nil, &tweet); err != nil {
		log.Warn("twitter syndication failed for %s: %v", e.ID, err)
		return nil, errs.ClassifyUpstream(fmt.Errorf("%s: %w", failText, err))
	}

	type ranked struct {
		format  types.VideoFormat
		bitrate int
	}
	var candidates []ranked
	for _, media := range tweet.MediaDetails {
		if media.Type != "video" && media.Type != "animated_gif" {
			continue
		}
		for _, v := range media.VideoInfo.Variants {
			if v.ContentType != "video/mp4" || v.URL == "" {
				continue
			}
			candidates = append(candidates, ranked{
				format: types.VideoFormat{
					URL:     v.URL,
					Ext:     "mp4",
					Quality: resolutionFromURL(v.URL),
					Rate:    rateLabel(v.Bitrate),
				},
				bitrate: v.Bitrate,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, errs.NoSuitableFormat()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].bitrate > candidates[j].bitrate
	})
	formats := make([]types.VideoFormat, len(candidates))
	for i, c := range candidates {
		formats[i] = c.format
	}

	title := tweet.Text
	if title == "" {
		title = "Twitter Video " + e.ID
	}

	return &types.ExtractedVideo{
		ID:        e.ID,
		Title:     title,
		Thumbnail: tweet.Video.Poster,
		OriginURL: e.URL,
		Formats:   formats,
		Uploader:  tweet.User.Name,
	}, nil
}

func resolutionFromURL(mediaURL string) string {
	if m := resolutionRe.FindStringSubmatch(mediaURL); m != nil {
		return m[2] + "p"
	}
	return "default"
}

func rateLabel(bitrate int) string {
	if bitrate <= 0 {
		return ""
	}
	return fmt.Sprintf("%dkbps", bitrate/1000)
}
