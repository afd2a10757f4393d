// Package instagram extracts Reel videos through Instagram's internal
// GraphQL endpoint.
package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/types"
)

// graphqlURL is a var so tests can point at a stub server.
var graphqlURL = "https://www.instagram.com/graphql/query"

const (
	invalidURLMessage = "Invalid Instagram Reel URL"

	// docID selects the reels/posts query document.
	docID    = "8845758582119845"
	igAppID  = "1217981644879628"
	failText = "Failed to extract Instagram Reel video"
)

var (
	urlPattern = regexp.MustCompile(`https?://(www\.)?instagram\.com/reel/`)
	idPattern  = regexp.MustCompile(`instagram\.com/reel/([\w-]+)`)
)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves instagram.com/reel/ URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate extracts the reel shortcode from the URL.
func (e *Extractor) Validate() (string, error) {
	if !urlPattern.MatchString(e.URL) {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	m := idPattern.FindStringSubmatch(e.URL)
	if m == nil {
		return "", errs.InvalidURL(invalidURLMessage)
	}
	e.ID = m[1]
	return e.ID, nil
}

type graphqlResponse struct {
	Data struct {
		Media *struct {
			IsVideo    bool   `json:"is_video"`
			VideoURL   string `json:"video_url"`
			DisplayURL string `json:"display_url"`
			Title      string `json:"title"`
		} `json:"xdt_shortcode_media"`
	} `json:"data"`
}

// Extract queries the GraphQL endpoint with the reels document and maps the
// single direct video URL into one HD mp4 format.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	if _, err := e.Validate(); err != nil {
		return nil, err
	}

	variables, err := json.Marshal(map[string]string{"shortcode": e.ID})
	if err != nil {
		return nil, errs.New(failText, http.StatusNotFound)
	}
	form := url.Values{
		"av":        {"0"},
		"__d":       {"www"},
		"__user":    {"0"},
		"__a":       {"1"},
		"__req":     {"b"},
		"dpr":       {"3"},
		"variables": {string(variables)},
		"doc_id":    {docID},
	}
	headers := map[string]string{
		"X-IG-App-ID": igAppID,
	}

	body, err := e.client.PostForm(ctx, graphqlURL, form, headers)
	if err != nil {
		log.Warn("instagram graphql failed for %s: %v", e.ID, err)
		return nil, errs.New(failText, http.StatusNotFound)
	}

	var res graphqlResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errs.New(failText, http.StatusNotFound)
	}

	media := res.Data.Media
	if media == nil || !media.IsVideo || media.VideoURL == "" {
		return nil, errs.New("Could not extract video URL from Instagram GraphQL", http.StatusNotFound)
	}

	title := media.Title
	if title == "" {
		title = "Instagram Reel " + e.ID
	}

	return &types.ExtractedVideo{
		ID:        e.ID,
		Title:     title,
		Thumbnail: media.DisplayURL,
		OriginURL: e.URL,
		Formats: []types.VideoFormat{{
			URL:     media.VideoURL,
			Ext:     "mp4",
			Quality: "HD",
		}},
	}, nil
}
