// Package youtube extracts video metadata through the YouTube player API and
// normalizes the returned renditions into the service's format model.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/extractor/youtube/cipher"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/internal/mimeext"
	"github.com/shaunleeweirong/video-downloader/types"
)

var playerURL = "https://www.youtube.com/youtubei/v1/player"

const (
	clientName    = "ANDROID"
	clientVersion = "20.10.38"

	invalidURLMessage = "Invalid Youtube url"
)

var (
	urlPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)
	idPattern  = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
)

var log = logger.Get(logger.ComponentExtractor)

// Extractor resolves youtube.com and youtu.be URLs.
type Extractor struct {
	extractor.Base
	client *client.Client
}

// New is the registry constructor.
func New(rawURL string, c *client.Client) extractor.Extractor {
	return &Extractor{Base: extractor.Base{URL: rawURL}, client: c}
}

// Validate matches the URL pattern and captures the 11-character video ID.
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

// Extract fetches the player response and maps it to an ExtractedVideo.
func (e *Extractor) Extract(ctx context.Context) (*types.ExtractedVideo, error) {
	id, err := e.Validate()
	if err != nil {
		return nil, err
	}

	pr, err := e.fetchPlayerResponse(ctx, id)
	if err != nil {
		log.Warn("youtube player fetch failed for %s: %v", id, err)
		return nil, errs.ClassifyUpstream(err)
	}

	if err := playabilityError(pr); err != nil {
		return nil, errs.ClassifyUpstream(err)
	}

	formats := e.mapFormats(pr)
	if len(formats) == 0 {
		return nil, errs.NoSuitableFormat()
	}

	duration, _ := strconv.Atoi(pr.VideoDetails.LengthSeconds)
	uploader := pr.VideoDetails.Author
	if uploader == "" {
		uploader = "Unknown"
	}

	log.Info("extracted youtube video %s with %d formats", id, len(formats))
	return &types.ExtractedVideo{
		ID:        id,
		Title:     pr.VideoDetails.Title,
		Thumbnail: bestThumbnail(pr),
		OriginURL: e.URL,
		Formats:   formats,
		Duration:  duration,
		Uploader:  uploader,
	}, nil
}

// playerResponse mirrors the fields of the player API response this
// extractor consumes.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		Thumbnail     struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	StreamingData struct {
		Formats         []rawFormat `json:"formats"`
		AdaptiveFormats []rawFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type rawFormat struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	SignatureCipher string `json:"signatureCipher"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	ContentLength   string `json:"contentLength"`
	QualityLabel    string `json:"qualityLabel"`
}

func (e *Extractor) fetchPlayerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	body, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        clientName,
				"clientVersion":     clientVersion,
				"androidSdkVersion": 30,
				"osName":            "Android",
				"osVersion":         "11",
			},
		},
		"videoId": videoID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, playerURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	client.ApplyBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Referer", "https://www.youtube.com/")
	req.Header.Set("Origin", "https://www.youtube.com")
	req.Header.Set("X-YouTube-Client-Name", "3")
	req.Header.Set("X-YouTube-Client-Version", clientVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("Status code: %d", resp.StatusCode)
	}

	raw, err := client.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse player response: %w", err)
	}
	return &pr, nil
}

// playabilityError converts a non-OK playability status into error text the
// classification table recognises.
func playabilityError(pr *playerResponse) error {
	status := strings.ToUpper(pr.PlayabilityStatus.Status)
	reason := pr.PlayabilityStatus.Reason
	switch status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		return fmt.Errorf("Sign in required: %s", reason)
	case "UNPLAYABLE", "ERROR":
		lower := strings.ToLower(reason)
		switch {
		case strings.Contains(lower, "private"):
			return fmt.Errorf("Private video: %s", reason)
		case strings.Contains(lower, "copyright"):
			return fmt.Errorf("copyright: %s", reason)
		default:
			return fmt.Errorf("Video unavailable: %s", reason)
		}
	default:
		return fmt.Errorf("Video unavailable: %s", reason)
	}
}

// mapFormats filters the renditions to those carrying both audio and video,
// resolves withheld URLs, and ranks the survivors best-first: height
// descending, bitrate descending as the tiebreaker.
func (e *Extractor) mapFormats(pr *playerResponse) []types.VideoFormat {
	all := append(append([]rawFormat{}, pr.StreamingData.Formats...), pr.StreamingData.AdaptiveFormats...)

	muxed := all[:0]
	for _, f := range all {
		if mimeext.HasMuxedTracks(f.MimeType) {
			muxed = append(muxed, f)
		}
	}

	sort.SliceStable(muxed, func(i, j int) bool {
		if muxed[i].Height != muxed[j].Height {
			return muxed[i].Height > muxed[j].Height
		}
		return muxed[i].Bitrate > muxed[j].Bitrate
	})

	out := make([]types.VideoFormat, 0, len(muxed))
	for _, f := range muxed {
		directURL, err := e.resolveFormatURL(f)
		if err != nil {
			log.Debug("dropping itag %d: %v", f.Itag, err)
			continue
		}
		filesize, _ := strconv.ParseInt(f.ContentLength, 10, 64)
		out = append(out, types.VideoFormat{
			URL:      directURL,
			Ext:      mimeext.ExtFromMime(f.MimeType),
			Quality:  qualityLabel(f),
			Width:    f.Width,
			Height:   f.Height,
			Rate:     rateLabel(f.Bitrate),
			Filesize: filesize,
		})
	}
	return out
}

// resolveFormatURL returns the directly fetchable media URL for a rendition,
// deciphering the signature when the URL is withheld.
func (e *Extractor) resolveFormatURL(f rawFormat) (string, error) {
	if strings.TrimSpace(f.URL) != "" {
		return f.URL, nil
	}
	if strings.TrimSpace(f.SignatureCipher) == "" {
		return "", errors.New("no url or signatureCipher")
	}

	parsed, err := url.ParseQuery(f.SignatureCipher)
	if err != nil {
		return "", fmt.Errorf("failed to parse signatureCipher: %w", err)
	}
	sig := parsed.Get("s")
	sp := parsed.Get("sp")
	if sp == "" {
		sp = "signature"
	}
	cipherURL := parsed.Get("url")
	if cipherURL == "" || sig == "" {
		return "", errors.New("signatureCipher missing signature or url")
	}

	playerJSURL, err := cipher.FetchPlayerJS(e.client.HTTPClient, e.URL)
	if err != nil {
		return "", fmt.Errorf("failed to locate player.js: %w", err)
	}
	decoded, err := cipher.Decipher(e.client.HTTPClient, playerJSURL, sig)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(cipherURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse cipher url: %w", err)
	}
	q := u.Query()
	q.Set(sp, decoded)
	if nval := q.Get("n"); nval != "" {
		if nout, err := cipher.DecipherN(e.client.HTTPClient, playerJSURL, nval); err == nil && nout != "" {
			q.Set("n", nout)
		}
	}
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func qualityLabel(f rawFormat) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	return "unknown"
}

func rateLabel(bitrate int) string {
	if bitrate <= 0 {
		return ""
	}
	return fmt.Sprintf("%dkbps", (bitrate+500)/1000)
}

func bestThumbnail(pr *playerResponse) string {
	thumbs := pr.VideoDetails.Thumbnail.Thumbnails
	if len(thumbs) == 0 {
		return ""
	}
	best := thumbs[0]
	for _, t := range thumbs[1:] {
		if t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}
