package types

// ExtractedVideo is the normalized result of a successful extraction.
// It is request-scoped: built once per extraction call and never mutated or
// persisted afterwards.
type ExtractedVideo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	OriginURL string        `json:"origin_url"`
	Formats   []VideoFormat `json:"formats"`
	Duration  int           `json:"duration,omitempty"`
	Uploader  string        `json:"uploader,omitempty"`
}

// VideoFormat describes one downloadable rendition of a video. URL must point
// at a directly fetchable media resource, never a platform watch page. The
// formats slice of an ExtractedVideo is ordered best-quality-first: height
// descending, bitrate as the tiebreaker.
type VideoFormat struct {
	URL      string `json:"url"`
	Ext      string `json:"ext"`
	Quality  string `json:"quality"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Rate     string `json:"rate,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
}

// DownloadProgress is a snapshot of an ongoing transfer. Speed is
// instantaneous (bytes since the previous tick over elapsed time), not a
// cumulative average. Percentage is zero when the total size is unknown.
type DownloadProgress struct {
	Percentage      float64 `json:"percentage"`
	DownloadedBytes int64   `json:"downloadedBytes"`
	TotalBytes      int64   `json:"totalBytes"`
	Speed           float64 `json:"speed"`
}
