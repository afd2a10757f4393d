// Package extractor defines the contract every platform extractor implements
// and the registry that resolves an incoming URL to the extractor owning it.
package extractor

import (
	"context"

	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/types"
)

// Extractor resolves one platform URL into normalized video metadata.
//
// Validate is pure and synchronous: it matches the platform URL pattern,
// stores the platform-native identifier, and returns it. It performs no
// network I/O and fails with a 400 RequestError on mismatch.
//
// Extract performs the platform fetch and maps the result into an
// ExtractedVideo whose formats slice is non-empty and ordered
// best-quality-first. Implementations call Validate themselves so extraction
// never proceeds on an unvalidated URL.
type Extractor interface {
	Validate() (string, error)
	Extract(ctx context.Context) (*types.ExtractedVideo, error)
}

// Constructor builds an extractor for a candidate URL.
type Constructor func(url string, c *client.Client) Extractor

// Base holds the fields shared by every platform variant: the input URL and
// the identifier Validate populates. It carries no behavior beyond storage;
// each platform's quirks stay isolated in its own package.
type Base struct {
	URL string
	ID  string
}
