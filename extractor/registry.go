package extractor

import (
	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/errs"
)

// Registry tries extractor constructors in a fixed priority order; list
// order is priority. Resolution is a pure selection step with no I/O.
type Registry struct {
	client       *client.Client
	constructors []Constructor
}

// NewRegistry builds a registry over the given constructors. The client is
// handed to every extractor the registry instantiates.
func NewRegistry(c *client.Client, constructors ...Constructor) *Registry {
	return &Registry{client: c, constructors: constructors}
}

// Resolve returns the first extractor whose Validate accepts rawURL. Each
// registered extractor is tried at most once; when none validates the URL is
// from an unsupported platform (400).
func (r *Registry) Resolve(rawURL string) (Extractor, error) {
	for _, construct := range r.constructors {
		ex := construct(rawURL, r.client)
		if _, err := ex.Validate(); err == nil {
			return ex, nil
		}
	}
	return nil, errs.UnsupportedPlatform()
}
