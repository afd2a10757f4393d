// Package opengraph reads the Open Graph meta tags crawlers rely on
// from a fetched HTML page.
package opengraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaunleeweirong/video-downloader/client"
)

// Page holds the subset of Open Graph properties the extractors use.
type Page struct {
	Title    string
	Image    string
	VideoURL string
}

// Fetch downloads pageURL with browser headers and parses its og tags.
// The video URL prefers og:video:secure_url over og:video:url over
// og:video, matching the order platforms populate them in.
func Fetch(ctx context.Context, c *client.Client, pageURL string) (*Page, error) {
	resp, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Status code: %d", resp.StatusCode)
	}
	body, err := client.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Page{
		Title:    metaContent(doc, "og:title"),
		Image:    metaContent(doc, "og:image"),
		VideoURL: metaContent(doc, "og:video:secure_url", "og:video:url", "og:video"),
	}, nil
}

// metaContent returns the content of the first matching og property.
func metaContent(doc *goquery.Document, properties ...string) string {
	for _, property := range properties {
		sel := fmt.Sprintf(`meta[property=%q]`, property)
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	return ""
}
