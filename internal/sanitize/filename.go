// Package sanitize builds safe attachment filenames for the download proxy.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLength bounds the filename base sent in Content-Disposition.
	MaxNameLength = 120
	// DefaultExt is used when the caller supplies no container extension.
	DefaultExt = "mp4"
	// DefaultName replaces empty or fully-stripped titles.
	DefaultName = "video"
)

// unsafeChars covers path separators, Windows-reserved characters and the
// quote characters that would break a quoted Content-Disposition value.
var unsafeChars = regexp.MustCompile("[\\\\/:*?\"<>|'\x00-\x1f]+")

// Ext normalizes a container extension: lowercase, no leading dot, mp4 when
// empty or containing anything but letters and digits.
func Ext(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return DefaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExt
		}
	}
	return ext
}

// AttachmentFilename builds "<safe title>.<ext>" for a Content-Disposition
// header. The result contains no path separators, quotes or control bytes.
func AttachmentFilename(title, ext string) string {
	name := strings.TrimSpace(title)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_ .")
	if name == "" {
		name = DefaultName
	}
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	return name + "." + Ext(ext)
}
