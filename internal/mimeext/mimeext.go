// Package mimeext maps between container extensions, MIME types and the
// codec lists platform APIs embed in format mimeType strings.
package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when a MIME type is unknown or empty.
	DefaultExt = "mp4"

	ExtM4A  = "m4a"
	ExtWebM = "webm"

	MimeVideoMP4  = "video/mp4"
	MimeAudioMP4  = "audio/mp4"
	MimeVideoWebM = "video/webm"
	MimeAudioWebM = "audio/webm"
)

// audioCodecPrefixes and videoCodecPrefixes identify track types inside a
// codecs="..." list, e.g. `video/mp4; codecs="avc1.64001F, mp4a.40.2"`.
var (
	audioCodecPrefixes = []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "dtse"}
	videoCodecPrefixes = []string{"avc1", "avc3", "vp8", "vp9", "vp09", "av01", "hev1", "hvc1"}
)

// ContentTypeForExt returns the Content-Type the proxy serves for a container
// extension, defaulting to video/<ext>.
func ContentTypeForExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	switch ext {
	case "", "mp4":
		return MimeVideoMP4
	case ExtM4A:
		return MimeAudioMP4
	case ExtWebM:
		return MimeVideoWebM
	case "mp3":
		return "audio/mpeg"
	}
	return "video/" + ext
}

// ExtFromMime returns the file extension (without dot) for a MIME type,
// falling back to the subtype, then mp4.
func ExtFromMime(mime string) string {
	base := baseMime(mime)
	switch base {
	case "":
		return DefaultExt
	case MimeVideoMP4:
		return DefaultExt
	case MimeAudioMP4:
		return ExtM4A
	case MimeVideoWebM, MimeAudioWebM:
		return ExtWebM
	}
	parts := strings.Split(base, "/")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return DefaultExt
}

// HasMuxedTracks reports whether a format mimeType declares both an audio and
// a video codec. Adaptive renditions carrying only one track type fail this.
func HasMuxedTracks(mime string) bool {
	codecs := codecList(mime)
	if len(codecs) == 0 {
		return false
	}
	var audio, video bool
	for _, c := range codecs {
		if hasAnyPrefix(c, audioCodecPrefixes) {
			audio = true
		}
		if hasAnyPrefix(c, videoCodecPrefixes) {
			video = true
		}
	}
	return audio && video
}

func baseMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

func codecList(mime string) []string {
	mime = strings.ToLower(mime)
	i := strings.Index(mime, `codecs="`)
	if i < 0 {
		return nil
	}
	rest := mime[i+len(`codecs="`):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return nil
	}
	parts := strings.Split(rest[:j], ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
