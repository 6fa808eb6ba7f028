package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const OctetStream = "application/octet-stream"

var browserSafe = map[string]struct{}{
	"image/png":       {},
	"image/gif":       {},
	"image/jpeg":      {},
	"image/webp":      {},
	"image/avif":      {},
	"image/apng":      {},
	"image/bmp":       {},
	"image/tiff":      {},
	"image/x-icon":    {},
	"audio/opus":      {},
	"video/ogg":       {},
	"audio/ogg":       {},
	"application/ogg": {},
	"video/quicktime": {},
	"video/mp4":       {},
	"audio/mp4":       {},
	"video/x-m4v":     {},
	"audio/x-m4a":     {},
	"video/3gpp":      {},
	"video/3gpp2":     {},
	"video/mpeg":      {},
	"audio/mpeg":      {},
	"video/webm":      {},
	"audio/webm":      {},
	"audio/aac":       {},
	"audio/x-flac":    {},
	"audio/flac":      {},
	"audio/vnd.wave":  {},
}

// Types a browser renders as an image; a file of one of these types is its
// own thumbnail when no separate one was generated.
var thumbnailable = map[string]struct{}{
	"image/jpeg":             {},
	"image/tiff":             {},
	"image/png":              {},
	"image/gif":              {},
	"image/apng":             {},
	"image/vnd.mozilla.apng": {},
	"image/webp":             {},
	"image/avif":             {},
	"image/svg+xml":          {},
}

// IsBrowserSafe reports whether contentType may be served inline.
func IsBrowserSafe(contentType string) bool {
	_, ok := browserSafe[contentType]
	return ok
}

// IsThumbnailable reports whether the original can stand in for a thumbnail.
func IsThumbnailable(contentType string) bool {
	_, ok := thumbnailable[contentType]
	return ok
}

func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

func IsVideo(contentType string) bool {
	return strings.HasPrefix(contentType, "video/")
}

// Sniff detects the type of data from its leading bytes. The returned
// extension includes the dot and is empty when the type is unknown.
func Sniff(data []byte) (string, string) {
	m := mimetype.Detect(data)
	contentType := m.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == OctetStream {
		return OctetStream, ""
	}
	return contentType, m.Extension()
}

// Normalize maps a sniffed type to what is stored: animated PNG is stored
// as PNG, and anything a browser should not render inline is downgraded to
// an opaque byte stream without an extension.
func Normalize(contentType, ext string) (string, string) {
	if contentType == "image/apng" || contentType == "image/vnd.mozilla.apng" {
		contentType = "image/png"
	}
	if !IsBrowserSafe(contentType) {
		return OctetStream, ""
	}
	return contentType, ext
}
