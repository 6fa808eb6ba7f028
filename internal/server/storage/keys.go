package storage

import (
	"strings"

	"github.com/google/uuid"
)

// NewKey returns a fresh object key under prefix. ext is appended verbatim
// and may be empty.
func NewKey(prefix, ext string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + uuid.NewString() + ext
}

// ThumbnailKey returns a fresh key for a JPEG thumbnail under prefix.
func ThumbnailKey(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/thumbnail-" + uuid.NewString() + ".jpg"
}

// ContentDisposition renders an inline disposition header for name.
// Every byte outside [A-Za-z0-9] is percent-encoded so the header stays
// ASCII and the quoted string cannot be terminated early.
func ContentDisposition(name string) string {
	return `inline; filename="` + escapeFilename(name) + `"`
}

func escapeFilename(name string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(name) * 3)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
