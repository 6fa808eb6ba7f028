package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	k := NewKey("files/", ".png")
	assert.True(t, strings.HasPrefix(k, "files/"))
	assert.True(t, strings.HasSuffix(k, ".png"))
	assert.Len(t, k, len("files/")+36+len(".png"))
	assert.NotEqual(t, k, NewKey("files", ".png"))
}

func TestThumbnailKey(t *testing.T) {
	k := ThumbnailKey("files")
	assert.True(t, strings.HasPrefix(k, "files/thumbnail-"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc123", `inline; filename="abc123"`},
		{"quote", `a"b`, `inline; filename="a%22b"`},
		{"utf8", "é", `inline; filename="%C3%A9"`},
		{"dot", "x.jpg", `inline; filename="x%2Ejpg"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentDisposition(tt.in))
		})
	}
}
