package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/server/idgen"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack(t *testing.T) {
	g, err := idgen.New(idgen.MethodAidx)
	require.NoError(t, err)
	created := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)

	f := &models.DriveFile{
		ID:       g.At(created),
		Name:     "cat.png",
		Type:     "image/png",
		MD5:      "abc",
		Size:     1 << 30,
		SizeLong: 5 << 30,
		URL:      "https://example.tld/files/k.png",
		Properties: models.FileProperties{
			Width:       ptr(100),
			Height:      ptr(200),
			Orientation: ptr(6),
		},
	}

	p := Pack(f, g)
	assert.Equal(t, "2024-03-01T12:30:00.123Z", p.CreatedAt)
	assert.Equal(t, int64(5<<30), p.Size)
	assert.Equal(t, 200, *p.Properties.Width)
	assert.Equal(t, 100, *p.Properties.Height)
	require.NotNil(t, p.ThumbnailURL)
	assert.Equal(t, f.URL, *p.ThumbnailURL)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "`+f.ID+`",
		"createdAt": "2024-03-01T12:30:00.123Z",
		"name": "cat.png",
		"type": "image/png",
		"md5": "abc",
		"size": 5368709120,
		"isSensitive": false,
		"blurhash": null,
		"properties": {"width": 200, "height": 100},
		"url": "https://example.tld/files/k.png",
		"thumbnailUrl": "https://example.tld/files/k.png",
		"comment": null,
		"folderId": null,
		"userId": null
	}`, string(raw))
}

func TestPack_ThumbnailURL(t *testing.T) {
	thumb := "https://example.tld/files/thumbnail-x.jpg"

	assert.Equal(t, thumb, *Pack(&models.DriveFile{Type: "video/mp4", ThumbnailURL: &thumb}, nil).ThumbnailURL)
	assert.Nil(t, Pack(&models.DriveFile{Type: "video/mp4", URL: "u"}, nil).ThumbnailURL)
	assert.Nil(t, Pack(&models.DriveFile{Type: "application/pdf", URL: "u"}, nil).ThumbnailURL)
}

func TestPack_CreatedAtFollowsIDScheme(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)
	meid, err := idgen.New(idgen.MethodMeid)
	require.NoError(t, err)
	aidx, err := idgen.New(idgen.MethodAidx)
	require.NoError(t, err)

	f := &models.DriveFile{ID: meid.At(created)}
	assert.Equal(t, "2024-03-01T12:30:00.123Z", Pack(f, meid).CreatedAt)
	assert.Empty(t, Pack(f, aidx).CreatedAt)
	assert.Empty(t, Pack(f, nil).CreatedAt)
	assert.Empty(t, Pack(&models.DriveFile{ID: "not-an-id"}, aidx).CreatedAt)
}
