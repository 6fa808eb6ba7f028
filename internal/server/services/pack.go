package services

import (
	"time"

	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// PackedFileProperties are the public image dimensions.
type PackedFileProperties struct {
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// PackedFile is the client-facing representation of a drive file.
type PackedFile struct {
	ID           string               `json:"id"`
	CreatedAt    string               `json:"createdAt"`
	Name         string               `json:"name"`
	Type         string               `json:"type"`
	MD5          string               `json:"md5"`
	Size         int64                `json:"size"`
	IsSensitive  bool                 `json:"isSensitive"`
	Blurhash     *string              `json:"blurhash"`
	Properties   PackedFileProperties `json:"properties"`
	URL          string               `json:"url"`
	ThumbnailURL *string              `json:"thumbnailUrl"`
	Comment      *string              `json:"comment"`
	FolderID     *string              `json:"folderId"`
	UserID       *string              `json:"userId"`
}

// IDParser recovers the creation time encoded in a row id.
type IDParser interface {
	Parse(id string) (time.Time, error)
}

// Pack renders f for clients. createdAt stays empty when ids is nil or the
// id does not parse.
func Pack(f *models.DriveFile, ids IDParser) *PackedFile {
	p := &PackedFile{
		ID:           f.ID,
		Name:         f.Name,
		Type:         f.Type,
		MD5:          f.MD5,
		Size:         f.EffectiveSize(),
		IsSensitive:  f.IsSensitive,
		Blurhash:     f.Blurhash,
		Properties:   publicProperties(f.Properties),
		URL:          f.URL,
		ThumbnailURL: thumbnailURL(f),
		Comment:      f.Comment,
		FolderID:     f.FolderID,
		UserID:       f.UserID,
	}
	if ids != nil {
		if t, err := ids.Parse(f.ID); err == nil {
			p.CreatedAt = t.UTC().Format(isoMillis)
		}
	}
	return p
}

// publicProperties swaps the dimensions of images stored rotated by EXIF
// orientation 5 to 8.
func publicProperties(props models.FileProperties) PackedFileProperties {
	p := PackedFileProperties{Width: props.Width, Height: props.Height}
	if props.Orientation != nil && *props.Orientation >= 5 {
		p.Width, p.Height = p.Height, p.Width
	}
	return p
}

func thumbnailURL(f *models.DriveFile) *string {
	if f.ThumbnailURL != nil {
		return f.ThumbnailURL
	}
	if media.IsVideo(f.Type) || !media.IsThumbnailable(f.Type) {
		return nil
	}
	u := f.URL
	return &u
}
