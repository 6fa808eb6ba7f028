package models

// DriveFile is a row of the drive_file catalog table.
type DriveFile struct {
	ID       string
	UserID   *string
	UserHost *string
	MD5      string
	Name     string
	Type     string
	// Size is the legacy 32-bit column; SizeLong holds the real size.
	Size     int32
	SizeLong int64
	Comment  *string

	Blurhash   *string
	Properties FileProperties

	StoredInternal     bool
	URL                string
	ThumbnailURL       *string
	AccessKey          string
	ThumbnailAccessKey *string

	IsSensitive    bool
	MaybeSensitive bool
	IsLink         bool
	FolderID       *string
}

// FileProperties is the JSON "properties" column.
type FileProperties struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Orientation *int    `json:"orientation,omitempty"`
	AvgColor    *string `json:"avgColor,omitempty"`
}

// EffectiveSize prefers the 64-bit size column and falls back to the legacy one.
func (f *DriveFile) EffectiveSize() int64 {
	if f.SizeLong > int64(f.Size) {
		return f.SizeLong
	}
	return int64(f.Size)
}

// DriveFolder is a row of the drive_folder table.
type DriveFolder struct {
	ID       string
	Name     string
	UserID   *string
	ParentID *string
}
