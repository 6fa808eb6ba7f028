package models

// UploadSessionVersion is bumped whenever the stored layout changes.
const UploadSessionVersion = 1

// UploadPart is one accepted multipart part.
type UploadPart struct {
	Number int32  `json:"n"`
	ETag   string `json:"etag"`
	Size   int64  `json:"size"`
}

// UploadSession is the state of a resumable upload between requests. It is
// stored as JSON under a hash of the client's session token.
type UploadSession struct {
	Version int `json:"v"`

	UserID      *string      `json:"user_id"`
	Key         string       `json:"key"`
	UploadID    *string      `json:"upload_id,omitempty"`
	PartNumber  int32        `json:"part_number"`
	Received    int64        `json:"received"`
	ContentType string       `json:"content_type"`
	Parts       []UploadPart `json:"parts"`
	HashState   string       `json:"hash_state"`

	// Name is the sanitized display name before extension reconciliation.
	Name        string  `json:"name"`
	Ext         *string `json:"ext,omitempty"`
	Comment     *string `json:"comment,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
	IsSensitive bool    `json:"is_sensitive"`
	Force       bool    `json:"force"`

	SensitiveThreshold     float32 `json:"sensitive_threshold"`
	SkipSensitiveDetection bool    `json:"skip_sensitive_detection"`
	DeclaredSize           int64   `json:"declared_size"`
}

// LastPart returns the most recently accepted part, or nil.
func (s *UploadSession) LastPart() *UploadPart {
	if len(s.Parts) == 0 {
		return nil
	}
	return &s.Parts[len(s.Parts)-1]
}
