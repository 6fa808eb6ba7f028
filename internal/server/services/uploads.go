package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/cryptox"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/driveingest/internal/server/sessions"
	"github.com/dmitrijs2005/driveingest/internal/server/storage"
	"github.com/google/uuid"
)

// Reasons a part is refused.
const (
	ReasonEmptyPart    Reason = "EmptyPart"
	ReasonPartTooLarge Reason = "PartTooLarge"
	ReasonPartTooSmall Reason = "PartTooSmall"
)

// PartError refuses a part without touching the session.
type PartError struct {
	Reason Reason
}

func (e *PartError) Error() string       { return "partial upload: " + string(e.Reason) }
func (e *PartError) Unwrap() error       { return common.ErrorValidation }
func (e *PartError) ErrorStatus() string { return string(e.Reason) }

// PreflightParams is the body of a multipart preflight request.
type PreflightParams struct {
	ContentLength int64
	FolderID      *string
	Name          *string
	IsSensitive   bool
	Comment       *string
	Force         bool
}

// PreflightResult tells the client how to split its upload.
type PreflightResult struct {
	AllowUpload  bool   `json:"allow_upload"`
	MinSplitSize int64  `json:"min_split_size"`
	MaxSplitSize int64  `json:"max_split_size"`
	SessionID    string `json:"session_id"`
}

// PartResult reports the session progress after an accepted part.
type PartResult struct {
	PartNumber    int32 `json:"part_number"`
	BytesReceived int64 `json:"bytes_received"`
}

// UploadService drives resumable uploads: preflight creates a session,
// each part is stored and folded into the running digest, finish commits
// the object and registers it, abort discards everything.
type UploadService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	sessions    sessions.Store
	storage     storage.Orchestrator
	preflight   *PreflightService
	registrar   *Registrar
	prefix      string
	sessionTTL  time.Duration
	lockTTL     time.Duration
	partMaxSize int64
	logger      logging.Logger
}

func NewUploadService(db dbx.DBTX, rm repomanager.RepositoryManager, store sessions.Store, st storage.Orchestrator,
	preflight *PreflightService, registrar *Registrar, cfg *config.Config, logger logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: rm,
		sessions:    store,
		storage:     st,
		preflight:   preflight,
		registrar:   registrar,
		prefix:      cfg.Prefix,
		sessionTTL:  cfg.SessionTTL,
		lockTTL:     cfg.S3Timeout + 10*time.Second,
		partMaxSize: cfg.PartMaxSize,
		logger:      logger.With("module", "uploads"),
	}
}

// Preflight admits an upload for user and opens its session.
func (s *UploadService) Preflight(ctx context.Context, user *models.User, p PreflightParams) (*PreflightResult, error) {
	if p.ContentLength < 0 {
		return nil, fmt.Errorf("%w: negative content length", common.ErrorValidation)
	}

	var name string
	if p.Name != nil {
		name = *p.Name
	}

	decision, err := s.preflight.Check(ctx, PreflightRequest{
		User:     user,
		Size:     p.ContentLength,
		Name:     name,
		FolderID: p.FolderID,
	})
	if err != nil {
		return nil, err
	}

	state, err := cryptox.NewHasher().Export()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	var owner *string
	uid := ""
	if user != nil {
		owner, uid = &user.ID, user.ID
	}
	sess := &models.UploadSession{
		UserID:                 owner,
		Key:                    storage.NewKey(s.prefix, ""),
		ContentType:            media.OctetStream,
		HashState:              state,
		Name:                   decision.Name,
		Comment:                p.Comment,
		FolderID:               p.FolderID,
		IsSensitive:            p.IsSensitive,
		Force:                  p.Force,
		SensitiveThreshold:     decision.SensitiveThreshold,
		SkipSensitiveDetection: decision.SkipSensitiveDetection,
		DeclaredSize:           p.ContentLength,
	}

	token := uuid.NewString()
	if err := s.sessions.Create(ctx, token, sess, s.sessionTTL); err != nil {
		return nil, err
	}
	sessionsTotal.WithLabelValues("created").Inc()
	s.logger.Info(ctx, "upload session created", "user_id", uid, "key", sess.Key, "declared_size", p.ContentLength)

	return &PreflightResult{
		AllowUpload:  true,
		MinSplitSize: config.MinPartSize,
		MaxSplitSize: s.partMaxSize,
		SessionID:    token,
	}, nil
}

// AppendPart stores body as the next part of the session. If anything
// fails the stored session is left as it was.
func (s *UploadService) AppendPart(ctx context.Context, token string, body []byte) (*PartResult, error) {
	unlock, err := s.sessions.Lock(ctx, token, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}

	size := int64(len(body))
	switch {
	case size == 0:
		return nil, &PartError{Reason: ReasonEmptyPart}
	case size > s.partMaxSize:
		return nil, &PartError{Reason: ReasonPartTooLarge}
	}
	if last := sess.LastPart(); last != nil && last.Size < config.MinPartSize {
		return nil, &PartError{Reason: ReasonPartTooSmall}
	}

	hasher, err := cryptox.RestoreHasher(sess.HashState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessions.ErrCorrupt, err)
	}

	opened := false
	if sess.UploadID == nil {
		contentType, ext := media.Normalize(media.Sniff(body))
		sess.ContentType = contentType
		if ext != "" {
			sess.Ext = &ext
		}

		uploadID, err := s.storage.OpenMultipart(ctx, sess.Key, storage.PutOptions{
			ContentType:  sess.ContentType,
			CacheControl: storage.CacheImmutable,
			Disposition:  storage.ContentDisposition(CorrectFilename(sess.Name, sess.Ext)),
		})
		if err != nil {
			return nil, err
		}
		sess.UploadID = &uploadID
		opened = true
	}

	number := sess.PartNumber + 1
	// An upload opened here is recorded only by the Save below; any failure
	// before that leaves nothing that could cancel it later.
	dropOpened := func() {
		if opened {
			s.storage.AbortMultipart(context.WithoutCancel(ctx), sess.Key, *sess.UploadID)
		}
	}

	etag, err := s.storage.UploadPart(ctx, sess.Key, *sess.UploadID, number, body)
	if err != nil {
		dropOpened()
		return nil, err
	}

	_, _ = hasher.Write(body)
	state, err := hasher.Export()
	if err != nil {
		dropOpened()
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	sess.PartNumber = number
	sess.Received += size
	sess.HashState = state
	sess.Parts = append(sess.Parts, models.UploadPart{Number: number, ETag: etag, Size: size})

	if err := s.sessions.Save(ctx, token, sess, s.sessionTTL); err != nil {
		dropOpened()
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	partsTotal.Inc()
	bytesReceivedTotal.Add(float64(size))
	s.logger.Debug(ctx, "part accepted", "key", sess.Key, "part", number, "bytes", size, "received", sess.Received)

	return &PartResult{PartNumber: number, BytesReceived: sess.Received}, nil
}

// Finish commits the uploaded parts and registers the file. A commit
// failure keeps the session so the client may retry.
func (s *UploadService) Finish(ctx context.Context, token string) (*PackedFile, error) {
	unlock, err := s.sessions.Lock(ctx, token, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.owner(ctx, sess)
	if err != nil {
		return nil, err
	}

	hasher, err := cryptox.RestoreHasher(sess.HashState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessions.ErrCorrupt, err)
	}

	if err := s.preflight.CheckSize(ctx, user, sess.Received); err != nil {
		if _, terr := s.sessions.Take(ctx, token); terr == nil && sess.UploadID != nil {
			s.storage.AbortMultipart(context.WithoutCancel(ctx), sess.Key, *sess.UploadID)
		}
		return nil, err
	}

	name := CorrectFilename(sess.Name, sess.Ext)
	if sess.UploadID == nil {
		err = s.storage.Put(ctx, sess.Key, nil, storage.PutOptions{
			ContentType:  sess.ContentType,
			CacheControl: storage.CacheImmutable,
			Disposition:  storage.ContentDisposition(name),
		})
	} else {
		err = s.storage.CompleteMultipart(ctx, sess.Key, *sess.UploadID, sess.Parts)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Take(ctx, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	sessionsTotal.WithLabelValues("finished").Inc()

	file, err := s.registrar.Register(ctx, RegisterRequest{
		User:                   user,
		Key:                    sess.Key,
		Name:                   name,
		ContentType:            sess.ContentType,
		MD5:                    hasher.SumHex(),
		Size:                   sess.Received,
		Comment:                sess.Comment,
		FolderID:               sess.FolderID,
		IsSensitive:            sess.IsSensitive,
		Force:                  sess.Force,
		SensitiveThreshold:     sess.SensitiveThreshold,
		SkipSensitiveDetection: sess.SkipSensitiveDetection,
	})
	if err != nil {
		return nil, err
	}
	return s.registrar.Pack(file), nil
}

// Abort discards the session and cancels its multipart upload, if one was
// opened. Cancellation errors are only logged.
func (s *UploadService) Abort(ctx context.Context, token string) error {
	sess, err := s.sessions.Take(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return err
	}

	if sess.UploadID != nil {
		s.storage.AbortMultipart(ctx, sess.Key, *sess.UploadID)
	}
	sessionsTotal.WithLabelValues("aborted").Inc()
	s.logger.Info(ctx, "upload session aborted", "key", sess.Key, "parts", len(sess.Parts))
	return nil
}

func (s *UploadService) load(ctx context.Context, token string) (*models.UploadSession, error) {
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return sess, nil
}

func (s *UploadService) owner(ctx context.Context, sess *models.UploadSession) (*models.User, error) {
	if sess.UserID == nil {
		return nil, nil
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, *sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: load owner: %v", common.ErrorInternal, err)
	}
	return user, nil
}
