package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/events"
	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/driveingest/internal/server/storage"
)

// IDGenerator hands out catalog row ids and reads their creation time back.
type IDGenerator interface {
	New() string
	IDParser
}

// RegisterRequest describes stored content to enter into the catalog.
type RegisterRequest struct {
	User        *models.User
	Key         string
	Name        string
	ContentType string
	MD5         string
	Size        int64
	Comment     *string
	FolderID    *string
	IsSensitive bool
	Force       bool

	SensitiveThreshold     float32
	SkipSensitiveDetection bool

	// Data holds the content when it is still in memory.
	Data []byte
	// Info is metadata computed beforehand; nil means extract it here.
	Info *media.Info
}

// Registrar turns stored content into a catalog entry.
type Registrar struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	policy      PolicySource
	extractor   media.Extractor
	storage     storage.Orchestrator
	publisher   events.Publisher
	ids         IDGenerator
	prefix      string
	baseURL     string
	logger      logging.Logger
}

// RegistrarDeps groups the collaborators of a Registrar.
type RegistrarDeps struct {
	DB            dbx.DBTX
	// Tx scopes the catalog writes of one registration; nil runs them on DB.
	Tx            dbx.Transactor
	Repomanager   repomanager.RepositoryManager
	Policy        PolicySource
	Extractor     media.Extractor
	Storage       storage.Orchestrator
	Publisher     events.Publisher
	IDs           IDGenerator
	Prefix        string
	PublicBaseURL string
	Logger        logging.Logger
}

func NewRegistrar(d RegistrarDeps) *Registrar {
	tx := d.Tx
	if tx == nil {
		tx = dbx.Direct(d.DB)
	}
	return &Registrar{
		db:          d.DB,
		tx:          tx,
		repomanager: d.Repomanager,
		policy:      d.Policy,
		extractor:   d.Extractor,
		storage:     d.Storage,
		publisher:   d.Publisher,
		ids:         d.IDs,
		prefix:      d.Prefix,
		baseURL:     d.PublicBaseURL,
		logger:      d.Logger.With("module", "registrar"),
	}
}

// Metadata runs the extractor for src. Extraction failures are logged and
// yield an empty Info; a file without metadata is still a valid file.
func (r *Registrar) Metadata(ctx context.Context, src media.Source, opts media.Options) *media.Info {
	if media.IsVideo(src.Type) {
		meta, err := r.policy.Meta(ctx)
		if err != nil || !meta.EnableSensitiveMediaDetectionForVideos {
			opts.SkipSensitiveDetection = true
		}
	}

	info, err := r.extractor.Extract(ctx, src, opts)
	if err != nil {
		r.logger.Warn(ctx, "metadata extraction failed", "key", src.Key, "type", src.Type, "error", err)
		return &media.Info{}
	}
	return info
}

// Register deduplicates, extracts metadata, stores the thumbnail, writes
// the catalog row and notifies the owner. With an owner and without Force,
// content already in the owner's drive yields the existing entry.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*models.DriveFile, error) {
	meta, err := r.policy.Meta(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := r.policy.RolePolicies(ctx, req.User)
	if err != nil {
		return nil, err
	}

	var profile *models.UserProfile
	if req.User != nil {
		if profile, err = r.policy.Profile(ctx, req.User.ID); err != nil {
			return nil, err
		}
	}

	inputs := SensitivityInputs{
		Requested:             req.IsSensitive,
		RoleAlwaysMarkNsfw:    policies.AlwaysMarkNsfw,
		InstanceAutoSensitive: meta.SetSensitiveFlagAutomatically,
	}
	if req.User != nil {
		inputs.HostMediaSilenced = IsMediaSilencedHost(meta.MediaSilencedHosts, req.User.Host)
	}
	if profile != nil {
		inputs.ProfileAlwaysMarkNsfw = profile.AlwaysMarkNsfw
		inputs.ProfileAutoSensitive = profile.AutoSensitive
	}

	filesRepo := r.repomanager.Files(r.db)

	if req.User != nil && !req.Force {
		existing, err := filesRepo.FindByMD5(ctx, req.User.ID, req.MD5)
		switch {
		case err == nil:
			return r.reuse(ctx, existing, inputs.Sensitive())
		case !errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("%w: dedup lookup: %v", common.ErrorInternal, err)
		}
	}

	info := req.Info
	if info == nil {
		info = r.Metadata(ctx, media.Source{Data: req.Data, Key: req.Key, Type: req.ContentType}, media.Options{
			SensitiveThreshold:     req.SensitiveThreshold,
			SkipSensitiveDetection: req.SkipSensitiveDetection,
		})
	}
	inputs.MaybeSensitive = info.MaybeSensitive

	file := &models.DriveFile{
		ID:             r.ids.New(),
		MD5:            req.MD5,
		Name:           req.Name,
		Type:           req.ContentType,
		Size:           int32(min(req.Size, math.MaxInt32)),
		SizeLong:       req.Size,
		Comment:        req.Comment,
		URL:            r.baseURL + req.Key,
		AccessKey:      req.Key,
		IsSensitive:    inputs.Sensitive(),
		MaybeSensitive: info.MaybeSensitive,
	}
	if req.User != nil {
		uid := req.User.ID
		file.UserID = &uid
		file.UserHost = req.User.Host
	}
	if info.Blurhash != "" {
		bh := info.Blurhash
		file.Blurhash = &bh
	}
	if info.Width > 0 {
		w := info.Width
		file.Properties.Width = &w
	}
	if info.Height > 0 {
		h := info.Height
		file.Properties.Height = &h
	}
	if key := r.storeThumbnail(ctx, info, req.Name); key != "" {
		u := r.baseURL + key
		file.ThumbnailURL = &u
		file.ThumbnailAccessKey = &key
	}

	// The folder may be deleted while metadata is extracted; check it in the
	// same transaction as the insert.
	err = r.tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		folderID, err := r.ownedFolder(ctx, tx, req.User, req.FolderID)
		if err != nil {
			return err
		}
		file.FolderID = folderID
		if err := r.repomanager.Files(tx).Create(ctx, file); err != nil {
			return fmt.Errorf("%w: create file: %v", common.ErrorInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	registrationsTotal.WithLabelValues("created").Inc()
	r.logger.Info(ctx, "drive file created", "id", file.ID, "key", file.AccessKey, "size", req.Size)

	r.publish(ctx, file)
	return file, nil
}

func (r *Registrar) reuse(ctx context.Context, existing *models.DriveFile, sensitive bool) (*models.DriveFile, error) {
	if sensitive && !existing.IsSensitive {
		if err := r.repomanager.Files(r.db).MarkSensitive(ctx, existing.ID); err != nil {
			r.logger.Warn(ctx, "mark sensitive failed", "id", existing.ID, "error", err)
		} else {
			existing.IsSensitive = true
		}
	}
	registrationsTotal.WithLabelValues("deduplicated").Inc()
	r.logger.Info(ctx, "file with same hash found", "id", existing.ID)
	return existing, nil
}

func (r *Registrar) ownedFolder(ctx context.Context, db dbx.DBTX, user *models.User, folderID *string) (*string, error) {
	if folderID == nil || user == nil {
		return nil, nil
	}
	folder, err := r.repomanager.Folders(db).GetOwned(ctx, *folderID, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			r.logger.Warn(ctx, "folder vanished before registration", "folder_id", *folderID)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: fetch folder: %v", common.ErrorInternal, err)
	}
	return &folder.ID, nil
}

// storeThumbnail writes the generated thumbnail and returns its key, or ""
// when there is none or it could not be stored.
func (r *Registrar) storeThumbnail(ctx context.Context, info *media.Info, name string) string {
	if len(info.Thumbnail) == 0 {
		return ""
	}
	key := storage.ThumbnailKey(r.prefix)
	err := r.storage.Put(ctx, key, info.Thumbnail, storage.PutOptions{
		ContentType:  info.ThumbnailType,
		CacheControl: storage.CacheImmutable,
		Disposition:  storage.ContentDisposition(name),
	})
	if err != nil {
		r.logger.Warn(ctx, "thumbnail upload failed", "key", key, "error", err)
		return ""
	}
	return key
}

// Pack renders file with the creation time taken from its id.
func (r *Registrar) Pack(file *models.DriveFile) *PackedFile {
	return Pack(file, r.ids)
}

func (r *Registrar) publish(ctx context.Context, file *models.DriveFile) {
	if file.UserID == nil {
		return
	}
	packed := r.Pack(file)
	if err := r.publisher.PublishMainStream(ctx, *file.UserID, events.EventDriveFileCreated, packed); err != nil {
		r.logger.Warn(ctx, "publish main stream failed", "id", file.ID, "error", err)
	}
	if err := r.publisher.PublishDriveStream(ctx, *file.UserID, events.EventFileCreated, packed); err != nil {
		r.logger.Warn(ctx, "publish drive stream failed", "id", file.ID, "error", err)
	}
}
