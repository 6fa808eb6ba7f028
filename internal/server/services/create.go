package services

import (
	"context"

	"github.com/dmitrijs2005/driveingest/internal/cryptox"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/storage"
	"golang.org/x/sync/errgroup"
)

// CreateParams is a single-shot upload.
type CreateParams struct {
	Data        []byte
	Name        *string
	Ext         *string
	FolderID    *string
	Comment     *string
	IsSensitive bool
	Force       bool
}

// CreateService stores a whole file in one request and registers it.
type CreateService struct {
	storage   storage.Orchestrator
	preflight *PreflightService
	registrar *Registrar
	prefix    string
	logger    logging.Logger
}

func NewCreateService(st storage.Orchestrator, preflight *PreflightService, registrar *Registrar, prefix string, logger logging.Logger) *CreateService {
	return &CreateService{
		storage:   st,
		preflight: preflight,
		registrar: registrar,
		prefix:    prefix,
		logger:    logger.With("module", "create"),
	}
}

// Create admits, stores and registers p.Data for user. The object write and
// metadata extraction run concurrently.
func (s *CreateService) Create(ctx context.Context, user *models.User, p CreateParams) (*PackedFile, error) {
	contentType, ext := media.Normalize(media.Sniff(p.Data))
	extPtr := p.Ext
	if ext != "" {
		extPtr = &ext
	}

	var name string
	if p.Name != nil {
		name = *p.Name
	}

	decision, err := s.preflight.Check(ctx, PreflightRequest{
		User:     user,
		Size:     int64(len(p.Data)),
		Name:     name,
		Ext:      extPtr,
		FolderID: p.FolderID,
	})
	if err != nil {
		return nil, err
	}

	key := storage.NewKey(s.prefix, ext)
	hasher := cryptox.NewHasher()
	_, _ = hasher.Write(p.Data)

	var info *media.Info
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.storage.Put(gctx, key, p.Data, storage.PutOptions{
			ContentType:  contentType,
			CacheControl: storage.CacheImmutable,
			Disposition:  storage.ContentDisposition(decision.DetectedName),
		})
	})
	g.Go(func() error {
		info = s.registrar.Metadata(gctx, media.Source{Data: p.Data, Key: key, Type: contentType}, media.Options{
			SensitiveThreshold:     decision.SensitiveThreshold,
			SkipSensitiveDetection: decision.SkipSensitiveDetection,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "object write failed", "key", key, "error", err)
		return nil, err
	}
	bytesReceivedTotal.Add(float64(len(p.Data)))

	file, err := s.registrar.Register(ctx, RegisterRequest{
		User:                   user,
		Key:                    key,
		Name:                   decision.DetectedName,
		ContentType:            contentType,
		MD5:                    hasher.SumHex(),
		Size:                   int64(len(p.Data)),
		Comment:                p.Comment,
		FolderID:               p.FolderID,
		IsSensitive:            p.IsSensitive,
		Force:                  p.Force,
		SensitiveThreshold:     decision.SensitiveThreshold,
		SkipSensitiveDetection: decision.SkipSensitiveDetection,
		Data:                   p.Data,
		Info:                   info,
	})
	if err != nil {
		return nil, err
	}
	return s.registrar.Pack(file), nil
}
