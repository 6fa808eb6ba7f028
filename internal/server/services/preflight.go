package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
)

// Reason names why an upload was refused. It is sent to clients verbatim
// in the X-ErrorStatus header.
type Reason string

const (
	ReasonFileSizeLimitOver   Reason = "FileSizeLimitOver"
	ReasonExtTooLarge         Reason = "ExtTooLarge"
	ReasonBadExt              Reason = "BadExt"
	ReasonNoFreeSpace         Reason = "NoFreeSpace"
	ReasonFolderNotFound      Reason = "FolderNotFound"
	ReasonInternalServerError Reason = "InternalServerError"
)

// PreflightError is a refused admission. errors.Is matches it against the
// common error kind of its reason and against the wrapped cause, if any.
type PreflightError struct {
	Reason Reason
	Err    error
}

func (e *PreflightError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preflight: %s: %v", e.Reason, e.Err)
	}
	return "preflight: " + string(e.Reason)
}

func (e *PreflightError) Unwrap() []error {
	kind := reasonKind(e.Reason)
	if e.Err != nil {
		return []error{kind, e.Err}
	}
	return []error{kind}
}

// ErrorStatus is the value of the X-ErrorStatus response header.
func (e *PreflightError) ErrorStatus() string {
	return string(e.Reason)
}

func reasonKind(r Reason) error {
	switch r {
	case ReasonFileSizeLimitOver, ReasonNoFreeSpace:
		return common.ErrorQuotaExceeded
	case ReasonInternalServerError:
		return common.ErrorInternal
	default:
		return common.ErrorValidation
	}
}

func rejectf(r Reason, err error) error {
	return &PreflightError{Reason: r, Err: err}
}

// PolicySource supplies instance settings, role policies and profiles.
type PolicySource interface {
	Meta(ctx context.Context) (*models.Meta, error)
	RolePolicies(ctx context.Context, user *models.User) (models.RolePolicies, error)
	Profile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// PreflightRequest describes an upload about to happen. User is nil for
// uploads made by the instance itself.
type PreflightRequest struct {
	User     *models.User
	Size     int64
	Name     string
	Ext      *string
	IsLink   bool
	FolderID *string
}

// PreflightDecision carries what admission decided for the upload.
type PreflightDecision struct {
	SkipSensitiveDetection bool
	SensitiveThreshold     float32
	EnableVideoDetection   bool
	// Name is the sanitized name, DetectedName the name reconciled with Ext.
	Name         string
	DetectedName string
}

// PreflightService admits or refuses uploads.
type PreflightService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	policy      PolicySource
	logger      logging.Logger
}

func NewPreflightService(db dbx.DBTX, rm repomanager.RepositoryManager, policy PolicySource, logger logging.Logger) *PreflightService {
	return &PreflightService{
		db:          db,
		repomanager: rm,
		policy:      policy,
		logger:      logger.With("module", "preflight"),
	}
}

// Check runs every admission rule for req. Failures are *PreflightError.
func (s *PreflightService) Check(ctx context.Context, req PreflightRequest) (*PreflightDecision, error) {
	meta, err := s.policy.Meta(ctx)
	if err != nil {
		return nil, rejectf(ReasonInternalServerError, err)
	}
	policies, err := s.policy.RolePolicies(ctx, req.User)
	if err != nil {
		return nil, rejectf(ReasonInternalServerError, err)
	}

	if req.User.IsLocal() && req.Size > mib(policies.FileSizeLimit) {
		return nil, rejectf(ReasonFileSizeLimitOver, nil)
	}

	if req.Ext != nil {
		if err := ValidateExt(*req.Ext); err != nil {
			return nil, err
		}
	}

	name := SanitizeName(req.Name)
	decision := &PreflightDecision{
		SkipSensitiveDetection: SkipSensitiveDetection(meta.SensitiveMediaDetection, policies.AlwaysMarkNsfw, req.User),
		SensitiveThreshold:     meta.SensitiveMediaDetectionSensitivity.Threshold(),
		EnableVideoDetection:   meta.EnableSensitiveMediaDetectionForVideos,
		Name:                   name,
		DetectedName:           CorrectFilename(name, req.Ext),
	}

	if !req.IsLink && req.User != nil {
		if err := s.checkCapacity(ctx, req.User, policies, req.Size); err != nil {
			return nil, err
		}
	}

	if req.FolderID != nil {
		if err := s.checkFolder(ctx, req.User, *req.FolderID); err != nil {
			return nil, err
		}
	}

	return decision, nil
}

// CheckSize re-applies the size rules to the real size of an upload whose
// size was only declared at admission.
func (s *PreflightService) CheckSize(ctx context.Context, user *models.User, size int64) error {
	if user == nil {
		return nil
	}
	policies, err := s.policy.RolePolicies(ctx, user)
	if err != nil {
		return rejectf(ReasonInternalServerError, err)
	}
	if user.IsLocal() && size > mib(policies.FileSizeLimit) {
		return rejectf(ReasonFileSizeLimitOver, nil)
	}
	return s.checkCapacity(ctx, user, policies, size)
}

func (s *PreflightService) checkCapacity(ctx context.Context, user *models.User, policies models.RolePolicies, size int64) error {
	usage, err := s.repomanager.Files(s.db).Usage(ctx, user.ID)
	if err != nil {
		return rejectf(ReasonInternalServerError, err)
	}
	if usage > math.MaxInt64-size || usage+size > mib(policies.DriveCapacityMb) {
		s.logger.Info(ctx, "drive capacity exceeded", "user_id", user.ID, "usage", usage, "size", size)
		return rejectf(ReasonNoFreeSpace, nil)
	}
	return nil
}

func (s *PreflightService) checkFolder(ctx context.Context, user *models.User, folderID string) error {
	if user == nil {
		return rejectf(ReasonFolderNotFound, nil)
	}
	_, err := s.repomanager.Folders(s.db).GetOwned(ctx, folderID, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return rejectf(ReasonFolderNotFound, nil)
		}
		return rejectf(ReasonInternalServerError, err)
	}
	return nil
}

// ValidateExt checks a client-supplied extension.
func ValidateExt(ext string) error {
	if len(ext) > maxExtLen {
		return rejectf(ReasonExtTooLarge, nil)
	}
	if !strings.HasPrefix(ext, ".") || !ValidateFileName(ext) {
		return rejectf(ReasonBadExt, nil)
	}
	return nil
}

// mib converts a policy value in MiB to bytes, saturating on overflow.
func mib(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n > math.MaxInt64/config.MiB {
		return math.MaxInt64
	}
	return n * config.MiB
}
