// Package policy resolves the instance settings, role policies and profile
// flags that govern an upload.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metaKey       = "meta"
	roleCacheSize = 10000
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "driveingest_policy_cache_lookups_total",
	Help: "Policy cache lookups by cache and result.",
}, []string{"cache", "result"})

// Resolver loads policy inputs through short-lived in-process caches.
type Resolver struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	meta        *expirable.LRU[string, *models.Meta]
	roles       *expirable.LRU[string, []*models.Role]
	now         func() time.Time
	logger      logging.Logger
}

func NewResolver(db dbx.DBTX, rm repomanager.RepositoryManager, metaTTL, roleTTL time.Duration, logger logging.Logger) *Resolver {
	return &Resolver{
		db:          db,
		repomanager: rm,
		meta:        expirable.NewLRU[string, *models.Meta](1, nil, metaTTL),
		roles:       expirable.NewLRU[string, []*models.Role](roleCacheSize, nil, roleTTL),
		now:         time.Now,
		logger:      logger.With("module", "policy"),
	}
}

// Meta returns the instance settings.
func (r *Resolver) Meta(ctx context.Context) (*models.Meta, error) {
	if m, ok := r.meta.Get(metaKey); ok {
		cacheLookups.WithLabelValues("meta", "hit").Inc()
		return m, nil
	}
	cacheLookups.WithLabelValues("meta", "miss").Inc()

	m, err := r.repomanager.Meta(r.db).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load meta: %v", common.ErrorInternal, err)
	}
	r.meta.Add(metaKey, m)
	return m, nil
}

// RolePolicies returns the effective upload policies of user. A nil user
// gets the instance base policies.
func (r *Resolver) RolePolicies(ctx context.Context, user *models.User) (models.RolePolicies, error) {
	m, err := r.Meta(ctx)
	if err != nil {
		return models.RolePolicies{}, err
	}
	base := BasePolicies(m)
	if user == nil {
		return base, nil
	}

	assigned, err := r.assignedRoles(ctx, user.ID)
	if err != nil {
		return models.RolePolicies{}, err
	}

	now := r.now()
	active := make([]*models.Role, 0, len(assigned))
	for _, role := range assigned {
		if role.ExpiresAt == nil || role.ExpiresAt.After(now) {
			active = append(active, role)
		}
	}

	return Resolve(base, active), nil
}

// Profile returns the user's moderation preferences. Users without a
// profile row get the zero profile.
func (r *Resolver) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := r.repomanager.Users(r.db).GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &models.UserProfile{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: load profile: %v", common.ErrorInternal, err)
	}
	return p, nil
}

func (r *Resolver) assignedRoles(ctx context.Context, userID string) ([]*models.Role, error) {
	if roles, ok := r.roles.Get(userID); ok {
		cacheLookups.WithLabelValues("roles", "hit").Inc()
		return roles, nil
	}
	cacheLookups.WithLabelValues("roles", "miss").Inc()

	roles, err := r.repomanager.Roles(r.db).ListAssigned(ctx, userID, r.now())
	if err != nil {
		return nil, fmt.Errorf("%w: load roles: %v", common.ErrorInternal, err)
	}
	r.roles.Add(userID, roles)
	return roles, nil
}

// Invalidate drops the cached assignments of userID.
func (r *Resolver) Invalidate(userID string) {
	r.roles.Remove(userID)
}
