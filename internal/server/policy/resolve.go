package policy

import (
	"encoding/json"
	"math"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

const (
	keyDriveCapacityMb = "driveCapacityMb"
	keyFileSizeLimit   = "fileSizeLimit"
	keyAlwaysMarkNsfw  = "alwaysMarkNsfw"
)

// BasePolicies overlays the instance-wide policy overrides on the defaults.
func BasePolicies(m *models.Meta) models.RolePolicies {
	p := models.DefaultRolePolicies()
	if m == nil {
		return p
	}
	if v, ok := toInt(m.Policies[keyDriveCapacityMb]); ok {
		p.DriveCapacityMb = v
	}
	if v, ok := toInt(m.Policies[keyFileSizeLimit]); ok {
		p.FileSizeLimit = v
	}
	if v, ok := m.Policies[keyAlwaysMarkNsfw].(bool); ok {
		p.AlwaysMarkNsfw = v
	}
	return p
}

// Resolve computes the effective policies from base and the user's active
// roles. Per key, only role entries not set to useDefault count; the
// highest priority wins and entries tied at that priority are combined
// (max for numbers, or for flags).
func Resolve(base models.RolePolicies, roles []*models.Role) models.RolePolicies {
	p := base

	if vals := winning(roles, keyDriveCapacityMb); len(vals) > 0 {
		p.DriveCapacityMb = maxInt(vals, base.DriveCapacityMb)
	}
	if vals := winning(roles, keyFileSizeLimit); len(vals) > 0 {
		p.FileSizeLimit = maxInt(vals, base.FileSizeLimit)
	}
	if vals := winning(roles, keyAlwaysMarkNsfw); len(vals) > 0 {
		p.AlwaysMarkNsfw = anyTrue(vals)
	}

	return p
}

func winning(roles []*models.Role, key string) []any {
	var (
		vals []any
		top  = math.MinInt
	)
	for _, role := range roles {
		v, ok := role.Policies[key]
		if !ok || v.UseDefault {
			continue
		}
		switch {
		case v.Priority > top:
			top = v.Priority
			vals = []any{v.Value}
		case v.Priority == top:
			vals = append(vals, v.Value)
		}
	}
	return vals
}

func maxInt(vals []any, fallback int64) int64 {
	var (
		best  int64
		found bool
	)
	for _, v := range vals {
		n, ok := toInt(v)
		if !ok {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	if !found {
		return fallback
	}
	return best
}

func anyTrue(vals []any) bool {
	for _, v := range vals {
		if b, ok := v.(bool); ok && b {
			return true
		}
	}
	return false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	}
	return 0, false
}
