package services

import (
	"strings"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

// SensitivityInputs are the independent signals that can mark a file as
// sensitive.
type SensitivityInputs struct {
	Requested             bool
	ProfileAlwaysMarkNsfw bool
	RoleAlwaysMarkNsfw    bool
	HostMediaSilenced     bool
	MaybeSensitive        bool
	ProfileAutoSensitive  bool
	InstanceAutoSensitive bool
}

// Sensitive combines the inputs. The detector verdict only counts when the
// uploader or the instance opted into automatic marking.
func (in SensitivityInputs) Sensitive() bool {
	return in.Requested ||
		in.ProfileAlwaysMarkNsfw ||
		in.RoleAlwaysMarkNsfw ||
		in.HostMediaSilenced ||
		(in.MaybeSensitive && (in.ProfileAutoSensitive || in.InstanceAutoSensitive))
}

// IsMediaSilencedHost reports whether host is on the silenced list.
// Local users (nil host) are never silenced.
func IsMediaSilencedHost(silenced []string, host *string) bool {
	if host == nil || len(silenced) == 0 {
		return false
	}
	h := strings.ToLower(*host)
	for _, s := range silenced {
		if s == h {
			return true
		}
	}
	return false
}

// SkipSensitiveDetection decides whether the detector runs for an upload
// by user under the instance detection mode.
func SkipSensitiveDetection(mode models.SensitiveMediaDetection, roleAlwaysMarkNsfw bool, user *models.User) bool {
	switch {
	case mode == models.DetectionNone:
		return true
	case roleAlwaysMarkNsfw:
		return true
	case user == nil:
		return true
	case mode == models.DetectionLocal && user.IsRemote():
		return true
	case mode == models.DetectionRemote && user.IsLocal():
		return true
	}
	return false
}
