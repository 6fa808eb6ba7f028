package models

import "time"

// SensitiveMediaDetection says which uploads are scored by the detector.
type SensitiveMediaDetection string

const (
	DetectionNone   SensitiveMediaDetection = "none"
	DetectionAll    SensitiveMediaDetection = "all"
	DetectionLocal  SensitiveMediaDetection = "local"
	DetectionRemote SensitiveMediaDetection = "remote"
)

// DetectionSensitivity is the instance-wide detector cutoff setting.
type DetectionSensitivity string

const (
	SensitivityVeryHigh DetectionSensitivity = "veryHigh"
	SensitivityHigh     DetectionSensitivity = "high"
	SensitivityMedium   DetectionSensitivity = "medium"
	SensitivityLow      DetectionSensitivity = "low"
	SensitivityVeryLow  DetectionSensitivity = "veryLow"
)

// Threshold maps the setting to a score cutoff; unknown values behave as medium.
func (s DetectionSensitivity) Threshold() float32 {
	switch s {
	case SensitivityVeryHigh:
		return 0.1
	case SensitivityHigh:
		return 0.3
	case SensitivityLow:
		return 0.7
	case SensitivityVeryLow:
		return 0.9
	default:
		return 0.5
	}
}

// Meta is the single instance settings row.
type Meta struct {
	SensitiveMediaDetection                SensitiveMediaDetection
	SensitiveMediaDetectionSensitivity     DetectionSensitivity
	SetSensitiveFlagAutomatically          bool
	EnableSensitiveMediaDetectionForVideos bool
	MediaSilencedHosts                     []string
	// Policies holds instance-wide overrides of the role policy defaults.
	Policies map[string]any
}

// RolePolicies are the resolved policy values that matter for uploads.
type RolePolicies struct {
	DriveCapacityMb int64
	FileSizeLimit   int64
	AlwaysMarkNsfw  bool
}

// DefaultRolePolicies are used when neither meta nor any role says otherwise.
func DefaultRolePolicies() RolePolicies {
	return RolePolicies{
		DriveCapacityMb: 100,
		FileSizeLimit:   50,
		AlwaysMarkNsfw:  false,
	}
}

// RolePolicyValue is one entry of role.policies.
type RolePolicyValue struct {
	UseDefault bool `json:"useDefault"`
	Priority   int  `json:"priority"`
	Value      any  `json:"value"`
}

// Role is a role a user is manually assigned to.
type Role struct {
	ID       string
	Name     string
	Policies map[string]RolePolicyValue
	// ExpiresAt is the expiry of the user's assignment, not of the role.
	ExpiresAt *time.Time
}
