package services

import (
	"testing"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func TestSensitivityInputs_Sensitive(t *testing.T) {
	tests := []struct {
		name string
		in   SensitivityInputs
		want bool
	}{
		{"nothing", SensitivityInputs{}, false},
		{"requested", SensitivityInputs{Requested: true}, true},
		{"profile always", SensitivityInputs{ProfileAlwaysMarkNsfw: true}, true},
		{"role always", SensitivityInputs{RoleAlwaysMarkNsfw: true}, true},
		{"silenced host", SensitivityInputs{HostMediaSilenced: true}, true},
		{"detector only", SensitivityInputs{MaybeSensitive: true}, false},
		{"detector and profile auto", SensitivityInputs{MaybeSensitive: true, ProfileAutoSensitive: true}, true},
		{"detector and instance auto", SensitivityInputs{MaybeSensitive: true, InstanceAutoSensitive: true}, true},
		{"auto without detector", SensitivityInputs{ProfileAutoSensitive: true, InstanceAutoSensitive: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Sensitive())
		})
	}
}

func TestIsMediaSilencedHost(t *testing.T) {
	list := []string{"bad.example"}
	assert.False(t, IsMediaSilencedHost(list, nil))
	assert.False(t, IsMediaSilencedHost(nil, ptr("bad.example")))
	assert.True(t, IsMediaSilencedHost(list, ptr("BAD.example")))
	assert.False(t, IsMediaSilencedHost(list, ptr("good.example")))
}

func TestSkipSensitiveDetection(t *testing.T) {
	local := &models.User{ID: "a"}
	remote := &models.User{ID: "b", Host: ptr("r.example")}

	assert.True(t, SkipSensitiveDetection(models.DetectionNone, false, local))
	assert.True(t, SkipSensitiveDetection(models.DetectionAll, true, local))
	assert.True(t, SkipSensitiveDetection(models.DetectionAll, false, nil))
	assert.False(t, SkipSensitiveDetection(models.DetectionAll, false, remote))
	assert.True(t, SkipSensitiveDetection(models.DetectionLocal, false, remote))
	assert.False(t, SkipSensitiveDetection(models.DetectionLocal, false, local))
	assert.True(t, SkipSensitiveDetection(models.DetectionRemote, false, local))
	assert.False(t, SkipSensitiveDetection(models.DetectionRemote, false, remote))
}
