package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestReleaseVersion(t *testing.T) {
	withVersion(t, "v1.2.0", "0123456789abcdef", "2026-03-01T10:00:00Z")

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.True(t, info.Release)

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "Version: v1.2.0")
	assert.Contains(t, detailed, "Commit: 0123456789abcdef")
	assert.Contains(t, detailed, "Build type: release")
}

func TestDevVersion(t *testing.T) {
	withVersion(t, "dev", "0123456789abcdef", "unknown")

	assert.Equal(t, "dev-0123456", GetShortVersion())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
	assert.False(t, strings.Contains(GetDetailedVersion(), "Built:"))
}

func TestParseISOTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"2026-03-01T10:00:00Z", false},
		{"2026-03-01T10:00:00", false},
		{"2026-03-01 10:00:00", false},
		{"unknown", true},
		{"", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.zero, parseISOTime(tt.in).IsZero())
		})
	}
}
