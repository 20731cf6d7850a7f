package main

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfoFill(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name       string
		start      buildInfo
		wantCommit string
		wantBuilt  string
	}{
		{"FromVCS", buildInfo{Version: "1.2.0"}, "0123456", "2024-05-01T10:00:00Z"},
		{"LdflagsWin", buildInfo{Version: "1.2.0", Commit: "abc1234", Built: "yesterday"}, "abc1234", "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.start
			info.fill(settings)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantBuilt, info.Built)
			assert.True(t, info.Modified)
		})
	}
}

func TestBuildInfoString(t *testing.T) {
	info := buildInfo{Version: "1.2.0", Commit: "abc1234", Built: "2024-05-01", Go: "go1.23.0"}
	assert.Equal(t, "blockstream v1.2.0 (commit: abc1234, built: 2024-05-01)", info.String())

	info.Modified = true
	assert.Equal(t, "blockstream v1.2.0 (commit: abc1234-dirty, built: 2024-05-01)", info.String())
	assert.Contains(t, info.Details(), "Go: go1.23.0")
}

func TestCurrentBuildHasNoEmptyFields(t *testing.T) {
	info := currentBuild()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Built)
	assert.NotEmpty(t, info.Go)
}
