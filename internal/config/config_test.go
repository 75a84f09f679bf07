// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFillsEmptyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  bind: ":9000"
ffmpeg:
  path: /opt/ffmpeg/bin/ffmpeg
  stale_timeout: 30s
  input:
    block: ["^rtmp://"]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Bind)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, 30*time.Second, cfg.FFmpeg.StaleTimeout)
	assert.Equal(t, 2*time.Second, cfg.FFmpeg.CancelGrace)
	assert.Equal(t, 200, cfg.FFmpeg.LogLines)
	assert.Equal(t, []string{"^rtmp://"}, cfg.FFmpeg.Input.Block)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "server: ["},
		{name: "negative grace", body: "ffmpeg:\n  cancel_grace: -1s\n"},
		{name: "negative stale timeout", body: "ffmpeg:\n  stale_timeout: -5s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
