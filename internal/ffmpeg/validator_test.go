// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAllowsEverythingByDefault(t *testing.T) {
	v, err := NewValidator(nil, []string{"", "  "})
	require.NoError(t, err)

	assert.True(t, v.IsValid("/media/in.mp4"))
	assert.True(t, v.IsValid("rtmp://example.com/live"))
}

func TestValidatorBlockWinsOverAllow(t *testing.T) {
	v, err := NewValidator([]string{`^/media/`}, []string{`\.\./`})
	require.NoError(t, err)

	assert.True(t, v.IsValid("/media/in.mp4"))
	assert.False(t, v.IsValid("/media/../etc/passwd"))
	assert.False(t, v.IsValid("/tmp/in.mp4"))
}

func TestValidatorInvalidExpression(t *testing.T) {
	_, err := NewValidator([]string{"("}, nil)
	assert.ErrorContains(t, err, "invalid allow expression")

	_, err = NewValidator(nil, []string{"[a-"})
	assert.ErrorContains(t, err, "invalid block expression")
}
