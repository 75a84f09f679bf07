// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package api

import (
	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffconvert/internal/job"
)

// ToolchainResponse for GET /toolchain
type ToolchainResponse struct {
	Toolchain  ffmpeg.Toolchain `json:"toolchain"`
	Configured bool             `json:"configured"`
	Version    *skills.Version  `json:"version,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ProbeRequest for POST /probe
type ProbeRequest struct {
	Path string `json:"path" binding:"required"`
}

// ProbeResponse is the descriptor plus the values derived from it
type ProbeResponse struct {
	Descriptor probe.Descriptor `json:"descriptor"`
	Summary    string           `json:"summary"`
	Frames     *int64           `json:"frames,omitempty"`
	FrameRate  string           `json:"frame_rate"`
	VFR        bool             `json:"vfr"`
	DurationMs int64            `json:"duration_ms"`
}

// JobLogResponse for GET /jobs/:id/log
type JobLogResponse struct {
	ID    string         `json:"id"`
	State job.State      `json:"state"`
	Log   []job.LogEntry `json:"log"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
