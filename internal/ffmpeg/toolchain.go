// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffconvert/internal/process"
)

// Toolchain holds the resolved absolute paths of ffmpeg and ffprobe.
// A path is empty when the binary could not be found.
type Toolchain struct {
	FFmpeg  string `json:"ffmpeg"`
	FFprobe string `json:"ffprobe"`
}

// ResolveToolchain looks up ffmpegPath (default "ffmpeg") in PATH. ffprobe is
// taken from the same directory as ffmpeg when present there, otherwise
// probePath (default "ffprobe") is looked up.
func ResolveToolchain(ffmpegPath, probePath string) Toolchain {
	t := Toolchain{}

	ffmpegPath = strings.TrimSpace(ffmpegPath)
	if len(ffmpegPath) == 0 {
		ffmpegPath = "ffmpeg"
	}
	if resolved, err := exec.LookPath(ffmpegPath); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
		t.FFmpeg = resolved
	}

	if len(t.FFmpeg) != 0 {
		sibling := filepath.Join(filepath.Dir(t.FFmpeg), executableName("ffprobe"))
		if info, err := os.Stat(sibling); err == nil && isExecutable(info) {
			t.FFprobe = sibling
			return t
		}
	}

	probePath = strings.TrimSpace(probePath)
	if len(probePath) == 0 {
		probePath = "ffprobe"
	}
	if resolved, err := exec.LookPath(probePath); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
		t.FFprobe = resolved
	}

	return t
}

// Configured reports whether both binaries were found.
func (t Toolchain) Configured() bool {
	return len(t.FFmpeg) != 0 && len(t.FFprobe) != 0
}

// Verify runs -version on both binaries and returns the ffmpeg version.
func (t Toolchain) Verify() (skills.Version, error) {
	if !t.Configured() {
		return skills.Version{}, fmt.Errorf("%w: ffmpeg=%q ffprobe=%q", process.ErrToolchain, t.FFmpeg, t.FFprobe)
	}

	v, err := skills.ReadVersion(t.FFmpeg)
	if err != nil {
		return skills.Version{}, fmt.Errorf("%w: %w", process.ErrToolchain, err)
	}
	if _, err := skills.ReadVersion(t.FFprobe); err != nil {
		return skills.Version{}, fmt.Errorf("%w: %w", process.ErrToolchain, err)
	}
	return v, nil
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
