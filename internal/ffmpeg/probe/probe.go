// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具
//
// Package probe inspects media files with ffprobe and decodes its JSON report.

package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ZSC714725/ffconvert/internal/process"
)

// ErrMalformedOutput means ffprobe exited cleanly but its output could not be decoded.
var ErrMalformedOutput = errors.New("malformed probe output")

// maxQuotedOutput bounds how much raw output a MalformedOutputError keeps.
const maxQuotedOutput = 512

// MalformedOutputError keeps the decode error and the start of the raw output.
type MalformedOutputError struct {
	Err    error
	Output string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedOutput, e.Err)
}

func (e *MalformedOutputError) Unwrap() []error {
	return []error{ErrMalformedOutput, e.Err}
}

// Descriptor is the decoded report of one probe call
type Descriptor struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one stream of the container. Numeric values ffprobe
// reports as strings stay strings; see the helpers in summary.go.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name,omitempty"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	RFrameRate    string `json:"r_frame_rate,omitempty"`
	AvgFrameRate  string `json:"avg_frame_rate,omitempty"`
	Duration      string `json:"duration,omitempty"`
	BitRate       string `json:"bit_rate,omitempty"`
	SampleRate    string `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	NbFrames      string `json:"nb_frames,omitempty"`
}

// Format is the container level part of the report
type Format struct {
	Filename       string `json:"filename"`
	NbStreams      int    `json:"nb_streams"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name,omitempty"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

// Args returns the ffprobe arguments for path: quiet JSON output of the
// container and the first video stream.
func Args(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "v:0",
		path,
	}
}

// Probe runs binary against path. Both output streams are collected into one
// buffer and decoded after the process exited. A non-zero exit is returned as
// *process.ExitError, undecodable output as *MalformedOutputError.
func Probe(ctx context.Context, binary, path string) (Descriptor, error) {
	if len(strings.TrimSpace(binary)) == 0 {
		return Descriptor{}, fmt.Errorf("%w: no ffprobe binary", process.ErrToolchain)
	}

	cmd := exec.CommandContext(ctx, binary, Args(path)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Descriptor{}, fmt.Errorf("%w: %w", process.ErrCancelled, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Descriptor{}, fmt.Errorf("probe %s: %w", path, &process.ExitError{Code: exitErr.ExitCode()})
		}
		return Descriptor{}, process.StartError(binary, err)
	}

	return Decode(output)
}

var errNoFormat = errors.New("report has no format block")

// Decode parses a JSON report as written by ffprobe. A report without a
// format block or without a format name is malformed.
func Decode(data []byte) (Descriptor, error) {
	var report struct {
		Streams []Stream `json:"streams"`
		Format  *Format  `json:"format"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return Descriptor{}, malformed(err, data)
	}
	if report.Format == nil || len(strings.TrimSpace(report.Format.FormatName)) == 0 {
		return Descriptor{}, malformed(errNoFormat, data)
	}
	return Descriptor{Streams: report.Streams, Format: *report.Format}, nil
}

func malformed(err error, data []byte) *MalformedOutputError {
	quoted := string(data)
	if len(quoted) > maxQuotedOutput {
		quoted = quoted[:maxQuotedOutput]
	}
	return &MalformedOutputError{Err: err, Output: quoted}
}
