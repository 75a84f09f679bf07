// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
)

// ConvertType selects between copying compressed streams and re-encoding them.
type ConvertType string

const (
	StreamCopy ConvertType = "stream_copy"
	Reencode   ConvertType = "reencode"
)

// TrimStrategy controls where the seek option is placed relative to the inputs.
type TrimStrategy string

const (
	// TrimAuto resolves to TrimFast for stream copy and TrimAccurate for re-encoding.
	TrimAuto TrimStrategy = "auto"
	// TrimFast seeks on the input (keyframe aligned).
	TrimFast TrimStrategy = "fast"
	// TrimAccurate seeks on the output (decodes up to the exact frame).
	TrimAccurate TrimStrategy = "accurate"
)

// VideoCodec is an ffmpeg video encoder name
type VideoCodec string

const (
	VideoCopy VideoCodec = "copy"
	VideoH264 VideoCodec = "libx264"
	VideoH265 VideoCodec = "libx265"
	VideoVP9  VideoCodec = "libvpx-vp9"
)

// AudioCodec is an ffmpeg audio encoder name
type AudioCodec string

const (
	AudioCopy AudioCodec = "copy"
	AudioAAC  AudioCodec = "aac"
	AudioMP3  AudioCodec = "libmp3lame"
	AudioOpus AudioCodec = "libopus"
)

const (
	DefaultPreset = "medium"
	DefaultCRF    = 23
	MaxCRF        = 63

	aacBitrate = "192k"
)

var (
	ErrEmptyInput         = errors.New("input path is empty")
	ErrEmptyOutput        = errors.New("output path is empty")
	ErrMissingAudio       = errors.New("audio replacement requested without an audio file")
	ErrInvalidTrim        = errors.New("invalid trim range")
	ErrUnknownConvertType = errors.New("unknown convert type")
	ErrInvalidCRF         = errors.New("crf out of range")
)

// Request describes one conversion. Trim bounds are in milliseconds; nil means unbounded.
// A nil CRF means DefaultCRF; 0 is lossless for x264/x265.
type Request struct {
	Input        string       `json:"input"`
	Output       string       `json:"output"`
	AudioFile    string       `json:"audio_file,omitempty"`
	ReplaceAudio bool         `json:"replace_audio"`
	Type         ConvertType  `json:"type"`
	VideoCodec   VideoCodec   `json:"video_codec"`
	AudioCodec   AudioCodec   `json:"audio_codec"`
	Preset       string       `json:"preset"`
	CRF          *int         `json:"crf,omitempty"`
	TrimStartMs  *int64       `json:"trim_start_ms,omitempty"`
	TrimEndMs    *int64       `json:"trim_end_ms,omitempty"`
	TrimStrategy TrimStrategy `json:"trim_strategy"`
}

// WithDefaults fills unset fields the way the desktop client did: stream copy keeps
// both codecs as copy unless audio is replaced, re-encoding uses x264/aac.
func (r Request) WithDefaults() Request {
	if r.Type == "" {
		r.Type = StreamCopy
	}
	if r.VideoCodec == "" {
		if r.Type == StreamCopy {
			r.VideoCodec = VideoCopy
		} else {
			r.VideoCodec = VideoH264
		}
	}
	if r.AudioCodec == "" {
		if r.Type == StreamCopy && !r.ReplaceAudio {
			r.AudioCodec = AudioCopy
		} else {
			r.AudioCodec = AudioAAC
		}
	}
	if r.Preset == "" {
		r.Preset = DefaultPreset
	}
	if r.CRF == nil {
		crf := DefaultCRF
		r.CRF = &crf
	}
	if r.TrimStrategy == "" {
		r.TrimStrategy = TrimAuto
	}
	return r
}

// ShouldTrim reports whether either trim bound is set.
func (r Request) ShouldTrim() bool {
	return r.TrimStartMs != nil || r.TrimEndMs != nil
}

func (r Request) replacesAudio() bool {
	return r.ReplaceAudio && r.AudioFile != ""
}

// Encoders lists the encoders BuildCommand selects for the request. Stream
// copy without audio replacement needs none.
func (r Request) Encoders() []string {
	switch {
	case r.Type == Reencode:
		return []string{string(r.VideoCodec), string(r.AudioCodec)}
	case r.replacesAudio():
		return []string{string(r.AudioCodec)}
	}
	return nil
}

// EffectiveTrimStrategy resolves TrimAuto against the convert type.
func (r Request) EffectiveTrimStrategy() TrimStrategy {
	if !r.ShouldTrim() {
		return TrimFast
	}
	switch r.TrimStrategy {
	case TrimAuto, "":
		if r.Type == Reencode {
			return TrimAccurate
		}
		return TrimFast
	default:
		return r.TrimStrategy
	}
}

// Validate checks the request before it is handed to ffmpeg. BuildCommand does
// not call it; malformed requests still produce a best-effort command.
func (r Request) Validate() error {
	if r.Input == "" {
		return ErrEmptyInput
	}
	if r.Output == "" {
		return ErrEmptyOutput
	}
	if r.ReplaceAudio && r.AudioFile == "" {
		return ErrMissingAudio
	}
	switch r.Type {
	case StreamCopy, Reencode:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConvertType, r.Type)
	}
	switch r.TrimStrategy {
	case TrimAuto, TrimFast, TrimAccurate, "":
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidTrim, r.TrimStrategy)
	}
	if r.CRF != nil && (*r.CRF < 0 || *r.CRF > MaxCRF) {
		return fmt.Errorf("%w: %d", ErrInvalidCRF, *r.CRF)
	}
	if r.TrimStartMs != nil && *r.TrimStartMs < 0 {
		return fmt.Errorf("%w: start %dms is negative", ErrInvalidTrim, *r.TrimStartMs)
	}
	if r.TrimEndMs != nil && *r.TrimEndMs < 0 {
		return fmt.Errorf("%w: end %dms is negative", ErrInvalidTrim, *r.TrimEndMs)
	}
	if r.TrimStartMs != nil && r.TrimEndMs != nil && *r.TrimEndMs < *r.TrimStartMs {
		return fmt.Errorf("%w: end %dms before start %dms", ErrInvalidTrim, *r.TrimEndMs, *r.TrimStartMs)
	}
	return nil
}

// BuildCommand returns the full argument vector, executable first, for the request.
func BuildCommand(binary string, r Request) []string {
	cmd := []string{binary}
	strategy := r.EffectiveTrimStrategy()

	if r.ShouldTrim() && strategy == TrimFast && r.TrimStartMs != nil {
		cmd = append(cmd, "-ss", FormatTimestamp(*r.TrimStartMs))
	}

	cmd = append(cmd, "-i", r.Input)
	if r.replacesAudio() {
		cmd = append(cmd, "-i", r.AudioFile)
	}

	if r.ShouldTrim() && strategy == TrimAccurate && r.TrimStartMs != nil {
		cmd = append(cmd, "-ss", FormatTimestamp(*r.TrimStartMs))
	}

	switch {
	case r.TrimStartMs != nil && r.TrimEndMs != nil:
		cmd = append(cmd, "-t", FormatTimestamp(*r.TrimEndMs-*r.TrimStartMs))
	case r.TrimEndMs != nil:
		cmd = append(cmd, "-to", FormatTimestamp(*r.TrimEndMs))
	}

	// machine readable progress on stdout, no stats lines on stderr
	cmd = append(cmd, "-progress", "-", "-nostats")

	switch r.Type {
	case Reencode:
		if r.replacesAudio() {
			cmd = append(cmd, "-map", "0:v", "-map", "1:a")
		}
		cmd = append(cmd, "-c:v", string(r.VideoCodec))
		if r.VideoCodec == VideoH264 || r.VideoCodec == VideoH265 {
			crf := DefaultCRF
			if r.CRF != nil {
				crf = *r.CRF
			}
			cmd = append(cmd, "-preset", r.Preset, "-crf", strconv.Itoa(crf))
		}
		cmd = append(cmd, "-c:a", string(r.AudioCodec))
		if r.AudioCodec == AudioAAC {
			cmd = append(cmd, "-b:a", aacBitrate)
		}
	default:
		if r.replacesAudio() {
			cmd = append(cmd, "-map", "0:v", "-map", "1:a", "-c:v", string(VideoCopy), "-c:a", string(r.AudioCodec))
		} else {
			cmd = append(cmd, "-c", "copy")
		}
	}

	if r.replacesAudio() {
		cmd = append(cmd, "-shortest")
	}

	return append(cmd, "-y", r.Output)
}

// FormatTimestamp renders milliseconds as HH:MM:SS.mmm. Negative values keep a
// leading minus so ffmpeg reports them instead of silently wrapping.
func FormatTimestamp(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, millis)
}
