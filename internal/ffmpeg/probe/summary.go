// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package probe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// vfrTolerance is the largest difference between r_frame_rate and
// avg_frame_rate still considered a constant frame rate.
const vfrTolerance = 0.1

const (
	summarySeparator = " • "
	unknown          = "—"
)

// ParseFrameRate parses ffprobe rates like "30000/1001" or "25".
// Empty, "0/0", "N/A" and zero denominators are reported as unknown.
func ParseFrameRate(rate string) (float64, bool) {
	rate = strings.TrimSpace(rate)
	if len(rate) == 0 || rate == "0/0" || rate == "N/A" {
		return 0, false
	}

	var value float64
	if num, den, ok := strings.Cut(rate, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		value = n / d
	} else {
		v, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return 0, false
		}
		value = v
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func parseSeconds(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// VideoStream returns the first video stream.
func (d Descriptor) VideoStream() (Stream, bool) {
	for _, s := range d.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s, true
		}
	}
	return Stream{}, false
}

// DurationSeconds prefers the video stream duration over the container's.
func (d Descriptor) DurationSeconds() (float64, bool) {
	if video, ok := d.VideoStream(); ok {
		if sec, ok := parseSeconds(video.Duration); ok {
			return sec, true
		}
	}
	return parseSeconds(d.Format.Duration)
}

// DurationMs returns the duration in milliseconds, 0 when unknown.
func (d Descriptor) DurationMs() int64 {
	sec, ok := d.DurationSeconds()
	if !ok {
		return 0
	}
	return int64(sec * 1000)
}

// TotalFrames prefers nb_frames and falls back to avg_frame_rate × duration,
// rounded down and never negative.
func (d Descriptor) TotalFrames() (int64, bool) {
	video, ok := d.VideoStream()
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(video.NbFrames), 10, 64); err == nil {
		return n, true
	}

	fps, ok := ParseFrameRate(video.AvgFrameRate)
	if !ok {
		return 0, false
	}
	sec, ok := d.DurationSeconds()
	if !ok {
		return 0, false
	}
	return max(int64(math.Floor(fps*sec)), 0), true
}

// IsVariableFrameRate compares the real base frame rate with the average one.
// Unknown rates count as constant.
func (d Descriptor) IsVariableFrameRate() bool {
	video, ok := d.VideoStream()
	if !ok {
		return false
	}
	r, rok := ParseFrameRate(video.RFrameRate)
	avg, aok := ParseFrameRate(video.AvgFrameRate)
	return rok && aok && math.Abs(r-avg) > vfrTolerance
}

// FrameRateLabel formats the average (else real) frame rate followed by CFR or VFR.
func (d Descriptor) FrameRateLabel() string {
	video, _ := d.VideoStream()

	fps, ok := ParseFrameRate(video.AvgFrameRate)
	if !ok {
		fps, ok = ParseFrameRate(video.RFrameRate)
	}

	label := unknown
	switch {
	case !ok:
	case fps >= 1_000_000:
		label = "∞"
	default:
		label = strconv.FormatFloat(fps, 'f', 2, 64)
	}

	if d.IsVariableFrameRate() {
		return label + " (VFR)"
	}
	return label + " (CFR)"
}

// Summary renders a one-line description such as
// "MOV,MP4,M4A,3GP,3G2,MJ2 • 1920x1080 • 29.97 (CFR) • frames: 1798 • 01:00 • 12 MB • 2500 kbps".
// It is empty when the file has no video stream.
func (d Descriptor) Summary() string {
	video, ok := d.VideoStream()
	if !ok {
		return ""
	}

	parts := []string{strings.ToUpper(d.Format.FormatName)}
	if video.Width > 0 && video.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", video.Width, video.Height))
	}
	parts = append(parts, d.FrameRateLabel())
	if frames, ok := d.TotalFrames(); ok {
		parts = append(parts, fmt.Sprintf("frames: %d", frames))
	}

	duration := unknown
	if sec, ok := d.DurationSeconds(); ok {
		duration = FormatDuration(sec)
	}
	parts = append(parts, duration)

	size := unknown
	if n, err := strconv.ParseInt(strings.TrimSpace(d.Format.Size), 10, 64); err == nil && n > 0 {
		size = humanize.Bytes(uint64(n))
	}
	parts = append(parts, size)

	if len(strings.TrimSpace(video.BitRate)) != 0 {
		bitrate := unknown
		if bps, err := strconv.ParseInt(strings.TrimSpace(video.BitRate), 10, 64); err == nil {
			bitrate = fmt.Sprintf("%d kbps", bps/1000)
		}
		parts = append(parts, bitrate)
	}

	return strings.Join(parts, summarySeparator)
}

// FormatDuration renders seconds as MM:SS, or HH:MM:SS from one hour on.
func FormatDuration(sec float64) string {
	total := int64(sec)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
