// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具
//
// Package parse decodes the key=value status stream ffmpeg writes with -progress.

package parse

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/ffconvert/internal/process"
)

// Terminator is the key that closes one progress cycle.
const Terminator = "progress"

const (
	StateContinue = "continue"
	StateEnd      = "end"
)

// Progress is one complete status cycle. OutTimeMs keeps ffmpeg's naming and
// therefore holds microseconds.
type Progress struct {
	Frame      int64   `json:"frame"`
	FPS        float64 `json:"fps"`
	OutTimeMs  int64   `json:"out_time_ms"`
	TotalSize  int64   `json:"total_size"`
	Bitrate    float64 `json:"bitrate_kbits"`
	Speed      float64 `json:"speed"`
	DropFrames int64   `json:"drop_frames"`
	DupFrames  int64   `json:"dup_frames"`
	State      string  `json:"progress"`
}

// Done reports whether ffmpeg marked this cycle as the last one.
func (p Progress) Done() bool {
	return p.State == StateEnd
}

// OutTime returns the output timestamp as a duration.
func (p Progress) OutTime() time.Duration {
	return time.Duration(p.OutTimeMs) * time.Microsecond
}

// Parser implements process.Parser for the -progress stream
type Parser interface {
	process.Parser
	Progress() Progress
}

// Config for the parser
type Config struct {
	// OnProgress is called on the parsing goroutine once per cycle, in stream order.
	OnProgress func(Progress)
}

type parser struct {
	onProgress func(Progress)

	fields map[string]string

	last Progress
	lock sync.RWMutex
}

// New creates a Parser
func New(config Config) Parser {
	return &parser{
		onProgress: config.OnProgress,
		fields:     make(map[string]string),
	}
}

func (p *parser) Parse(line string) bool {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	p.lock.Lock()
	p.fields[key] = value
	if key != Terminator {
		p.lock.Unlock()
		return false
	}

	progress := p.snapshot()
	p.last = progress
	clear(p.fields)
	p.lock.Unlock()

	if p.onProgress != nil {
		p.onProgress(progress)
	}
	return true
}

func (p *parser) snapshot() Progress {
	return Progress{
		Frame:      parseInt(p.fields["frame"]),
		FPS:        parseFloat(p.fields["fps"], ""),
		OutTimeMs:  parseInt(p.fields["out_time_ms"]),
		TotalSize:  parseInt(p.fields["total_size"]),
		Bitrate:    parseFloat(p.fields["bitrate"], "kbits/s"),
		Speed:      parseFloat(p.fields["speed"], "x"),
		DropFrames: parseInt(p.fields["drop_frames"]),
		DupFrames:  parseInt(p.fields["dup_frames"]),
		State:      p.fields[Terminator],
	}
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	clear(p.fields)
	p.last = Progress{}
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.last
}

func parseInt(value string) int64 {
	if x, err := strconv.ParseInt(value, 10, 64); err == nil {
		return x
	}
	return 0
}

// parseFloat strips a unit suffix before converting. ffmpeg writes N/A for
// unknown values, which ends up as zero like any other unparsable value.
func parseFloat(value, suffix string) float64 {
	value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
	if x, err := strconv.ParseFloat(value, 64); err == nil {
		return x
	}
	return 0
}
