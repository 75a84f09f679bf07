// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package process

import "time"

// Parser consumes the status stream (stdout) of a process line by line.
// Parse reports whether the line completed a progress cycle.
type Parser interface {
	Parse(line string) bool
	ResetStats()
}

// Stream names the output channel a line was read from
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Stream    Stream
	Data      string
}

type nullParser struct{}

func (p *nullParser) Parse(line string) bool { return false }
func (p *nullParser) ResetStats()            {}
