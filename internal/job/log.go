// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package job

import (
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// DefaultLogLines is the number of entries a job keeps when not configured.
const DefaultLogLines = 200

// Level of a log entry
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// LogEntry is one line of a job log
type LogEntry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// logBuffer keeps the newest max entries. Not safe for concurrent use.
type logBuffer struct {
	entries []LogEntry
	max     int
}

func newLogBuffer(max int) *logBuffer {
	if max <= 0 {
		max = DefaultLogLines
	}
	return &logBuffer{max: max}
}

func (b *logBuffer) add(level Level, message string) LogEntry {
	e := LogEntry{
		ID:      shortuuid.New(),
		Time:    time.Now(),
		Level:   level,
		Message: message,
	}
	if len(b.entries) == b.max {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:b.max-1]
	}
	b.entries = append(b.entries, e)
	return e
}

func (b *logBuffer) clear() {
	b.entries = nil
}

func (b *logBuffer) list() []LogEntry {
	return append([]LogEntry(nil), b.entries...)
}
