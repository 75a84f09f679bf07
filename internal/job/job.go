// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package job

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/process"
)

// State of a job
type State string

const (
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is one conversion
type Job struct {
	ID        string
	Request   ffmpeg.Request
	Command   []string
	CreatedAt time.Time

	mu         sync.RWMutex
	state      State
	progress   parse.Progress
	durationMs int64
	percent    float64
	summary    string
	outcome    process.Outcome
	err        error
	finishedAt time.Time
	log        *logBuffer

	cancel context.CancelFunc
	done   chan struct{}
}

// Snapshot is a consistent copy of a job's state
type Snapshot struct {
	ID         string         `json:"id"`
	Request    ffmpeg.Request `json:"request"`
	Command    []string       `json:"command"`
	State      State          `json:"state"`
	Progress   parse.Progress `json:"progress"`
	DurationMs int64          `json:"duration_ms"`
	Percent    float64        `json:"percent"`
	Summary    string         `json:"summary,omitempty"`
	Output     string         `json:"output,omitempty"`
	ExitCode   int            `json:"exit_code"`
	Elapsed    time.Duration  `json:"elapsed"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

func newJob(id string, req ffmpeg.Request, command []string, logLines int) *Job {
	return &Job{
		ID:        id,
		Request:   req,
		Command:   command,
		CreatedAt: time.Now(),
		state:     StateRunning,
		log:       newLogBuffer(logLines),
		done:      make(chan struct{}),
	}
}

// Snapshot returns the current state of the job
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Snapshot{
		ID:         j.ID,
		Request:    j.Request,
		Command:    j.Command,
		State:      j.state,
		Progress:   j.progress,
		DurationMs: j.durationMs,
		Percent:    j.percent,
		Summary:    j.summary,
		Output:     j.outcome.Output,
		ExitCode:   j.outcome.ExitCode,
		Elapsed:    j.outcome.Elapsed,
		CreatedAt:  j.CreatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// State returns the current state
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the failure of a failed job
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Log returns a copy of the log entries, oldest first
func (j *Job) Log() []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.log.list()
}

// ClearLog drops all log entries
func (j *Job) ClearLog() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.log.clear()
}

// Done is closed when the job reached a final state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) logf(level Level, format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.log.add(level, fmt.Sprintf(format, args...))
}

func (j *Job) setMedia(durationMs int64, summary string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.durationMs = expectedDurationMs(durationMs, j.Request)
	j.summary = summary
}

func (j *Job) setProgress(p parse.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
	if p.Done() {
		j.percent = 100
		return
	}
	j.percent = percentOf(p.OutTimeMs/1000, j.durationMs)
}

// finish records the result of the run and closes done.
func (j *Job) finish(outcome process.Outcome, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.outcome = outcome
	j.finishedAt = time.Now()

	switch {
	case err == nil:
		j.state = StateFinished
		j.percent = 100
		j.log.add(LevelSuccess, fmt.Sprintf("conversion finished in %s: %s", outcome.Elapsed.Round(time.Millisecond), outcome.Output))
	case !process.IsFailure(err):
		j.state = StateCancelled
		j.log.add(LevelInfo, "conversion cancelled by user")
	default:
		j.state = StateFailed
		j.err = err
		j.log.add(LevelError, fmt.Sprintf("conversion failed: %s", err))
	}

	close(j.done)
}

// streamLines describes each probed stream in one line,
// "Video: h264 1920x1080 frames: 1798" or "Audio: aac 48000 Hz".
func streamLines(d probe.Descriptor) []string {
	var lines []string
	frames, framesOK := d.TotalFrames()

	for _, st := range d.Streams {
		switch st.CodecType {
		case "video":
			line := fmt.Sprintf("Video: %s %dx%d", st.CodecName, st.Width, st.Height)
			if framesOK {
				line += fmt.Sprintf(" frames: %d", frames)
			}
			lines = append(lines, line)
		case "audio":
			line := "Audio: " + st.CodecName
			if len(st.SampleRate) != 0 {
				line += fmt.Sprintf(" %s Hz", st.SampleRate)
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// expectedDurationMs is the length of the output given the input duration
// and the trim window. Zero means unknown.
func expectedDurationMs(totalMs int64, r ffmpeg.Request) int64 {
	start, end := int64(0), totalMs
	if r.TrimStartMs != nil {
		start = *r.TrimStartMs
	}
	if r.TrimEndMs != nil && (end == 0 || *r.TrimEndMs < end) {
		end = *r.TrimEndMs
	}
	if end <= start {
		return 0
	}
	return end - start
}

// percentOf returns done/total in percent with one decimal, clamped to [0, 100].
// It is 0 when total is unknown.
func percentOf(doneMs, totalMs int64) float64 {
	if totalMs <= 0 {
		return 0
	}
	p := float64(doneMs) / float64(totalMs) * 100
	p = math.Round(p*10) / 10
	return min(max(p, 0), 100)
}
