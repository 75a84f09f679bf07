// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(p Parser, lines ...string) {
	for _, line := range lines {
		p.Parse(line)
	}
}

func TestParserEmitsSnapshotOnTerminator(t *testing.T) {
	var got []Progress
	p := New(Config{OnProgress: func(pr Progress) { got = append(got, pr) }})

	feed(p,
		"frame=10",
		"fps=29.5",
		"out_time_ms=500000",
		"total_size=1024",
		"bitrate=128.0kbits/s",
		"speed=1.0x",
	)
	require.Empty(t, got)

	assert.True(t, p.Parse("progress=continue"))

	require.Len(t, got, 1)
	assert.Equal(t, Progress{
		Frame:     10,
		FPS:       29.5,
		OutTimeMs: 500000,
		TotalSize: 1024,
		Bitrate:   128.0,
		Speed:     1.0,
		State:     StateContinue,
	}, got[0])
	assert.False(t, got[0].Done())
	assert.Equal(t, 500*time.Millisecond, got[0].OutTime())
	assert.Equal(t, got[0], p.Progress())
}

func TestParserIgnoresLinesWithoutSeparator(t *testing.T) {
	var calls int
	p := New(Config{OnProgress: func(Progress) { calls++ }})

	assert.False(t, p.Parse("garbage line"))
	assert.False(t, p.Parse(""))
	assert.False(t, p.Parse("progress"))

	assert.Zero(t, calls)
	assert.Equal(t, Progress{}, p.Progress())
}

func TestParserCyclesDoNotLeak(t *testing.T) {
	var got []Progress
	p := New(Config{OnProgress: func(pr Progress) { got = append(got, pr) }})

	feed(p, "frame=10", "fps=25", "bitrate=100kbits/s", "progress=continue")
	feed(p, "frame=20", "progress=continue")

	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].Frame)
	assert.Equal(t, 25.0, got[0].FPS)
	assert.Equal(t, 100.0, got[0].Bitrate)

	assert.Equal(t, int64(20), got[1].Frame)
	assert.Zero(t, got[1].FPS)
	assert.Zero(t, got[1].Bitrate)
}

func TestParserUnparsableValuesDefaultToZero(t *testing.T) {
	var got Progress
	p := New(Config{OnProgress: func(pr Progress) { got = pr }})

	feed(p,
		"frame=abc",
		"fps=",
		"bitrate=N/A",
		"speed=N/A",
		"total_size=-",
		"drop_frames=3",
		"dup_frames=1",
		"progress=end",
	)

	assert.Zero(t, got.Frame)
	assert.Zero(t, got.FPS)
	assert.Zero(t, got.Bitrate)
	assert.Zero(t, got.Speed)
	assert.Zero(t, got.TotalSize)
	assert.Equal(t, int64(3), got.DropFrames)
	assert.Equal(t, int64(1), got.DupFrames)
	assert.True(t, got.Done())
}

func TestParserLaterValueWinsWithinCycle(t *testing.T) {
	var got Progress
	p := New(Config{OnProgress: func(pr Progress) { got = pr }})

	feed(p, "frame=1", "frame=2", " speed = 2.5x ", "progress=continue")

	assert.Equal(t, int64(2), got.Frame)
	assert.Equal(t, 2.5, got.Speed)
}

func TestParserSplitsOnFirstSeparator(t *testing.T) {
	p := New(Config{})

	feed(p, "stream_0_0_q=28.0", "out_time=00:00:01.000000", "extra=a=b", "frame=7", "progress=continue")

	assert.Equal(t, StateContinue, p.Progress().State)
	assert.Equal(t, int64(7), p.Progress().Frame)
}

func TestParserResetStats(t *testing.T) {
	var calls int
	p := New(Config{OnProgress: func(Progress) { calls++ }})

	feed(p, "frame=5", "progress=continue", "frame=9")
	p.ResetStats()
	assert.Equal(t, Progress{}, p.Progress())

	feed(p, "progress=end")
	assert.Equal(t, 2, calls)
	assert.Zero(t, p.Progress().Frame)
}
