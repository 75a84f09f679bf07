// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffconvert/internal/logger"
	"github.com/ZSC714725/ffconvert/internal/process"
)

const stubFFmpeg = `case "$*" in
-version) printf 'ffmpeg version 6.1.1 Copyright\n' ;;
*-codecs) printf ' DEV.LS h264  H.264 (decoders: h264 ) (encoders: libx264 )\n DEA.L. aac  AAC (decoders: aac )\n' ;;
*) printf 'frame=1\nprogress=end\n' ;;
esac`

const stubFFprobe = `printf '{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":320,"height":240}],"format":{"filename":"in.mp4","nb_streams":1,"format_name":"mp4","duration":"2.0","size":"100","bit_rate":"400"}}'`

func newTestFFmpeg(t *testing.T, config Config) (FFmpeg, string) {
	t.Helper()
	dir := t.TempDir()
	writeTool(t, dir, "ffmpeg", stubFFmpeg, 0o755)
	writeTool(t, dir, "ffprobe", stubFFprobe, 0o755)

	config.Binary = filepath.Join(dir, "ffmpeg")
	f, err := New(config)
	require.NoError(t, err)
	return f, dir
}

func TestNew(t *testing.T) {
	f, dir := newTestFFmpeg(t, Config{})

	assert.Equal(t, Toolchain{
		FFmpeg:  filepath.Join(dir, "ffmpeg"),
		FFprobe: filepath.Join(dir, "ffprobe"),
	}, f.Toolchain())
	assert.Equal(t, "6.1.1", f.Skills().Version.Number)
	assert.True(t, f.Skills().HasEncoder("libx264"))
	assert.True(t, f.Skills().HasEncoder("aac"))
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(Config{Binary: filepath.Join(t.TempDir(), "ffmpeg")})
	assert.ErrorIs(t, err, process.ErrToolchain)
}

func TestNewBrokenBinary(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "ffmpeg", "exit 1", 0o755)

	_, err := New(Config{Binary: filepath.Join(dir, "ffmpeg")})
	assert.ErrorIs(t, err, process.ErrToolchain)
}

func TestCommandUsesResolvedBinary(t *testing.T) {
	f, dir := newTestFFmpeg(t, Config{})

	argv := f.Command(Request{Input: "in.mp4", Output: "out.mkv", Type: StreamCopy})
	assert.Equal(t, filepath.Join(dir, "ffmpeg"), argv[0])
	assert.Equal(t, "out.mkv", argv[len(argv)-1])
}

func TestProbeUsesSibling(t *testing.T) {
	f, _ := newTestFFmpeg(t, Config{})

	d, err := f.Probe(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.Equal(t, "mp4", d.Format.FormatName)
	assert.Equal(t, int64(2000), d.DurationMs())
}

func TestSupervisorRunsConversion(t *testing.T) {
	f, _ := newTestFFmpeg(t, Config{})

	var got []parse.Progress
	parser := f.NewParser(func(p parse.Progress) { got = append(got, p) })
	sup := f.NewSupervisor(logger.Nop())

	argv := f.Command(Request{Input: "in.mp4", Output: "out.mp4", Type: StreamCopy})
	outcome, err := sup.Run(context.Background(), argv, "out.mp4", process.Handlers{Parser: parser})
	require.NoError(t, err)
	assert.Equal(t, "out.mp4", outcome.Output)

	require.Len(t, got, 1)
	assert.True(t, got[0].Done())
	assert.Equal(t, int64(1), got[0].Frame)
}

func TestValidators(t *testing.T) {
	in, err := NewValidator([]string{`^/media/`}, nil)
	require.NoError(t, err)
	out, err := NewValidator(nil, []string{`^/etc/`})
	require.NoError(t, err)

	f, _ := newTestFFmpeg(t, Config{ValidatorInput: in, ValidatorOutput: out})

	assert.True(t, f.ValidateInput("/media/a.mp4"))
	assert.False(t, f.ValidateInput("/tmp/a.mp4"))
	assert.True(t, f.ValidateOutput("/tmp/a.mp4"))
	assert.False(t, f.ValidateOutput("/etc/a.mp4"))
}

func TestReloadSkills(t *testing.T) {
	f, dir := newTestFFmpeg(t, Config{})
	require.NoError(t, f.ReloadSkills())

	writeTool(t, dir, "ffmpeg", "exit 1", 0o755)
	assert.Error(t, f.ReloadSkills())
	assert.Equal(t, "6.1.1", f.Skills().Version.Number)
}
