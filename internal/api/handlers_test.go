// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/job"
	"github.com/ZSC714725/ffconvert/internal/logger"
	"github.com/ZSC714725/ffconvert/internal/process"
)

const stubFFmpeg = `case "$*" in
-version) printf 'ffmpeg version 6.1.1 Copyright\n'; exit 0 ;;
*-codecs) printf ' DEV.LS h264  H.264 (decoders: h264 ) (encoders: libx264 )\n DEA.L. aac  AAC (decoders: aac )\n'; exit 0 ;;
*-formats) printf '  E mp4             MP4 (MPEG-4 Part 14)\n'; exit 0 ;;
*-hwaccels) exit 0 ;;
esac
for last; do :; done
case "$last" in
*slow*)
  printf 'frame=5\nout_time_ms=1000000\nprogress=continue\n'
  read cmd
  exit 255 ;;
esac
printf 'frame=20\nout_time_ms=2000000\nprogress=end\n'`

const stubFFprobe = `case "$*" in
-version) printf 'ffprobe version 6.1.1 Copyright\n'; exit 0 ;;
esac
for last; do :; done
case "$last" in
*broken*) printf 'not json'; exit 0 ;;
*missing*) printf 'No such file or directory\n'; exit 1 ;;
esac
printf '{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":320,"height":240,"avg_frame_rate":"10/1","r_frame_rate":"10/1","nb_frames":"20"}],"format":{"filename":"in.mp4","nb_streams":1,"format_name":"mp4","duration":"2.0","size":"1000","bit_rate":"4000"}}'`

func writeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeTool(t, dir, "ffmpeg", stubFFmpeg)
	writeTool(t, dir, "ffprobe", stubFFprobe)

	out, err := ffmpeg.NewValidator(nil, []string{`^/etc/`})
	require.NoError(t, err)

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          filepath.Join(dir, "ffmpeg"),
		GraceTimeout:    5 * time.Second,
		ValidatorOutput: out,
	})
	require.NoError(t, err)

	store := job.NewStore(ff, logger.Nop(), job.Config{})
	t.Cleanup(store.Close)

	r := gin.New()
	NewHandler(store, ff).Register(r.Group("/api/v1"))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func waitState(t *testing.T, r http.Handler, id string, state job.State) job.Snapshot {
	t.Helper()
	var snap job.Snapshot
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/v1/jobs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		snap = decode[job.Snapshot](t, w)
		return snap.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestToolchain(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/toolchain", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ToolchainResponse](t, w)
	assert.True(t, resp.Configured)
	assert.Equal(t, "ffprobe", filepath.Base(resp.Toolchain.FFprobe))
	require.NotNil(t, resp.Version)
	assert.Equal(t, "6.1.1", resp.Version.Number)
	assert.Empty(t, resp.Error)
}

func TestSkills(t *testing.T) {
	r := newTestRouter(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/skills"},
		{http.MethodPost, "/api/v1/skills/reload"},
	} {
		w := do(r, req.method, req.path, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[SkillsResponse](t, w)
		assert.Equal(t, "6.1.1", resp.FFmpeg.Number)
		assert.Equal(t, []string{"copy", "libx264"}, resp.Encoders.Video)
		assert.Equal(t, []string{"copy", "aac"}, resp.Encoders.Audio)
	}
}

func TestProbe(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/probe", ProbeRequest{Path: "in.mp4"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ProbeResponse](t, w)
	assert.Equal(t, "MP4 • 320x240 • 10.00 (CFR) • frames: 20 • 00:02 • 1.0 kB", resp.Summary)
	require.NotNil(t, resp.Frames)
	assert.Equal(t, int64(20), *resp.Frames)
	assert.False(t, resp.VFR)
	assert.Equal(t, int64(2000), resp.DurationMs)
	assert.Equal(t, "h264", resp.Descriptor.Streams[0].CodecName)
}

func TestProbeErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing path", ProbeRequest{}, http.StatusBadRequest},
		{"malformed output", ProbeRequest{Path: "broken.mp4"}, http.StatusBadGateway},
		{"non-zero exit", ProbeRequest{Path: "missing.mp4"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/probe", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs", ffmpeg.Request{Input: "in.mp4", Output: "out.mp4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[job.Snapshot](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, ffmpeg.StreamCopy, created.Request.Type)

	snap := waitState(t, r, created.ID, job.StateFinished)
	assert.Equal(t, float64(100), snap.Percent)
	assert.Equal(t, "out.mp4", snap.Output)

	w = do(r, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]job.Snapshot](t, w), 1)

	w = do(r, http.MethodGet, "/api/v1/jobs?state=running", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]job.Snapshot](t, w))

	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.ID+"/log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	log := decode[JobLogResponse](t, w)
	assert.Equal(t, job.StateFinished, log.State)
	assert.NotEmpty(t, log.Log)

	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.ID+"/log?level=success", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[JobLogResponse](t, w).Log, 1)

	w = do(r, http.MethodDelete, "/api/v1/jobs/"+created.ID+"/log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.ID+"/log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[JobLogResponse](t, w).Log)

	w = do(r, http.MethodPost, "/api/v1/jobs/"+created.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodDelete, "/api/v1/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddJobErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"invalid json", "[", http.StatusBadRequest},
		{"missing output", ffmpeg.Request{Input: "in.mp4"}, http.StatusBadRequest},
		{"blocked output", ffmpeg.Request{Input: "in.mp4", Output: "/etc/out.mp4"}, http.StatusBadRequest},
		{"unsupported encoder", ffmpeg.Request{Input: "in.mp4", Output: "out.mp4", Type: ffmpeg.Reencode, VideoCodec: ffmpeg.VideoVP9}, http.StatusBadRequest},
		{"unknown trim strategy", `{"input":"in.mp4","output":"out.mp4","type":"reencode","trim_start_ms":10000,"trim_end_ms":20000,"trim_strategy":"Accurate"}`, http.StatusBadRequest},
		{"crf out of range", `{"input":"in.mp4","output":"out.mp4","type":"reencode","crf":99}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w := do(r, http.MethodGet, "/api/v1/jobs", nil)
	assert.Empty(t, decode[[]job.Snapshot](t, w))
}

func TestCancelJob(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/jobs", ffmpeg.Request{Input: "in.mp4", Output: "slow.mp4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode[job.Snapshot](t, w).ID

	w = do(r, http.MethodPost, "/api/v1/jobs", ffmpeg.Request{Input: "in.mp4", Output: "other.mp4"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, job.StateCancelled, decode[job.Snapshot](t, w).State)

	w = do(r, http.MethodPost, "/api/v1/jobs", ffmpeg.Request{Input: "in.mp4", Output: "other.mp4"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownJob(t *testing.T) {
	r := newTestRouter(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/jobs/missing"},
		{http.MethodDelete, "/api/v1/jobs/missing"},
		{http.MethodPost, "/api/v1/jobs/missing/cancel"},
		{http.MethodGet, "/api/v1/jobs/missing/log"},
		{http.MethodDelete, "/api/v1/jobs/missing/log"},
	} {
		w := do(r, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, req.path)
		assert.Equal(t, "Unknown job ID", decode[ErrorResponse](t, w).Message)
	}
}

func TestErrStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{job.ErrNotFound, http.StatusNotFound},
		{job.ErrBusy, http.StatusConflict},
		{job.ErrNotRunning, http.StatusConflict},
		{job.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: /x", job.ErrInvalidInputAddress), http.StatusBadRequest},
		{fmt.Errorf("%w: libx265", job.ErrUnsupportedEncoder), http.StatusBadRequest},
		{fmt.Errorf("%w: end before start", ffmpeg.ErrInvalidTrim), http.StatusBadRequest},
		{fmt.Errorf("%w: 99", ffmpeg.ErrInvalidCRF), http.StatusBadRequest},
		{fmt.Errorf("%w: no ffprobe", process.ErrToolchain), http.StatusServiceUnavailable},
		{&probe.MalformedOutputError{Err: errors.New("eof")}, http.StatusBadGateway},
		{fmt.Errorf("probe x: %w", &process.ExitError{Code: 1}), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: context canceled", process.ErrCancelled), http.StatusRequestTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, _ := errStatus(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
