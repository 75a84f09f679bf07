// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/job"
	"github.com/ZSC714725/ffconvert/internal/process"
)

// Handler holds dependencies
type Handler struct {
	store  job.Store
	ffmpeg ffmpeg.FFmpeg
}

// NewHandler creates API handler
func NewHandler(store job.Store, ff ffmpeg.FFmpeg) *Handler {
	return &Handler{store: store, ffmpeg: ff}
}

// Register mounts the routes on g, usually the /api/v1 group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/toolchain", h.Toolchain)
	g.GET("/status", h.Status)

	g.GET("/skills", h.Skills)
	g.POST("/skills/reload", h.ReloadSkills)

	g.POST("/probe", h.Probe)

	g.GET("/jobs", h.ListJobs)
	g.POST("/jobs", h.AddJob)
	g.GET("/jobs/:id", h.GetJob)
	g.DELETE("/jobs/:id", h.DeleteJob)
	g.POST("/jobs/:id/cancel", h.CancelJob)
	g.GET("/jobs/:id/log", h.GetLog)
	g.DELETE("/jobs/:id/log", h.ClearLog)
}

func errResp(c *gin.Context, err error) {
	code, msg := errStatus(err)
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: err.Error()})
}

// errStatus maps the error taxonomy to a status code and a short message.
func errStatus(err error) (int, string) {
	var exitErr *process.ExitError

	switch {
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound, "Unknown job ID"
	case errors.Is(err, job.ErrBusy):
		return http.StatusConflict, "Another job is running"
	case errors.Is(err, job.ErrNotRunning):
		return http.StatusConflict, "Job is not running"
	case errors.Is(err, job.ErrClosed):
		return http.StatusServiceUnavailable, "Shutting down"
	case errors.Is(err, job.ErrInvalidInputAddress), errors.Is(err, job.ErrInvalidOutputAddress):
		return http.StatusBadRequest, "Invalid address"
	case errors.Is(err, job.ErrUnsupportedEncoder):
		return http.StatusBadRequest, "Unsupported encoder"
	case isInvalidRequest(err):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, process.ErrToolchain):
		return http.StatusServiceUnavailable, "FFmpeg not available"
	case errors.Is(err, probe.ErrMalformedOutput):
		return http.StatusBadGateway, "Malformed probe output"
	case errors.As(err, &exitErr):
		return http.StatusUnprocessableEntity, "Process failed"
	case errors.Is(err, process.ErrCancelled):
		return http.StatusRequestTimeout, "Cancelled"
	}
	return http.StatusInternalServerError, "Internal error"
}

func isInvalidRequest(err error) bool {
	for _, target := range []error{
		ffmpeg.ErrEmptyInput,
		ffmpeg.ErrEmptyOutput,
		ffmpeg.ErrMissingAudio,
		ffmpeg.ErrInvalidTrim,
		ffmpeg.ErrUnknownConvertType,
		ffmpeg.ErrInvalidCRF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Toolchain GET /api/v1/toolchain
func (h *Handler) Toolchain(c *gin.Context) {
	tc := h.ffmpeg.Toolchain()
	resp := ToolchainResponse{
		Toolchain:  tc,
		Configured: tc.Configured(),
	}

	if v, err := tc.Verify(); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Version = &v
	}

	c.JSON(http.StatusOK, resp)
}

// Status GET /api/v1/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Status())
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills()))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, err)
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills()))
}

// Probe POST /api/v1/probe
func (h *Handler) Probe(c *gin.Context) {
	var req ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: "Invalid JSON", Detail: err.Error()})
		return
	}

	d, err := h.store.Probe(c.Request.Context(), req.Path)
	if err != nil {
		errResp(c, err)
		return
	}

	resp := ProbeResponse{
		Descriptor: d,
		Summary:    d.Summary(),
		FrameRate:  d.FrameRateLabel(),
		VFR:        d.IsVariableFrameRate(),
		DurationMs: d.DurationMs(),
	}
	if frames, ok := d.TotalFrames(); ok {
		resp.Frames = &frames
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	state := job.State(c.DefaultQuery("state", ""))

	jobs := h.store.List()
	snaps := make([]job.Snapshot, 0, len(jobs))
	for _, j := range jobs {
		s := j.Snapshot()
		if len(state) != 0 && s.State != state {
			continue
		}
		snaps = append(snaps, s)
	}

	c.JSON(http.StatusOK, snaps)
}

// AddJob POST /api/v1/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var req ffmpeg.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: "Invalid JSON", Detail: err.Error()})
		return
	}

	j, err := h.store.Add(req)
	if err != nil {
		errResp(c, err)
		return
	}

	c.JSON(http.StatusOK, j.Snapshot())
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, err)
		return
	}

	c.JSON(http.StatusOK, j.Snapshot())
}

// DeleteJob DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		errResp(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// CancelJob POST /api/v1/jobs/:id/cancel
func (h *Handler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	j, err := h.store.Get(id)
	if err != nil {
		errResp(c, err)
		return
	}
	if err := h.store.Cancel(id); err != nil {
		errResp(c, err)
		return
	}

	<-j.Done()
	c.JSON(http.StatusOK, j.Snapshot())
}

// GetLog GET /api/v1/jobs/:id/log
func (h *Handler) GetLog(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, err)
		return
	}

	level := job.Level(c.DefaultQuery("level", ""))
	entries := j.Log()
	if len(level) != 0 {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []job.LogEntry{}
	}

	c.JSON(http.StatusOK, JobLogResponse{ID: j.ID, State: j.State(), Log: entries})
}

// ClearLog DELETE /api/v1/jobs/:id/log
func (h *Handler) ClearLog(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, err)
		return
	}

	j.ClearLog()
	c.JSON(http.StatusOK, "OK")
}
