// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package job

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/logger"
	"github.com/ZSC714725/ffconvert/internal/process"
)

// Store runs conversions one at a time and keeps their results in memory
type Store interface {
	// Add validates the request and starts it. ErrBusy while another job runs.
	Add(req ffmpeg.Request) (*Job, error)
	Get(id string) (*Job, error)
	List() []*Job
	// Cancel stops a running job. It returns after the process was asked to
	// quit and, if needed, killed.
	Cancel(id string) error
	// Delete removes a job, cancelling it first when it is running.
	Delete(id string) error
	Probe(ctx context.Context, path string) (probe.Descriptor, error)
	Status() process.Status
	// Close cancels the running job and waits for it.
	Close()
}

// Config for the store
type Config struct {
	LogLines int
}

type store struct {
	ffmpeg     ffmpeg.FFmpeg
	logger     logger.Logger
	supervisor *process.Supervisor
	logLines   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobs    map[string]*Job
	current *Job
	closed  bool
	mu      sync.RWMutex
}

// NewStore creates a job store sharing one supervisor for all jobs
func NewStore(ff ffmpeg.FFmpeg, log logger.Logger, config Config) Store {
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &store{
		ffmpeg:     ff,
		logger:     log.With("job"),
		supervisor: ff.NewSupervisor(log.With("process")),
		logLines:   config.LogLines,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*Job),
	}
}

func (s *store) Add(req ffmpeg.Request) (*Job, error) {
	req = req.WithDefaults()
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	j := newJob(shortuuid.New(), req, s.ffmpeg.Command(req), s.logLines)
	ctx, cancel := context.WithCancel(s.ctx)
	j.cancel = cancel

	s.jobs[j.ID] = j
	s.current = j
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("job %s started: %s -> %s", j.ID, req.Input, req.Output)
	go s.run(ctx, j)

	return j, nil
}

func (s *store) check(req ffmpeg.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if !s.ffmpeg.ValidateInput(req.Input) {
		return fmt.Errorf("%w: %s", ErrInvalidInputAddress, req.Input)
	}
	if req.ReplaceAudio && !s.ffmpeg.ValidateInput(req.AudioFile) {
		return fmt.Errorf("%w: %s", ErrInvalidInputAddress, req.AudioFile)
	}
	if !s.ffmpeg.ValidateOutput(req.Output) {
		return fmt.Errorf("%w: %s", ErrInvalidOutputAddress, req.Output)
	}

	skills := s.ffmpeg.Skills()
	for _, encoder := range req.Encoders() {
		if !skills.HasEncoder(encoder) {
			return fmt.Errorf("%w: %s", ErrUnsupportedEncoder, encoder)
		}
	}
	return nil
}

func (s *store) run(ctx context.Context, j *Job) {
	defer s.wg.Done()
	defer j.cancel()

	j.logf(LevelInfo, "command: %s", strings.Join(j.Command, " "))

	// The input duration turns progress into a percentage. Without it the
	// conversion still runs.
	if d, err := s.ffmpeg.Probe(ctx, j.Request.Input); err == nil {
		summary := d.Summary()
		j.setMedia(d.DurationMs(), summary)
		if len(summary) != 0 {
			j.logf(LevelInfo, "input: %s", summary)
		}
		for _, line := range streamLines(d) {
			j.logf(LevelInfo, "%s", line)
		}
	} else if process.IsFailure(err) {
		j.logf(LevelWarning, "probe failed, no percentage available: %s", err)
	}

	parser := s.ffmpeg.NewParser(j.setProgress)
	outcome, err := s.supervisor.Run(ctx, j.Command, j.Request.Output, process.Handlers{
		Parser: parser,
		OnLog: func(line process.Line) {
			j.logf(LevelDebug, "%s", line.Data)
		},
	})

	s.mu.Lock()
	if s.current == j {
		s.current = nil
	}
	s.mu.Unlock()

	j.finish(outcome, err)

	switch {
	case err == nil:
		s.logger.Info("job %s finished in %s", j.ID, outcome.Elapsed)
	case process.IsFailure(err):
		s.logger.Error("job %s failed: %s", j.ID, err)
	default:
		s.logger.Info("job %s cancelled", j.ID)
	}
}

func (s *store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (s *store) List() []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *store) Cancel(id string) error {
	s.mu.RLock()
	j, ok := s.jobs[id]
	running := ok && s.current == j
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if !running {
		return ErrNotRunning
	}

	j.logf(LevelInfo, "cancel requested")
	err := s.supervisor.Cancel()
	// covers the probe phase, before the supervisor owns a process
	j.cancel()
	return err
}

func (s *store) Delete(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := s.Cancel(id); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	<-j.Done()

	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return nil
}

func (s *store) Probe(ctx context.Context, path string) (probe.Descriptor, error) {
	if !s.ffmpeg.ValidateInput(path) {
		return probe.Descriptor{}, fmt.Errorf("%w: %s", ErrInvalidInputAddress, path)
	}
	return s.ffmpeg.Probe(ctx, path)
}

func (s *store) Status() process.Status {
	return s.supervisor.Status()
}

func (s *store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.supervisor.Cancel()
	s.cancel()
	s.wg.Wait()
}
