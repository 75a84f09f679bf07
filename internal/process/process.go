// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具
//
// Package process supervises one external tool invocation at a time: it
// spawns the binary, drains stdout into a Parser and stderr into a log
// callback, and stops the child gracefully on request.

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// quitCommand asks ffmpeg to finish the current output and exit.
const quitCommand = "q\n"

const (
	DefaultGraceTimeout = 2 * time.Second
	DefaultDrainTimeout = 5 * time.Second
)

// Logger interface
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Config for a Supervisor
type Config struct {
	// GraceTimeout is how long a cancelled process gets to exit after the quit
	// command before it is killed.
	GraceTimeout time.Duration
	// DrainTimeout bounds how long output is read after the process exited.
	// Descendants that inherited the pipes cannot hold Run open past it.
	DrainTimeout time.Duration
	// StaleTimeout stops the process when no progress cycle completed for that
	// long. Zero disables the watchdog.
	StaleTimeout time.Duration
	Logger       Logger
	Sampler      UsageSampler
}

// Handlers receive the output of a single run. Both are called from the
// drain goroutines.
type Handlers struct {
	Parser Parser
	OnLog  func(Line)
}

// Outcome of a run that reached the process exit
type Outcome struct {
	Output   string
	ExitCode int
	Elapsed  time.Duration
}

// Status of the supervisor
type Status struct {
	State    string        `json:"state"`
	States   States        `json:"states"`
	Pid      int           `json:"pid,omitempty"`
	Duration time.Duration `json:"duration"`
	Time     time.Time     `json:"time"`
	Usage    Usage         `json:"usage"`
}

// States cumulative counts
type States struct {
	Finished  uint64 `json:"finished"`
	Starting  uint64 `json:"starting"`
	Running   uint64 `json:"running"`
	Finishing uint64 `json:"finishing"`
	Failed    uint64 `json:"failed"`
	Killed    uint64 `json:"killed"`
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

// transitions lists the states reachable from each state.
var transitions = map[stateType][]stateType{
	stateFinished:  {stateStarting},
	stateStarting:  {stateRunning, stateFinishing, stateFailed},
	stateRunning:   {stateFinished, stateFinishing, stateFailed, stateKilled},
	stateFinishing: {stateFinished, stateFailed, stateKilled},
	stateFailed:    {stateStarting},
	stateKilled:    {stateStarting},
}

type stopReason int32

const (
	reasonNone stopReason = iota
	reasonCancel
	reasonStale
)

// handle is the live state of one spawned process.
type handle struct {
	cmd    *exec.Cmd
	stdin  *os.File
	exited chan struct{}

	reason       atomic.Int32
	lastProgress atomic.Int64
}

func (h *handle) touch() {
	h.lastProgress.Store(time.Now().UnixNano())
}

func (h *handle) sinceProgress(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, h.lastProgress.Load()))
}

func (h *handle) kill() error {
	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Supervisor runs external processes and can cancel the active one from
// another goroutine. Callers run at most one process at a time; Cancel
// addresses the most recently started one.
type Supervisor struct {
	grace        time.Duration
	drainTimeout time.Duration
	staleTimeout time.Duration
	logger       Logger
	sampler      UsageSampler

	active atomic.Pointer[handle]

	state struct {
		state  stateType
		time   time.Time
		states States
		lock   sync.Mutex
	}
}

// New creates a Supervisor
func New(config Config) *Supervisor {
	s := &Supervisor{
		grace:        config.GraceTimeout,
		drainTimeout: config.DrainTimeout,
		staleTimeout: config.StaleTimeout,
		logger:       config.Logger,
		sampler:      config.Sampler,
	}

	if s.grace <= 0 {
		s.grace = DefaultGraceTimeout
	}
	if s.drainTimeout <= 0 {
		s.drainTimeout = DefaultDrainTimeout
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.sampler == nil {
		s.sampler = NewSysSampler()
	}

	s.state.state = stateFinished
	s.state.time = time.Now()
	return s
}

func (s *Supervisor) setState(state stateType) {
	s.state.lock.Lock()
	defer s.state.lock.Unlock()

	from := s.state.state
	allowed := false
	for _, to := range transitions[from] {
		if to == state {
			allowed = true
			break
		}
	}
	if !allowed {
		s.logger.Debug("can't change from %s to %s", from, state)
		return
	}

	s.state.state = state
	s.state.time = time.Now()

	switch state {
	case stateFinished:
		s.state.states.Finished++
	case stateStarting:
		s.state.states.Starting++
	case stateRunning:
		s.state.states.Running++
	case stateFinishing:
		s.state.states.Finishing++
	case stateFailed:
		s.state.states.Failed++
	case stateKilled:
		s.state.states.Killed++
	}
}

// IsRunning reports whether a process is active and not yet cancelled.
func (s *Supervisor) IsRunning() bool {
	return s.active.Load() != nil
}

// Status returns the state counters and resource usage of the active process.
func (s *Supervisor) Status() Status {
	s.state.lock.Lock()
	status := Status{
		State:    string(s.state.state),
		States:   s.state.states,
		Duration: time.Since(s.state.time),
		Time:     s.state.time,
	}
	s.state.lock.Unlock()

	if h := s.active.Load(); h != nil {
		status.Pid = h.cmd.Process.Pid
		status.Usage = s.sampler.Sample()
	}
	return status
}

// Run spawns argv[0] with argv[1:] and blocks until the process exited and
// both output streams are drained. Stdout lines go to handlers.Parser,
// non-empty stderr lines to handlers.OnLog. A cancelled run returns
// ErrCancelled regardless of the exit code.
func (s *Supervisor) Run(ctx context.Context, argv []string, output string, handlers Handlers) (Outcome, error) {
	if len(argv) == 0 || len(argv[0]) == 0 {
		return Outcome{}, fmt.Errorf("%w: no binary given", ErrToolchain)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	parser := handlers.Parser
	if parser == nil {
		parser = &nullParser{}
	}
	onLog := handlers.OnLog
	if onLog == nil {
		onLog = func(Line) {}
	}

	s.setState(stateStarting)

	h, stdout, stderr, err := spawn(argv)
	if err != nil {
		s.setState(stateFailed)
		s.logger.Debug("%s", err)
		return Outcome{}, err
	}

	start := time.Now()
	pid := h.cmd.Process.Pid
	s.active.Store(h)
	if err := s.sampler.Start(pid); err != nil {
		s.logger.Debug("sampling pid %d: %s", pid, err)
	}
	s.setState(stateRunning)
	s.logger.Debug("started pid %d: %s", pid, strings.Join(argv, " "))

	parser.ResetStats()
	h.touch()

	var watchers sync.WaitGroup
	watchers.Add(1)
	go func() {
		defer watchers.Done()
		s.watchContext(ctx, h)
	}()
	if s.staleTimeout > 0 {
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			s.watchStale(h)
		}()
	}

	var g errgroup.Group
	g.Go(func() error {
		return drain(stdout, func(line string) {
			if parser.Parse(line) {
				h.touch()
			}
		})
	})
	g.Go(func() error {
		return drain(stderr, func(line string) {
			if len(strings.TrimSpace(line)) == 0 {
				return
			}
			onLog(Line{Timestamp: time.Now(), Stream: StreamStderr, Data: line})
		})
	})
	drained := make(chan error, 1)
	go func() {
		drained <- g.Wait()
	}()

	h.cmd.Wait()
	close(h.exited)
	elapsed := time.Since(start)

	drainErr := s.awaitDrain(drained, stdout, stderr)
	h.stdin.Close()
	watchers.Wait()

	s.sampler.Stop()
	s.active.CompareAndSwap(h, nil)

	code := ExitCode(h.cmd.ProcessState)
	outcome := Outcome{Output: output, ExitCode: code, Elapsed: elapsed}

	switch stopReason(h.reason.Load()) {
	case reasonCancel:
		s.setState(stateKilled)
		s.logger.Info("pid %d cancelled after %s", pid, elapsed.Round(time.Millisecond))
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return outcome, ErrCancelled
	case reasonStale:
		s.setState(stateFailed)
		return outcome, fmt.Errorf("%w: no progress for %s", ErrStale, s.staleTimeout)
	}

	if drainErr != nil {
		s.setState(stateFailed)
		return outcome, fmt.Errorf("%w: %w", ErrDrain, drainErr)
	}
	if code != 0 {
		s.setState(stateFailed)
		return outcome, &ExitError{Code: code}
	}

	s.setState(stateFinished)
	s.logger.Debug("pid %d finished after %s", pid, elapsed.Round(time.Millisecond))
	return outcome, nil
}

// Cancel stops the active process, if any. It writes the quit command to the
// process' stdin and kills it when it did not exit within the grace timeout.
// Without an active process Cancel does nothing.
func (s *Supervisor) Cancel() error {
	h := s.active.Swap(nil)
	if h == nil {
		return nil
	}
	return s.terminate(h, reasonCancel)
}

func (s *Supervisor) terminate(h *handle, reason stopReason) error {
	select {
	case <-h.exited:
		return nil
	default:
	}
	if !h.reason.CompareAndSwap(int32(reasonNone), int32(reason)) {
		return nil
	}

	s.setState(stateFinishing)
	pid := h.cmd.Process.Pid

	// stdin is an unbuffered pipe, the command reaches the child immediately.
	if _, err := io.WriteString(h.stdin, quitCommand); err != nil {
		s.logger.Debug("pid %d: writing quit command: %s", pid, err)
		return h.kill()
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-h.exited:
		return nil
	case <-timer.C:
		s.logger.Warn("pid %d did not quit within %s, killing", pid, s.grace)
		return h.kill()
	}
}

func (s *Supervisor) watchContext(ctx context.Context, h *handle) {
	select {
	case <-ctx.Done():
		s.active.CompareAndSwap(h, nil)
		s.terminate(h, reasonCancel)
	case <-h.exited:
	}
}

func (s *Supervisor) watchStale(h *handle) {
	interval := time.Second
	if s.staleTimeout < 2*interval {
		interval = max(s.staleTimeout/2, time.Millisecond)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.exited:
			return
		case now := <-ticker.C:
			if h.sinceProgress(now) > s.staleTimeout {
				s.logger.Warn("pid %d: no progress for %s, stopping", h.cmd.Process.Pid, s.staleTimeout)
				s.active.CompareAndSwap(h, nil)
				s.terminate(h, reasonStale)
				return
			}
		}
	}
}

// awaitDrain waits for both drains. Streams still open after the drain
// timeout are closed, which ends the blocked reads.
func (s *Supervisor) awaitDrain(drained <-chan error, readers ...*os.File) error {
	timer := time.NewTimer(s.drainTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-drained:
	case <-timer.C:
		s.logger.Warn("output still open %s after exit, closing", s.drainTimeout)
		for _, r := range readers {
			r.Close()
		}
		err = <-drained
		if errors.Is(err, os.ErrClosed) {
			err = nil
		}
	}

	for _, r := range readers {
		r.Close()
	}
	return err
}

// spawn starts the process with three pipes. The child ends are closed in
// the parent once the child holds them, so the readers see EOF on exit.
func spawn(argv []string) (h *handle, stdout, stderr *os.File, err error) {
	var files []*os.File
	pipe := func() (r, w *os.File) {
		if err != nil {
			return nil, nil
		}
		r, w, err = os.Pipe()
		if err == nil {
			files = append(files, r, w)
		}
		return r, w
	}
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	stdinR, stdinW := pipe()
	stdoutR, stdoutW := pipe()
	stderrR, stderrW := pipe()
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, nil, nil, StartError(argv[0], err)
	}

	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	h = &handle{
		cmd:    cmd,
		stdin:  stdinW,
		exited: make(chan struct{}),
	}
	return h, stdoutR, stderrR, nil
}

type nopLogger struct{}

func (nopLogger) Debug(format string, args ...interface{}) {}
func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
