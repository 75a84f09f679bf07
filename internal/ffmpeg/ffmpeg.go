// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffconvert/internal/logger"
	"github.com/ZSC714725/ffconvert/internal/process"
)

// FFmpeg gives access to the local ffmpeg/ffprobe installation
type FFmpeg interface {
	Toolchain() Toolchain
	// Command builds the full argv for a conversion, binary included.
	Command(req Request) []string
	NewSupervisor(log logger.Logger) *process.Supervisor
	NewParser(onProgress func(parse.Progress)) parse.Parser
	Probe(ctx context.Context, path string) (probe.Descriptor, error)
	ValidateInput(address string) bool
	ValidateOutput(address string) bool
	Skills() skills.Skills
	ReloadSkills() error
}

// Config for FFmpeg
type Config struct {
	Binary          string
	ProbeBinary     string
	GraceTimeout    time.Duration
	StaleTimeout    time.Duration
	ValidatorInput  Validator
	ValidatorOutput Validator
}

type ffmpeg struct {
	toolchain    Toolchain
	graceTimeout time.Duration
	staleTimeout time.Duration

	validatorIn  Validator
	validatorOut Validator

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// New resolves the toolchain and detects the skills of ffmpeg. A missing
// ffprobe is not an error here; Probe reports it.
func New(config Config) (FFmpeg, error) {
	f := &ffmpeg{
		toolchain:    ResolveToolchain(config.Binary, config.ProbeBinary),
		graceTimeout: config.GraceTimeout,
		staleTimeout: config.StaleTimeout,
		validatorIn:  config.ValidatorInput,
		validatorOut: config.ValidatorOutput,
	}

	if len(f.toolchain.FFmpeg) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg binary %q not found", process.ErrToolchain, config.Binary)
	}

	if f.validatorIn == nil {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if f.validatorOut == nil {
		f.validatorOut, _ = NewValidator(nil, nil)
	}

	s, err := skills.New(f.toolchain.FFmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ffmpeg: %w", process.ErrToolchain, err)
	}
	f.skills = s

	return f, nil
}

func (f *ffmpeg) Toolchain() Toolchain {
	return f.toolchain
}

func (f *ffmpeg) Command(req Request) []string {
	return BuildCommand(f.toolchain.FFmpeg, req)
}

func (f *ffmpeg) NewSupervisor(log logger.Logger) *process.Supervisor {
	config := process.Config{
		GraceTimeout: f.graceTimeout,
		StaleTimeout: f.staleTimeout,
	}
	if log != nil {
		config.Logger = log
	}
	return process.New(config)
}

func (f *ffmpeg) NewParser(onProgress func(parse.Progress)) parse.Parser {
	return parse.New(parse.Config{OnProgress: onProgress})
}

func (f *ffmpeg) Probe(ctx context.Context, path string) (probe.Descriptor, error) {
	return probe.Probe(ctx, f.toolchain.FFprobe, path)
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) ValidateOutput(address string) bool {
	return f.validatorOut.IsValid(address)
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.toolchain.FFmpeg)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}
