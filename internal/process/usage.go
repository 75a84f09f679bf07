// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time resource sample of the running process
type Usage struct {
	CPU    float64 `json:"cpu_percent"`
	Memory uint64  `json:"memory_bytes"`
}

// UsageSampler samples CPU and memory of a pid between Start and Stop.
type UsageSampler interface {
	Start(pid int) error
	Stop()
	Sample() Usage
}

type nullSampler struct{}

// NewNullSampler returns a sampler that always reports zero usage
func NewNullSampler() UsageSampler {
	return nullSampler{}
}

func (nullSampler) Start(pid int) error { return nil }
func (nullSampler) Stop()               {}
func (nullSampler) Sample() Usage       { return Usage{} }

// sysSampler 使用 gopsutil 采集进程 CPU 和内存
type sysSampler struct {
	mu   sync.RWMutex
	proc *gopsutilprocess.Process
}

// NewSysSampler 创建基于系统调用的采样器
func NewSysSampler() UsageSampler {
	return &sysSampler{}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	return nil
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

func (s *sysSampler) Sample() Usage {
	s.mu.RLock()
	proc := s.proc
	s.mu.RUnlock()

	var u Usage
	if proc == nil {
		return u
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		u.CPU = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		u.Memory = mem.RSS
	}
	return u
}
