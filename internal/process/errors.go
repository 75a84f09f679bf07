// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

var (
	// ErrToolchain means the binary is missing or not executable.
	ErrToolchain = errors.New("toolchain not configured")
	// ErrSpawn means the OS refused to create the process for another reason.
	ErrSpawn = errors.New("process spawn failed")
	// ErrAbnormalExit is matched by every *ExitError.
	ErrAbnormalExit = errors.New("process exited abnormally")
	// ErrDrain means reading one of the output streams failed; collected progress is discarded.
	ErrDrain = errors.New("reading process output failed")
	// ErrCancelled marks an intentional early termination. It is not a failure.
	ErrCancelled = errors.New("cancelled by user")
	// ErrStale means no progress arrived within the stale timeout and the process was stopped.
	ErrStale = errors.New("process stalled")
)

// ExitError carries the exit code of a process that did not exit cleanly.
// Code is -1 when the process was terminated by a signal or the code is unknown.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrAbnormalExit
}

// IsFailure reports whether err should be surfaced as a failure. Cancellation is not.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrCancelled)
}

// StartError classifies an error returned by exec.Cmd.Start.
func StartError(binary string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w", ErrToolchain, binary, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSpawn, binary, err)
}

// ExitCode returns the exit code recorded in state, or -1 when it is unknown.
func ExitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
