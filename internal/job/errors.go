// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package job

import "errors"

var (
	ErrNotFound             = errors.New("job not found")
	ErrBusy                 = errors.New("another job is running")
	ErrNotRunning           = errors.New("job is not running")
	ErrInvalidInputAddress  = errors.New("invalid input address")
	ErrInvalidOutputAddress = errors.New("invalid output address")
	ErrUnsupportedEncoder   = errors.New("encoder not available in ffmpeg")
	ErrClosed               = errors.New("job store closed")
)
