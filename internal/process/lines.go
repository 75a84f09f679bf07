// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package process

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// maxLineSize bounds a single output line. Longer lines fail the drain.
const maxLineSize = 1 << 20

// drain reads r line by line until EOF and hands every non-empty line to fn.
// On a read error it keeps discarding the rest of the stream so the child never
// blocks on a full pipe, and returns the first error.
func drain(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLine)

	for scanner.Scan() {
		fn(scanner.Text())
	}

	err := scanner.Err()
	if err != nil {
		io.Copy(io.Discard, r)
	}
	return err
}

// scanLine splits on both \n and \r. ffmpeg redraws its stats line with a
// bare carriage return. Runs of separators produce no empty tokens.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
