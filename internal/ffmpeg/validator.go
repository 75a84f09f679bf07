// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether a path or URL may be handed to ffmpeg
type Validator interface {
	IsValid(text string) bool
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles the allow and block expressions. Blank expressions
// are skipped. Without allow expressions everything not blocked is valid.
func NewValidator(allow, block []string) (Validator, error) {
	var err error
	v := &validator{}

	if v.allow, err = compileAll("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compileAll("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compileAll(kind string, expressions []string) ([]*regexp.Regexp, error) {
	var list []*regexp.Regexp
	for _, exp := range expressions {
		exp = strings.TrimSpace(exp)
		if len(exp) == 0 {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		list = append(list, re)
	}
	return list, nil
}

func (v *validator) IsValid(text string) bool {
	if matchAny(v.block, text) {
		return false
	}
	return len(v.allow) == 0 || matchAny(v.allow, text)
}

func matchAny(list []*regexp.Regexp, text string) bool {
	for _, re := range list {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
