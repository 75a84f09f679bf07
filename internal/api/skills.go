// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package api

import (
	"slices"

	"github.com/ZSC714725/ffconvert/internal/ffmpeg/skills"
)

// SkillsResponse for API. Encoders flattens the codec lists so a client can
// fill its codec pickers without walking every codec.
type SkillsResponse struct {
	FFmpeg   skills.Version `json:"ffmpeg"`
	Encoders struct {
		Video []string `json:"video"`
		Audio []string `json:"audio"`
	} `json:"encoders"`
	Codecs   skills.Codecs   `json:"codecs"`
	Muxers   []skills.Format `json:"muxers"`
	HWAccels []string        `json:"hwaccels"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{
		FFmpeg:   s.Version,
		Codecs:   s.Codecs,
		Muxers:   s.Muxers,
		HWAccels: s.HWAccels,
	}

	resp.Encoders.Video = encoderNames(s.Codecs.Video)
	resp.Encoders.Audio = encoderNames(s.Codecs.Audio)

	if resp.Muxers == nil {
		resp.Muxers = []skills.Format{}
	}
	if resp.HWAccels == nil {
		resp.HWAccels = []string{}
	}

	return resp
}

func encoderNames(codecs []skills.Codec) []string {
	names := []string{"copy"}
	for _, c := range codecs {
		for _, e := range c.Encoders {
			if !slices.Contains(names, e) {
				names = append(names, e)
			}
		}
	}
	slices.Sort(names[1:])
	return names
}
