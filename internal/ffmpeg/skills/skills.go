// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strings"
)

var (
	reVersion       = regexp.MustCompile(`^(ffmpeg|ffprobe) version (\S+)`)
	reVersionNumber = regexp.MustCompile(`^n?([0-9]+\.[0-9]+(?:\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reCodec         = regexp.MustCompile(`^\s([D.])([E.])([VAS]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`)
	reFormat        = regexp.MustCompile(`^\s([D ])([E ])\s?\s([0-9A-Za-z_,]+)\s+(.*?)$`)
	reHWAccel       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Library is one linked libav* library
type Library struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// Version is what -version reports about a binary
type Version struct {
	Program       string    `json:"program"`
	Number        string    `json:"number"`
	Compiler      string    `json:"compiler,omitempty"`
	Configuration string    `json:"configuration,omitempty"`
	Libraries     []Library `json:"libraries,omitempty"`
}

// Codec with the encoders and decoders implementing it
type Codec struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders,omitempty"`
	Decoders []string `json:"decoders,omitempty"`
}

// Codecs grouped by media type
type Codecs struct {
	Audio    []Codec `json:"audio"`
	Video    []Codec `json:"video"`
	Subtitle []Codec `json:"subtitle"`
}

// Format is a muxer or demuxer
type Format struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Skills are the capabilities of the local ffmpeg build
type Skills struct {
	Version  Version  `json:"version"`
	Codecs   Codecs   `json:"codecs"`
	Muxers   []Format `json:"muxers"`
	HWAccels []string `json:"hwaccels"`
}

// New queries binary for its version, codecs, muxers and hwaccels. Only a
// missing version is an error; the listings are best effort.
func New(binary string) (Skills, error) {
	v, err := ReadVersion(binary)
	if err != nil {
		return Skills{}, err
	}

	return Skills{
		Version:  v,
		Codecs:   parseCodecs(query(binary, "-codecs")),
		Muxers:   parseFormats(query(binary, "-formats")),
		HWAccels: parseHWAccels(query(binary, "-hwaccels")),
	}, nil
}

// HasEncoder reports whether any audio or video codec lists the encoder.
// "copy" is always available.
func (s Skills) HasEncoder(name string) bool {
	if name == "copy" {
		return true
	}
	for _, group := range [][]Codec{s.Codecs.Video, s.Codecs.Audio} {
		for _, c := range group {
			if slices.Contains(c.Encoders, name) {
				return true
			}
		}
	}
	return false
}

// HasMuxer reports whether the build can write the format.
func (s Skills) HasMuxer(id string) bool {
	return slices.ContainsFunc(s.Muxers, func(f Format) bool { return f.Id == id })
}

// ReadVersion runs binary -version. Works for ffmpeg and ffprobe.
func ReadVersion(binary string) (Version, error) {
	cmd := exec.Command(binary, "-version")
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Version{}, fmt.Errorf("%s -version: %w", binary, err)
	}

	v := parseVersion(out)
	if len(v.Number) == 0 {
		return Version{}, fmt.Errorf("can't parse version of %s", binary)
	}
	return v, nil
}

func query(binary, flag string) []byte {
	cmd := exec.Command(binary, "-hide_banner", flag)
	cmd.Env = []string{}
	stdout, _ := cmd.Output()
	return stdout
}

func parseVersion(data []byte) Version {
	v := Version{}

	if m := reVersion.FindSubmatch(data); m != nil {
		v.Program = string(m[1])
		v.Number = string(m[2])
		if n := reVersionNumber.FindStringSubmatch(v.Number); n != nil {
			v.Number = n[1]
			if strings.Count(v.Number, ".") == 1 {
				v.Number += ".0"
			}
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		v.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		v.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		v.Libraries = append(v.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return v
}

func parseCodecs(data []byte) Codecs {
	codecs := Codecs{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reCodec.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		c := Codec{Id: m[4], Name: strings.TrimSpace(m[5])}
		if m[1] == "D" {
			c.Decoders = implementations(m[4], m[6])
		}
		if m[2] == "E" {
			c.Encoders = implementations(m[4], m[7])
		}

		switch m[3] {
		case "V":
			codecs.Video = append(codecs.Video, c)
		case "A":
			codecs.Audio = append(codecs.Audio, c)
		case "S":
			codecs.Subtitle = append(codecs.Subtitle, c)
		}
	}
	return codecs
}

// implementations returns the explicit list, or the codec id itself when
// ffmpeg implements the codec under its own name.
func implementations(id, list string) []string {
	if fields := strings.Fields(list); len(fields) > 0 {
		return fields
	}
	return []string{id}
}

func parseFormats(data []byte) []Format {
	var muxers []Format

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reFormat.FindStringSubmatch(scanner.Text())
		if m == nil || m[2] != "E" {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			muxers = append(muxers, Format{Id: id, Name: m[4]})
		}
	}
	return muxers
}

func parseHWAccels(data []byte) []string {
	var accels []string
	started := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Hardware acceleration methods:" {
			started = true
			continue
		}
		if started && reHWAccel.MatchString(line) {
			accels = append(accels, line)
		}
	}
	return accels
}
