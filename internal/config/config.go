// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path         string          `yaml:"path"`
	ProbePath    string          `yaml:"probe_path"`
	CancelGrace  time.Duration   `yaml:"cancel_grace"`
	StaleTimeout time.Duration   `yaml:"stale_timeout"`
	LogLines     int             `yaml:"log_lines"`
	Input        AddressPatterns `yaml:"input"`
	Output       AddressPatterns `yaml:"output"`
}

// AddressPatterns 输入/输出路径的正则白名单与黑名单
type AddressPatterns struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultBind        = ":8080"
	defaultFFmpeg      = "ffmpeg"
	defaultCancelGrace = 2 * time.Second
	defaultLogLines    = 200
	defaultLogLevel    = "info"
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: defaultBind},
		FFmpeg: FFmpegConfig{
			Path:        defaultFFmpeg,
			CancelGrace: defaultCancelGrace,
			LogLines:    defaultLogLines,
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = defaultFFmpeg
	}
	if c.FFmpeg.CancelGrace == 0 {
		c.FFmpeg.CancelGrace = defaultCancelGrace
	}
	if c.FFmpeg.LogLines <= 0 {
		c.FFmpeg.LogLines = defaultLogLines
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.FFmpeg.CancelGrace < 0 {
		return fmt.Errorf("ffmpeg.cancel_grace must not be negative")
	}
	if c.FFmpeg.StaleTimeout < 0 {
		return fmt.Errorf("ffmpeg.stale_timeout must not be negative")
	}
	return nil
}
