// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFConvert - FFmpeg 转换与媒体分析工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/ffconvert/internal/api"
	"github.com/ZSC714725/ffconvert/internal/config"
	"github.com/ZSC714725/ffconvert/internal/ffmpeg"
	"github.com/ZSC714725/ffconvert/internal/job"
	"github.com/ZSC714725/ffconvert/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	ffprobeBin := flag.String("ffprobe", "", "FFprobe binary path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *ffprobeBin != "" {
		cfg.FFmpeg.ProbePath = *ffprobeBin
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := logger.NewWithConfig(logger.Config{Service: "ffconvert", Level: cfg.Log.Level})

	validatorIn, err := ffmpeg.NewValidator(cfg.FFmpeg.Input.Allow, cfg.FFmpeg.Input.Block)
	if err != nil {
		log.Fatalf("Input patterns: %v", err)
	}
	validatorOut, err := ffmpeg.NewValidator(cfg.FFmpeg.Output.Allow, cfg.FFmpeg.Output.Block)
	if err != nil {
		log.Fatalf("Output patterns: %v", err)
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		ProbeBinary:     cfg.FFmpeg.ProbePath,
		GraceTimeout:    cfg.FFmpeg.CancelGrace,
		StaleTimeout:    cfg.FFmpeg.StaleTimeout,
		ValidatorInput:  validatorIn,
		ValidatorOutput: validatorOut,
	})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}

	tc := ff.Toolchain()
	if !tc.Configured() {
		logger.Warn("ffprobe not found, probing is unavailable")
	}
	logger.Info("ffmpeg %s at %s", ff.Skills().Version.Number, tc.FFmpeg)

	store := job.NewStore(ff, logger, job.Config{LogLines: cfg.FFmpeg.LogLines})
	handler := api.NewHandler(store, ff)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())
	handler.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: r,
	}

	go func() {
		logger.Info("FFConvert listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown: %s", err)
	}
	// running conversions are asked to quit so their output is finalized
	store.Close()
}
