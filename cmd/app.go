package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/auth"
	"github.com/tanq16/vidgrab/internal/config"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/jobs"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/probe"
	"github.com/tanq16/vidgrab/internal/utils"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	ytdlp     *extractor.Ytdlp
	ffmpeg    *extractor.FFmpeg
	validator *auth.Validator
	prober    *probe.Service
	jobs      *jobs.Manager
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
		os.Exit(1)
	}
	return cfg
}

func credentialSource(cfg *config.Config) (auth.CredentialSource, error) {
	switch {
	case cfg.CookiesFile != "":
		return auth.CookieFileSource{Path: utils.ExpandHome(cfg.CookiesFile)}, nil
	case cfg.CookiesFromBrowser != "":
		spec, err := auth.ParseBrowserSpec(cfg.CookiesFromBrowser)
		if err != nil {
			return nil, err
		}
		return auth.BrowserSource{Spec: spec}, nil
	}
	return nil, nil
}

func locateYtdlp(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.AutoInstallYtdlp {
		return utils.EnsureYtdlp(ctx, cfg.YtdlpPath, cfg.Proxy)
	}
	return utils.LocateTool(cfg.YtdlpPath, "yt-dlp")
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ytdlpPath, err := locateYtdlp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ffmpegPath, err := utils.EnsureFFmpeg(cfg.FFmpegPath)
	if err != nil {
		log.Warn().Str("op", "cmd/app").Msgf("%v; merged downloads will fail", err)
		ffmpegPath = "ffmpeg"
	}
	ytdlp := extractor.NewYtdlp(ytdlpPath, extractor.YtdlpOptions{
		Proxy:         cfg.Proxy,
		PlayerClients: cfg.PlayerClients,
		FFmpegPath:    ffmpegPath,
	})
	ffmpeg := extractor.NewFFmpeg(ffmpegPath)

	source, err := credentialSource(cfg)
	if err != nil {
		return nil, err
	}
	client := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout:   cfg.AuthTimeout.Std(),
		ProxyURL:  cfg.Proxy,
		UserAgent: utils.ToolUserAgent,
	})
	validator := auth.NewValidator(ytdlp, source, client, auth.Options{
		Timeout:  cfg.AuthTimeout.Std(),
		CacheTTL: cfg.AuthCacheTTL.Std(),
	})
	if err := validator.Activate(ctx); err != nil {
		log.Warn().Str("op", "cmd/app").Msgf("credential source %s not usable yet: %v", validator.SourceName(), err)
	} else if source != nil {
		log.Info().Str("op", "cmd/app").Msgf("using credentials from %s", validator.SourceName())
	}

	log.Debug().Str("op", "cmd/app").Msgf("yt-dlp at %s, ffmpeg at %s", ytdlpPath, ffmpegPath)
	return &app{
		cfg:       cfg,
		ytdlp:     ytdlp,
		ffmpeg:    ffmpeg,
		validator: validator,
		prober:    probe.New(ytdlp, validator, cfg.ProbeTimeout.Std()),
		jobs:      jobs.NewManager(ytdlp, ffmpeg, validator, jobs.Options{Retention: cfg.JobRetention.Std()}),
	}, nil
}

func (a *app) Close() {
	a.jobs.Close()
}
