package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	return &FFmpeg{path: path}
}

func (f *FFmpeg) Path() string { return f.path }

func mergeArgs(req MergeRequest) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
	}
	switch strings.ToLower(filepath.Ext(req.OutputPath)) {
	case ".mp4", ".m4a", ".mov":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, req.OutputPath)
}

// Combine stream-copies the first video track and first audio track into one container.
func (f *FFmpeg) Combine(ctx context.Context, req MergeRequest) error {
	_, stderr, err := runCaptured(ctx, f.path, mergeArgs(req))
	if err != nil {
		log.Error().Str("op", "extractor/merge").Err(err).Msgf("ffmpeg merge failed for %s", req.OutputPath)
		return failure(ctx, utils.KindMergeFailed, "ffmpeg", err, stderr)
	}
	return nil
}

func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := runCaptured(ctx, f.path, []string{"-version"})
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version failed: %v %s", err, stderr)
	}
	first, _, _ := strings.Cut(string(stdout), "\n")
	return strings.TrimSpace(first), nil
}
