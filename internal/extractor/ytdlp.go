package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

// ProgressPrefix marks the machine-readable progress lines requested from yt-dlp.
const ProgressPrefix = "[vidgrab]"

const progressTemplate = "download:" + ProgressPrefix +
	" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s %(progress.eta)s"

const fileReportTemplate = "after_move:%(.{filepath,title,ext,vcodec,acodec,format_id})j"

type YtdlpOptions struct {
	Proxy         string
	PlayerClients []string
	FFmpegPath    string
}

type Ytdlp struct {
	path    string
	options YtdlpOptions
}

func NewYtdlp(path string, options YtdlpOptions) *Ytdlp {
	return &Ytdlp{path: path, options: options}
}

func (y *Ytdlp) Path() string { return y.path }

func (y *Ytdlp) baseArgs(authArgs []string) []string {
	args := []string{"--no-warnings", "--ignore-config", "--no-playlist", "--no-check-certificates"}
	if len(y.options.PlayerClients) > 0 {
		args = append(args, "--extractor-args", "youtube:player_client="+strings.Join(y.options.PlayerClients, ","))
	}
	if y.options.Proxy != "" {
		args = append(args, "--proxy", y.options.Proxy)
	}
	if y.options.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.options.FFmpegPath)
	}
	return append(args, authArgs...)
}

func (y *Ytdlp) Probe(ctx context.Context, req ProbeRequest) (*Info, error) {
	args := append(y.baseArgs(req.AuthArgs), "-J", "--skip-download", req.URL)
	stdout, stderr, err := runCaptured(ctx, y.path, args)
	if err != nil {
		log.Debug().Str("op", "extractor/probe").Err(err).Msgf("yt-dlp probe failed for %s", req.URL)
		return nil, probeFailure(ctx, err, stderr)
	}
	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, utils.WrapError(utils.KindExtractionFailed, err, "could not decode extractor output")
	}
	return &info, nil
}

func probeFailure(ctx context.Context, err error, stderr string) error {
	if ctx.Err() == nil {
		if detail, ok := AuthDetail(stderr); ok {
			return utils.WrapError(utils.KindAuthRequired, &ToolError{Tool: "yt-dlp", Output: stderr, Err: err}, detail)
		}
		return utils.WrapError(utils.KindExtractionFailed, &ToolError{Tool: "yt-dlp", Output: stderr, Err: err}, Summarize(stderr))
	}
	return failure(ctx, utils.KindExtractionFailed, "yt-dlp", err, stderr)
}

func (y *Ytdlp) fetchArgs(req FetchRequest) []string {
	args := y.baseArgs(req.AuthArgs)
	return append(args,
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", fileReportTemplate,
		"--no-mtime",
		"-f", req.Selector,
		"-o", req.OutputTemplate,
		req.URL,
	)
}

func (y *Ytdlp) Fetch(ctx context.Context, req FetchRequest, onLine func(string)) ([]FetchedFile, error) {
	var files []FetchedFile
	onStdout := func(line string) {
		if strings.HasPrefix(line, "{") {
			var f FetchedFile
			if err := json.Unmarshal([]byte(line), &f); err == nil && f.Path != "" {
				files = append(files, f)
				return
			}
		}
		if onLine != nil {
			onLine(line)
		}
	}
	diag, err := runStreaming(ctx, y.path, y.fetchArgs(req), onStdout, onLine)
	if err != nil {
		log.Error().Str("op", "extractor/fetch").Err(err).Msgf("yt-dlp fetch failed for %s", req.URL)
		if ctx.Err() == nil {
			if _, ok := AuthDetail(diag); ok {
				return nil, utils.WrapError(utils.KindAuthRequired, &ToolError{Tool: "yt-dlp", Output: diag, Err: err}, diag)
			}
		}
		return nil, failure(ctx, utils.KindExtractionFailed, "yt-dlp", err, diag)
	}
	if len(files) == 0 {
		return nil, utils.NewError(utils.KindExtractionFailed, "yt-dlp finished without reporting an output file")
	}
	log.Debug().Str("op", "extractor/fetch").Msgf("yt-dlp produced %d file(s) for selector %s", len(files), req.Selector)
	return files, nil
}

func (y *Ytdlp) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := runCaptured(ctx, y.path, []string{"--version"})
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version failed: %v %s", err, stderr)
	}
	return strings.TrimSpace(string(stdout)), nil
}
