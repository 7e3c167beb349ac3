package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/formats"
	"github.com/tanq16/vidgrab/internal/utils"
)

type VideoMetadata struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Uploader        string                  `json:"uploader,omitempty"`
	DurationSeconds *float64                `json:"duration"`
	ThumbnailURL    string                  `json:"thumbnail,omitempty"`
	Languages       []formats.LanguageTrack `json:"languages"`
	Formats         []formats.FormatOption  `json:"formats"`
	DefaultLanguage string                  `json:"defaultLanguage,omitempty"`
	DefaultFormat   string                  `json:"defaultFormat,omitempty"`
}

// CredentialContext supplies the extractor arguments of the current authorized session.
type CredentialContext interface {
	AuthArgs() []string
}

type Service struct {
	extractor extractor.Extractor
	creds     CredentialContext
	timeout   time.Duration
}

func New(ext extractor.Extractor, creds CredentialContext, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = utils.DefaultProbeTimeout
	}
	return &Service{extractor: ext, creds: creds, timeout: timeout}
}

// NormalizeURL rewrites the known short and embed forms of a video page into its
// canonical watch URL. Other URLs are returned unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be" || strings.HasSuffix(host, ".youtu.be"):
		if id, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	case strings.HasSuffix(host, "youtube.com") || strings.HasSuffix(host, "youtube-nocookie.com"):
		if id := u.Query().Get("v"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id, _, _ := strings.Cut(rest, "/"); id != "" {
					return "https://www.youtube.com/watch?v=" + id
				}
			}
		}
	}
	return raw
}

// PickThumbnail prefers the extractor's chosen thumbnail, then the tallest listed one.
func PickThumbnail(info *extractor.Info) string {
	if info.Thumbnail != "" {
		return info.Thumbnail
	}
	thumbs := append([]extractor.Thumbnail(nil), info.Thumbnails...)
	sort.SliceStable(thumbs, func(i, j int) bool {
		return height(thumbs[i]) > height(thumbs[j])
	})
	for _, t := range thumbs {
		if t.URL != "" {
			return t.URL
		}
	}
	if info.ID != "" {
		return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", info.ID)
	}
	return ""
}

func height(t extractor.Thumbnail) int {
	if t.Height == nil {
		return 0
	}
	return *t.Height
}

func (s *Service) authArgs() []string {
	if s.creds == nil {
		return nil
	}
	return s.creds.AuthArgs()
}

// Probe fetches metadata for a URL without downloading media.
func (s *Service) Probe(ctx context.Context, rawURL string) (*VideoMetadata, error) {
	if !utils.IsHTTPURL(rawURL) {
		return nil, utils.NewError(utils.KindInvalidURL, "url must be an absolute http or https address")
	}
	target := NormalizeURL(rawURL)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	info, err := s.extractor.Probe(ctx, extractor.ProbeRequest{URL: target, AuthArgs: s.authArgs()})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, utils.WrapError(utils.KindExtractionFailed, err, fmt.Sprintf("metadata probe timed out after %s", s.timeout))
		}
		if utils.KindOf(err) == "" {
			return nil, utils.WrapError(utils.KindExtractionFailed, err, extractor.Summarize(err.Error()))
		}
		return nil, err
	}
	log.Debug().Str("op", "probe/probe").Msgf("probed %s in %s (%d raw formats)", target, time.Since(start).Round(time.Millisecond), len(info.Formats))
	return Build(info), nil
}

// Build turns the extractor's description of a video into the metadata we serve.
func Build(info *extractor.Info) *VideoMetadata {
	options := formats.BuildOptions(info)
	languages := formats.ResolveLanguages(nil, info.Formats, options)
	defaultLanguage := formats.DefaultLanguage(languages)
	filtered, _ := formats.FormatsFor(options, defaultLanguage)
	title := info.Title
	if title == "" {
		title = info.ID
	}
	return &VideoMetadata{
		Title:           title,
		Description:     info.Description,
		Uploader:        info.Uploader,
		DurationSeconds: info.Duration,
		ThumbnailURL:    PickThumbnail(info),
		Languages:       languages,
		Formats:         options,
		DefaultLanguage: defaultLanguage,
		DefaultFormat:   formats.DefaultFormat(filtered),
	}
}
