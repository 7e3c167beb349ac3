package formats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tanq16/vidgrab/internal/extractor"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	// Untagged is the language code given to formats that carry no language.
	Untagged         = "und"
	UntaggedLabel    = "Default"
	FallbackSelector = "bestvideo+bestaudio/best"
	maxPerLanguage   = 12
)

var (
	ErrNoFormats            = errors.New("no formats available")
	ErrNoFormatsForLanguage = errors.New("no formats available for the selected language")
)

type LanguageTrack struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type FormatOption struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Container    string `json:"ext"`
	LanguageCode string `json:"language"`
	NeedsMerge   bool   `json:"merge,omitempty"`
}

type candidate struct {
	option FormatOption
	height int
	fps    float64
	tbr    float64
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return Untagged
	}
	return code
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Describe builds a display label such as "1080p60 • webm • 2.5 Mbps".
func Describe(f extractor.Format) string {
	var resLabel string
	if h := deref(f.Height); h > 0 {
		resLabel = fmt.Sprintf("%dp", h)
		if fps := deref(f.FPS); fps > 0 {
			resLabel += fmt.Sprintf("%d", int(fps))
		}
	} else if f.Resolution != "" {
		resLabel = f.Resolution
	} else {
		resLabel = "Video"
	}
	parts := []string{strings.TrimSpace(resLabel)}
	switch strings.ToLower(f.FormatNote) {
	case "", "dash video", "dash audio", "default":
	default:
		parts = append(parts, f.FormatNote)
	}
	if f.Ext != "" {
		parts = append(parts, f.Ext)
	}
	if tbr := deref(f.TBR); tbr > 0 {
		parts = append(parts, fmt.Sprintf("%.1f Mbps", math.Round(tbr/100)/10))
	}
	label := strings.Join(parts, " • ")
	if label == "" {
		return f.FormatID
	}
	return label
}

// MergeContainer picks the output container for a video and an audio stream.
// Only an all-webm pair stays webm; everything else goes to mp4.
func MergeContainer(videoExt, audioExt string) string {
	if strings.EqualFold(videoExt, "webm") && strings.EqualFold(audioExt, "webm") {
		return "webm"
	}
	return "mp4"
}

type bucketKey struct {
	height int
	fps    int
	dr     string
	ext    string
	lang   string
}

func bestPerBucket(fmts []extractor.Format, withLang bool) []extractor.Format {
	index := make(map[bucketKey]int)
	var out []extractor.Format
	for _, f := range fmts {
		key := bucketKey{height: deref(f.Height), fps: int(deref(f.FPS)), dr: f.DynamicRange, ext: f.Ext}
		if withLang {
			key.lang = normalizeCode(f.Language)
		}
		if i, ok := index[key]; ok {
			if deref(f.TBR) > deref(out[i].TBR) {
				out[i] = f
			}
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}
	return out
}

// BuildOptions curates the extractor's raw formats into the selectable options:
// progressive formats plus video-only streams paired with the best audio per language.
func BuildOptions(info *extractor.Info) []FormatOption {
	var progressive, videoOnly []extractor.Format
	bestAudio := make(map[string]extractor.Format)
	var audioLangs []string
	for _, f := range info.Formats {
		if f.FormatID == "" {
			continue
		}
		switch {
		case f.HasVideo() && f.HasAudio():
			progressive = append(progressive, f)
		case f.HasVideo():
			videoOnly = append(videoOnly, f)
		case f.HasAudio():
			lang := normalizeCode(f.Language)
			current, seen := bestAudio[lang]
			if !seen {
				audioLangs = append(audioLangs, lang)
			}
			if !seen || deref(f.TBR) > deref(current.TBR) {
				bestAudio[lang] = f
			}
		}
	}

	var candidates []candidate
	for _, f := range bestPerBucket(progressive, true) {
		candidates = append(candidates, candidate{
			option: FormatOption{
				ID:           f.FormatID,
				Label:        Describe(f),
				Container:    firstNonEmpty(f.Ext, info.Ext, "mp4"),
				LanguageCode: normalizeCode(f.Language),
			},
			height: deref(f.Height),
			fps:    deref(f.FPS),
			tbr:    deref(f.TBR),
		})
	}
	videos := bestPerBucket(videoOnly, false)
	for _, lang := range audioLangs {
		audio := bestAudio[lang]
		for _, v := range videos {
			candidates = append(candidates, candidate{
				option: FormatOption{
					ID:           v.FormatID + "+" + audio.FormatID,
					Label:        Describe(v) + " + audio",
					Container:    MergeContainer(v.Ext, audio.Ext),
					LanguageCode: lang,
					NeedsMerge:   true,
				},
				height: deref(v.Height),
				fps:    deref(v.FPS),
				tbr:    deref(v.TBR) + deref(audio.TBR),
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.height != b.height {
			return a.height > b.height
		}
		if a.fps != b.fps {
			return a.fps > b.fps
		}
		return a.tbr > b.tbr
	})

	perLang := make(map[string]int)
	var options []FormatOption
	for _, c := range candidates {
		if perLang[c.option.LanguageCode] >= maxPerLanguage {
			continue
		}
		perLang[c.option.LanguageCode]++
		options = append(options, c.option)
	}
	if len(options) == 0 {
		options = append(options, FormatOption{
			ID:           firstNonEmpty(info.FormatID, FallbackSelector),
			Label:        "Best available",
			Container:    firstNonEmpty(info.Ext, "mp4"),
			LanguageCode: Untagged,
		})
	}
	return options
}

// LanguageLabel returns the English display name for a language code.
func LanguageLabel(code string) string {
	if code == Untagged || code == "" {
		return UntaggedLabel
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// ResolveLanguages passes explicit tracks through, dropping repeated codes. Without
// explicit tracks it lists the languages that have options, ordered by where each
// first appears in fmts (the extractor's order), untagged formats counting as Untagged.
func ResolveLanguages(explicit []LanguageTrack, fmts []extractor.Format, options []FormatOption) []LanguageTrack {
	seen := make(map[string]bool)
	var tracks []LanguageTrack
	if len(explicit) > 0 {
		for _, t := range explicit {
			if seen[t.Code] {
				continue
			}
			seen[t.Code] = true
			tracks = append(tracks, t)
		}
		return tracks
	}
	offered := make(map[string]bool)
	for _, o := range options {
		offered[normalizeCode(o.LanguageCode)] = true
	}
	add := func(code string) {
		if seen[code] || !offered[code] {
			return
		}
		seen[code] = true
		tracks = append(tracks, LanguageTrack{Code: code, Label: LanguageLabel(code)})
	}
	for _, f := range fmts {
		add(normalizeCode(f.Language))
	}
	// the fallback option carries a language no raw format has
	for _, o := range options {
		add(normalizeCode(o.LanguageCode))
	}
	return tracks
}

// DefaultLanguage prefers the first English track, then the first track.
func DefaultLanguage(tracks []LanguageTrack) string {
	for _, t := range tracks {
		if strings.HasPrefix(strings.ToLower(t.Code), "en") {
			return t.Code
		}
	}
	if len(tracks) > 0 {
		return tracks[0].Code
	}
	return ""
}

// FormatsFor filters options to one language. An empty code returns everything.
func FormatsFor(options []FormatOption, code string) ([]FormatOption, error) {
	if len(options) == 0 {
		return nil, ErrNoFormats
	}
	if code == "" {
		return append([]FormatOption(nil), options...), nil
	}
	var filtered []FormatOption
	for _, o := range options {
		if normalizeCode(o.LanguageCode) == code {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return []FormatOption{}, ErrNoFormatsForLanguage
	}
	return filtered, nil
}

func DefaultFormat(filtered []FormatOption) string {
	if len(filtered) == 0 {
		return ""
	}
	return filtered[0].ID
}

// AudioSelector is the extractor selector for the best audio in a language.
func AudioSelector(code string) string {
	if code == "" || code == Untagged {
		return "bestaudio"
	}
	return fmt.Sprintf("bestaudio[language=%s]/bestaudio", code)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
