package extractor

import "context"

// Info is the subset of the extractor's JSON dump we consume.
type Info struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Uploader    string      `json:"uploader"`
	Duration    *float64    `json:"duration"`
	Thumbnail   string      `json:"thumbnail"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
	Ext         string      `json:"ext"`
	FormatID    string      `json:"format_id"`
	Formats     []Format    `json:"formats"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
}

type Format struct {
	FormatID     string   `json:"format_id"`
	Ext          string   `json:"ext"`
	Height       *int     `json:"height"`
	FPS          *float64 `json:"fps"`
	TBR          *float64 `json:"tbr"`
	VCodec       string   `json:"vcodec"`
	ACodec       string   `json:"acodec"`
	Language     string   `json:"language"`
	FormatNote   string   `json:"format_note"`
	Resolution   string   `json:"resolution"`
	DynamicRange string   `json:"dynamic_range"`
}

func hasCodec(codec string) bool {
	return codec != "" && codec != "none"
}

func (f Format) HasVideo() bool { return hasCodec(f.VCodec) }
func (f Format) HasAudio() bool { return hasCodec(f.ACodec) }

type ProbeRequest struct {
	URL      string
	AuthArgs []string
}

type FetchRequest struct {
	URL            string
	Selector       string
	OutputTemplate string
	AuthArgs       []string
}

// FetchedFile describes one file the extractor wrote, as reported after it was moved into place.
type FetchedFile struct {
	Path     string `json:"filepath"`
	Title    string `json:"title"`
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	FormatID string `json:"format_id"`
}

func (f FetchedFile) HasVideo() bool { return hasCodec(f.VCodec) }
func (f FetchedFile) HasAudio() bool { return hasCodec(f.ACodec) }

type MergeRequest struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
}

type Extractor interface {
	Probe(ctx context.Context, req ProbeRequest) (*Info, error)
	Fetch(ctx context.Context, req FetchRequest, onLine func(string)) ([]FetchedFile, error)
	Version(ctx context.Context) (string, error)
}

type Merger interface {
	Combine(ctx context.Context, req MergeRequest) error
	Version(ctx context.Context) (string, error)
}
