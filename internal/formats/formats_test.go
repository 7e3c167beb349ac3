package formats

import (
	"errors"
	"testing"

	"github.com/tanq16/vidgrab/internal/extractor"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func sampleInfo() *extractor.Info {
	return &extractor.Info{
		ID:  "abc",
		Ext: "mp4",
		Formats: []extractor.Format{
			{FormatID: "sb0", Ext: "mhtml", VCodec: "none", ACodec: "none"},
			{FormatID: "18", Ext: "mp4", Height: intp(360), FPS: floatp(30), TBR: floatp(500), VCodec: "avc1", ACodec: "mp4a"},
			{FormatID: "18b", Ext: "mp4", Height: intp(360), FPS: floatp(30), TBR: floatp(300), VCodec: "avc1", ACodec: "mp4a"},
			{FormatID: "137", Ext: "mp4", Height: intp(1080), FPS: floatp(30), TBR: floatp(4000), VCodec: "avc1", ACodec: "none"},
			{FormatID: "248", Ext: "webm", Height: intp(1080), FPS: floatp(30), TBR: floatp(3000), VCodec: "vp9", ACodec: "none"},
			{FormatID: "140-en", Ext: "m4a", TBR: floatp(200), VCodec: "none", ACodec: "mp4a", Language: "en"},
			{FormatID: "251-es", Ext: "webm", TBR: floatp(160), VCodec: "none", ACodec: "opus", Language: "es"},
			{FormatID: "250-es", Ext: "webm", TBR: floatp(70), VCodec: "none", ACodec: "opus", Language: "es"},
		},
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		f    extractor.Format
		want string
	}{
		{extractor.Format{FormatID: "x", Height: intp(1080), FPS: floatp(60), Ext: "webm", TBR: floatp(2500)}, "1080p60 • webm • 2.5 Mbps"},
		{extractor.Format{FormatID: "x", Height: intp(720), Ext: "mp4", FormatNote: "DASH video"}, "720p • mp4"},
		{extractor.Format{FormatID: "x", Resolution: "audio only", FormatNote: "medium", Ext: "m4a"}, "audio only • medium • m4a"},
		{extractor.Format{FormatID: "x"}, "Video"},
	}
	for _, tt := range tests {
		if got := Describe(tt.f); got != tt.want {
			t.Errorf("Describe = %q, want %q", got, tt.want)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	options := BuildOptions(sampleInfo())
	ids := map[string]FormatOption{}
	for _, o := range options {
		if _, dup := ids[o.ID]; dup {
			t.Errorf("duplicate option %s", o.ID)
		}
		ids[o.ID] = o
	}
	if _, ok := ids["18b"]; ok {
		t.Error("lower bitrate duplicate of bucket should be dropped")
	}
	progressive, ok := ids["18"]
	if !ok || progressive.LanguageCode != Untagged || progressive.NeedsMerge {
		t.Errorf("progressive option wrong: %+v", progressive)
	}
	merged, ok := ids["137+140-en"]
	if !ok || merged.Container != "mp4" || merged.LanguageCode != "en" || !merged.NeedsMerge {
		t.Errorf("merge option wrong: %+v", merged)
	}
	webm, ok := ids["248+251-es"]
	if !ok || webm.Container != "webm" {
		t.Errorf("webm merge option wrong: %+v", webm)
	}
	if _, ok := ids["137+250-es"]; ok {
		t.Error("only the best audio per language should be paired")
	}
	if options[0].ID != "137+140-en" {
		t.Errorf("highest quality should come first, got %s", options[0].ID)
	}
}

func TestBuildOptionsFallback(t *testing.T) {
	options := BuildOptions(&extractor.Info{Ext: "webm"})
	if len(options) != 1 || options[0].ID != FallbackSelector || options[0].Container != "webm" || options[0].LanguageCode != Untagged {
		t.Errorf("unexpected fallback %+v", options)
	}
}

func TestBuildOptionsCapsPerLanguage(t *testing.T) {
	info := &extractor.Info{}
	for h := 1; h <= 20; h++ {
		info.Formats = append(info.Formats, extractor.Format{
			FormatID: "p" + string(rune('a'+h)), Ext: "mp4", Height: intp(h * 100), VCodec: "avc1", ACodec: "mp4a",
		})
	}
	options := BuildOptions(info)
	if len(options) != maxPerLanguage {
		t.Errorf("got %d options, want %d", len(options), maxPerLanguage)
	}
}

func TestResolveLanguages(t *testing.T) {
	fmts := []extractor.Format{
		{FormatID: "sb0", Ext: "mhtml", VCodec: "none", ACodec: "none"},
		{FormatID: "1", Language: "es"},
		{FormatID: "2", Language: "de"},
		{FormatID: "3", Language: "es"},
		{FormatID: "4", Language: "en-US"},
	}
	options := []FormatOption{
		{ID: "4", LanguageCode: "en-US"},
		{ID: "1", LanguageCode: "es"},
		{ID: "fallback", LanguageCode: Untagged},
	}
	tracks := ResolveLanguages(nil, fmts, options)
	want := []string{"es", "en-US", Untagged}
	if len(tracks) != len(want) {
		t.Fatalf("tracks = %+v", tracks)
	}
	for i, code := range want {
		if tracks[i].Code != code {
			t.Errorf("tracks[%d] = %s, want %s", i, tracks[i].Code, code)
		}
	}
	if tracks[0].Label != "Spanish" || tracks[2].Label != UntaggedLabel {
		t.Errorf("labels = %q, %q", tracks[0].Label, tracks[2].Label)
	}
}

func TestResolveLanguagesKeepsExtractorOrder(t *testing.T) {
	info := &extractor.Info{Formats: []extractor.Format{
		{FormatID: "a", Ext: "mp4", Height: intp(360), VCodec: "avc1", ACodec: "mp4a", Language: "en"},
		{FormatID: "b", Ext: "mp4", Height: intp(720), VCodec: "avc1", ACodec: "mp4a", Language: "es"},
	}}
	options := BuildOptions(info)
	if len(options) != 2 || options[0].LanguageCode != "es" {
		t.Fatalf("options = %+v", options)
	}
	tracks := ResolveLanguages(nil, info.Formats, options)
	if len(tracks) != 2 || tracks[0].Code != "en" || tracks[1].Code != "es" {
		t.Errorf("tracks = %+v, want [en es]", tracks)
	}
}

func TestResolveLanguagesPassesExplicitThrough(t *testing.T) {
	explicit := []LanguageTrack{{Code: "fr", Label: "Français"}, {Code: "", Label: "Original"}, {Code: "fr", Label: "again"}}
	fmts := []extractor.Format{{FormatID: "1", Language: "en"}, {FormatID: "2", Language: "es"}}
	options := []FormatOption{{ID: "1", LanguageCode: "en"}, {ID: "2", LanguageCode: "es"}}
	tracks := ResolveLanguages(explicit, fmts, options)
	want := []LanguageTrack{{Code: "fr", Label: "Français"}, {Code: "", Label: "Original"}}
	if len(tracks) != len(want) {
		t.Fatalf("tracks = %+v, want %+v", tracks, want)
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("tracks[%d] = %+v, want %+v", i, tracks[i], want[i])
		}
	}
	tracks[0].Label = "changed"
	if explicit[0].Label != "Français" {
		t.Error("explicit tracks were not copied")
	}
}

func TestDefaultLanguage(t *testing.T) {
	tests := []struct {
		tracks []LanguageTrack
		want   string
	}{
		{[]LanguageTrack{{Code: "es"}, {Code: "en-GB"}, {Code: "en"}}, "en-GB"},
		{[]LanguageTrack{{Code: "de"}, {Code: "fr"}}, "de"},
		{[]LanguageTrack{{Code: "EN"}}, "EN"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := DefaultLanguage(tt.tracks); got != tt.want {
			t.Errorf("DefaultLanguage(%v) = %q, want %q", tt.tracks, got, tt.want)
		}
	}
}

func TestFormatsFor(t *testing.T) {
	options := []FormatOption{
		{ID: "a", LanguageCode: "en"},
		{ID: "b", LanguageCode: Untagged},
		{ID: "c", LanguageCode: ""},
		{ID: "d", LanguageCode: "es"},
	}
	if _, err := FormatsFor(nil, "en"); !errors.Is(err, ErrNoFormats) {
		t.Errorf("empty input err = %v", err)
	}
	all, err := FormatsFor(options, "")
	if err != nil || len(all) != 4 {
		t.Errorf("empty code should return all: %v %v", all, err)
	}
	und, err := FormatsFor(options, Untagged)
	if err != nil || len(und) != 2 || und[0].ID != "b" || und[1].ID != "c" {
		t.Errorf("untagged filter = %v %v", und, err)
	}
	en, _ := FormatsFor(options, "en")
	if len(en) != 1 || en[0].ID != "a" {
		t.Errorf("en filter = %v", en)
	}
	none, err := FormatsFor(options, "ja")
	if !errors.Is(err, ErrNoFormatsForLanguage) || len(none) != 0 {
		t.Errorf("missing language = %v %v", none, err)
	}
	if DefaultFormat(en) != "a" || DefaultFormat(none) != "" {
		t.Error("DefaultFormat mismatch")
	}
}

func TestMergeContainerAndAudioSelector(t *testing.T) {
	if MergeContainer("webm", "webm") != "webm" || MergeContainer("mp4", "webm") != "mp4" || MergeContainer("webm", "m4a") != "mp4" {
		t.Error("MergeContainer mismatch")
	}
	if AudioSelector(Untagged) != "bestaudio" || AudioSelector("es") != "bestaudio[language=es]/bestaudio" {
		t.Error("AudioSelector mismatch")
	}
}
