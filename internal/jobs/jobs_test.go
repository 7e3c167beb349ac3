package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/utils"
)

type fetchFunc func(ctx context.Context, req extractor.FetchRequest, onLine func(string)) ([]extractor.FetchedFile, error)

type fakeExtractor struct {
	mu        sync.Mutex
	selectors []string
	fetch     fetchFunc
}

func (f *fakeExtractor) Probe(context.Context, extractor.ProbeRequest) (*extractor.Info, error) {
	return nil, errors.New("not used")
}

func (f *fakeExtractor) Fetch(ctx context.Context, req extractor.FetchRequest, onLine func(string)) ([]extractor.FetchedFile, error) {
	f.mu.Lock()
	f.selectors = append(f.selectors, req.Selector)
	f.mu.Unlock()
	return f.fetch(ctx, req, onLine)
}

func (f *fakeExtractor) Version(context.Context) (string, error) { return "test", nil }

type fakeMerger struct {
	err   error
	calls int
}

func (f *fakeMerger) Combine(_ context.Context, req extractor.MergeRequest) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.OutputPath, []byte("merged"), 0644)
}

func (f *fakeMerger) Version(context.Context) (string, error) { return "test", nil }

// writeFetched simulates the extractor writing one stream into the working directory.
func writeFetched(req extractor.FetchRequest, title, ext, vcodec, acodec string) ([]extractor.FetchedFile, error) {
	path := filepath.Join(filepath.Dir(req.OutputTemplate), fmt.Sprintf("%s.f%s.%s", utils.SanitizeFilename(title), req.Selector, ext))
	if err := os.WriteFile(path, []byte(req.Selector), 0644); err != nil {
		return nil, err
	}
	return []extractor.FetchedFile{{Path: path, Title: title, Ext: ext, VCodec: vcodec, ACodec: acodec, FormatID: req.Selector}}, nil
}

func progressive(title string) fetchFunc {
	return func(_ context.Context, req extractor.FetchRequest, onLine func(string)) ([]extractor.FetchedFile, error) {
		onLine("[download]  50.0% of 1.00MiB at 1.00MiB/s ETA 00:01")
		onLine("[download] 100% of 1.00MiB in 00:00:01 at 1.00MiB/s")
		return writeFetched(req, title, "mp4", "avc1", "mp4a")
	}
}

func splitStreams(title string) fetchFunc {
	return func(_ context.Context, req extractor.FetchRequest, _ func(string)) ([]extractor.FetchedFile, error) {
		if req.Selector == "140" || strings.HasPrefix(req.Selector, "bestaudio") {
			return writeFetched(req, title, "m4a", "none", "mp4a")
		}
		return writeFetched(req, title, "mp4", "avc1", "none")
	}
}

func newRequest(t *testing.T, format string) Request {
	return Request{URL: "https://www.youtube.com/watch?v=abc", LanguageCode: "en", FormatID: format, DestinationDir: t.TempDir()}
}

func waitDone(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return job
}

func assertNoTemp(t *testing.T, dest string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(dest, utils.TempDirName)); !os.IsNotExist(err) {
		t.Errorf("working directory left behind (stat err = %v)", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	m := NewManager(&fakeExtractor{fetch: progressive("x")}, &fakeMerger{}, nil, Options{})
	defer m.Close()
	dir := t.TempDir()
	tests := []struct {
		name string
		req  Request
	}{
		{"empty destination", Request{URL: "https://x.test/v", LanguageCode: "en", FormatID: "18"}},
		{"missing destination", Request{URL: "https://x.test/v", LanguageCode: "en", FormatID: "18", DestinationDir: filepath.Join(dir, "nope")}},
		{"empty url", Request{LanguageCode: "en", FormatID: "18", DestinationDir: dir}},
		{"bad url", Request{URL: "file:///etc/passwd", LanguageCode: "en", FormatID: "18", DestinationDir: dir}},
		{"empty language", Request{URL: "https://x.test/v", FormatID: "18", DestinationDir: dir}},
		{"empty format", Request{URL: "https://x.test/v", LanguageCode: "en", DestinationDir: dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Submit(tt.req)
			if utils.KindOf(err) != utils.KindInvalidRequest {
				t.Errorf("kind = %q (%v)", utils.KindOf(err), err)
			}
		})
	}
	if n := len(m.List()); n != 0 {
		t.Errorf("rejected submits created %d job(s)", n)
	}
}

func TestProgressiveDownload(t *testing.T) {
	merger := &fakeMerger{}
	m := NewManager(&fakeExtractor{fetch: progressive("My: Clip/1")}, merger, nil, Options{})
	defer m.Close()
	req := newRequest(t, "22")
	id, err := m.Submit(req)
	if err != nil {
		t.Fatal(err)
	}
	job := waitDone(t, m, id)
	if job.State != StateCompleted || job.Percent != 100 {
		t.Fatalf("job = %+v", job)
	}
	want := filepath.Join(req.DestinationDir, utils.SanitizeFilename("My: Clip/1")+".mp4")
	if job.ResultPath != want {
		t.Errorf("result = %q, want %q", job.ResultPath, want)
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		t.Errorf("result missing: %v", err)
	}
	if merger.calls != 0 {
		t.Error("progressive format should not be merged")
	}
	assertNoTemp(t, req.DestinationDir)
	if _, err := m.Status(id); utils.KindOf(err) != utils.KindNotFound {
		t.Error("waited job should be evicted")
	}
}

func TestExplicitPairIsFetchedAndMerged(t *testing.T) {
	ext := &fakeExtractor{fetch: splitStreams("Pair")}
	merger := &fakeMerger{}
	m := NewManager(ext, merger, nil, Options{})
	defer m.Close()
	req := newRequest(t, "137+140")
	id, _ := m.Submit(req)
	job := waitDone(t, m, id)
	if job.State != StateCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(ext.selectors) != 2 || ext.selectors[0] != "137" || ext.selectors[1] != "140" {
		t.Errorf("selectors = %v", ext.selectors)
	}
	if merger.calls != 1 || filepath.Base(job.ResultPath) != "Pair.mp4" {
		t.Errorf("merge calls = %d result = %s", merger.calls, job.ResultPath)
	}
	data, _ := os.ReadFile(job.ResultPath)
	if string(data) != "merged" {
		t.Errorf("result content = %q", data)
	}
}

func TestVideoOnlyGetsLanguageAudio(t *testing.T) {
	ext := &fakeExtractor{fetch: splitStreams("Solo")}
	m := NewManager(ext, &fakeMerger{}, nil, Options{})
	defer m.Close()
	req := newRequest(t, "720p")
	req.LanguageCode = "es"
	id, _ := m.Submit(req)
	job := waitDone(t, m, id)
	if job.State != StateCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(ext.selectors) != 2 || ext.selectors[1] != "bestaudio[language=es]/bestaudio" {
		t.Errorf("selectors = %v", ext.selectors)
	}
}

func TestMergeFailureLeavesNoFile(t *testing.T) {
	m := NewManager(&fakeExtractor{fetch: splitStreams("Broken")}, &fakeMerger{err: errors.New("Invalid data found when processing input")}, nil, Options{})
	defer m.Close()
	req := newRequest(t, "720p")
	req.LanguageCode = "es"
	id, _ := m.Submit(req)
	job := waitDone(t, m, id)
	if job.State != StateFailed || job.Kind != utils.KindMergeFailed || job.Error != "MERGE_FAILED" {
		t.Fatalf("job = %+v", job)
	}
	if job.Detail != "Invalid data found when processing input" {
		t.Errorf("detail = %q", job.Detail)
	}
	if utils.KindOf(job.Failure()) != utils.KindMergeFailed {
		t.Error("Failure() should carry the kind")
	}
	entries, _ := os.ReadDir(req.DestinationDir)
	if len(entries) != 0 {
		t.Errorf("destination should be empty, found %d entries", len(entries))
	}
}

func TestFetchFailureKeepsDiagnostic(t *testing.T) {
	diag := "ERROR: [youtube] abc: Requested format is not available"
	ext := &fakeExtractor{fetch: func(context.Context, extractor.FetchRequest, func(string)) ([]extractor.FetchedFile, error) {
		return nil, utils.NewError(utils.KindExtractionFailed, diag)
	}}
	m := NewManager(ext, &fakeMerger{}, nil, Options{})
	defer m.Close()
	req := newRequest(t, "999")
	id, _ := m.Submit(req)
	job := waitDone(t, m, id)
	if job.State != StateFailed || job.Kind != utils.KindExtractionFailed || job.Detail != diag {
		t.Fatalf("job = %+v", job)
	}
	assertNoTemp(t, req.DestinationDir)
}

func TestBusyRejection(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	ext := &fakeExtractor{fetch: func(ctx context.Context, req extractor.FetchRequest, onLine func(string)) ([]extractor.FetchedFile, error) {
		close(started)
		<-release
		return writeFetched(req, "First", "mp4", "avc1", "mp4a")
	}}
	m := NewManager(ext, &fakeMerger{}, nil, Options{})
	defer m.Close()
	first, err := m.Submit(newRequest(t, "18"))
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if _, err := m.Submit(newRequest(t, "18")); utils.KindOf(err) != utils.KindBusy {
		t.Fatalf("second submit kind = %q", utils.KindOf(err))
	}
	if len(m.List()) != 1 {
		t.Error("rejected submit should not register a job")
	}
	close(release)
	waitDone(t, m, first)

	ext.fetch = progressive("Second")
	id, err := m.Submit(newRequest(t, "18"))
	if err != nil {
		t.Fatalf("submit after completion: %v", err)
	}
	waitDone(t, m, id)
}

func TestResubmitAfterTerminalStatus(t *testing.T) {
	m := NewManager(&fakeExtractor{fetch: progressive("Loop")}, &fakeMerger{}, nil, Options{})
	defer m.Close()
	req := newRequest(t, "18")
	for i := 0; i < 200; i++ {
		id, err := m.Submit(req)
		if err != nil {
			t.Fatalf("iteration %d: submit: %v", i, err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for {
			job, err := m.Status(id)
			if err != nil {
				t.Fatal(err)
			}
			if job.State.IsTerminal() {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("iteration %d: job never finished", i)
			}
			time.Sleep(time.Millisecond)
		}
		if _, err := m.Submit(req); utils.KindOf(err) == utils.KindBusy {
			t.Fatalf("iteration %d: slot still held after the job was reported terminal", i)
		} else if err != nil {
			t.Fatalf("iteration %d: resubmit: %v", i, err)
		}
		for _, job := range m.List() {
			waitDone(t, m, job.ID)
		}
	}
}

func TestProgressIsMonotonicUntilDone(t *testing.T) {
	step := make(chan struct{})
	ack := make(chan struct{})
	ext := &fakeExtractor{fetch: func(ctx context.Context, req extractor.FetchRequest, onLine func(string)) ([]extractor.FetchedFile, error) {
		for _, line := range []string{
			"[download]  40.0% of 1MiB",
			"[download]  20.0% of 1MiB",
			"[download] 100.0% of 1MiB",
		} {
			<-step
			onLine(line)
			ack <- struct{}{}
		}
		<-step
		return writeFetched(req, "Mono", "mp4", "avc1", "mp4a")
	}}
	m := NewManager(ext, &fakeMerger{}, nil, Options{})
	defer m.Close()
	id, _ := m.Submit(newRequest(t, "18"))
	var seen []float64
	for i := 0; i < 3; i++ {
		step <- struct{}{}
		<-ack
		job, err := m.Status(id)
		if err != nil {
			t.Fatal(err)
		}
		seen = append(seen, job.Percent)
	}
	step <- struct{}{}
	job := waitDone(t, m, id)
	want := []float64{34, 34, 85}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("percent sequence = %v, want %v", seen, want)
		}
	}
	if job.Percent != 100 {
		t.Errorf("final percent = %v", job.Percent)
	}
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	ext := &fakeExtractor{fetch: func(ctx context.Context, req extractor.FetchRequest, _ func(string)) ([]extractor.FetchedFile, error) {
		close(started)
		<-ctx.Done()
		return nil, utils.WrapError(utils.KindCancelled, ctx.Err(), "cancelled")
	}}
	m := NewManager(ext, &fakeMerger{}, nil, Options{})
	defer m.Close()
	req := newRequest(t, "18")
	id, _ := m.Submit(req)
	<-started
	if err := m.Cancel(id); err != nil {
		t.Fatal(err)
	}
	job := waitDone(t, m, id)
	if job.State != StateFailed || job.Kind != utils.KindCancelled {
		t.Fatalf("job = %+v", job)
	}
	assertNoTemp(t, req.DestinationDir)
	if err := m.Cancel("missing"); utils.KindOf(err) != utils.KindNotFound {
		t.Errorf("cancel unknown kind = %q", utils.KindOf(err))
	}
}

func TestSweepEvictsExpiredJobs(t *testing.T) {
	m := NewManager(&fakeExtractor{fetch: progressive("Old")}, &fakeMerger{}, nil, Options{Retention: time.Minute})
	defer m.Close()
	id, _ := m.Submit(newRequest(t, "18"))
	ch, unsubscribe, err := m.Subscribe(id)
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()
	for range ch {
	}
	// wait for the slot to be released without evicting through Wait
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ := m.Status(id)
		if job.State.IsTerminal() || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := m.Sweep(); n != 0 {
		t.Errorf("fresh job evicted: %d", n)
	}
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if _, err := m.Status(id); utils.KindOf(err) != utils.KindNotFound {
		t.Error("expired job should be gone")
	}
}

func TestSplitSelector(t *testing.T) {
	tests := []struct{ in, video, audio string }{
		{"137+140", "137", "140"},
		{"bestvideo+bestaudio/best", "bestvideo", "bestaudio"},
		{"22", "22", ""},
		{"best/worst", "best/worst", ""},
		{"137+", "137+", ""},
	}
	for _, tt := range tests {
		v, a := splitSelector(tt.in)
		if v != tt.video || a != tt.audio {
			t.Errorf("splitSelector(%q) = %q, %q", tt.in, v, a)
		}
	}
}
