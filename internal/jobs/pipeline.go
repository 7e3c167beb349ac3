package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/formats"
	"github.com/tanq16/vidgrab/internal/progress"
	"github.com/tanq16/vidgrab/internal/utils"
)

const outputTemplate = "%(title)s.f%(format_id)s.%(ext)s"

// splitSelector separates "video+audio" into its two halves. Alternatives after
// a "/" are dropped once a pair is present, since each half is fetched on its own.
func splitSelector(selector string) (string, string) {
	primary, _, _ := strings.Cut(selector, "/")
	video, audio, ok := strings.Cut(primary, "+")
	if !ok || video == "" || audio == "" {
		return selector, ""
	}
	return video, audio
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	id := e.job.ID
	dest := e.job.DestinationDir
	workDir := utils.JobTempDir(dest, id)
	var title, result string
	err := os.MkdirAll(workDir, 0755)
	if err == nil {
		title, result, err = m.pipeline(ctx, e, workDir)
	} else {
		err = utils.WrapError(utils.KindExtractionFailed, err, "could not create working directory")
	}
	if rmErr := utils.RemoveJobTemp(dest, id); rmErr != nil {
		log.Warn().Str("op", "jobs/run").Err(rmErr).Msgf("could not remove working directory of job %s", id)
	}
	m.finish(ctx, e, title, result, err)
}

// finish publishes the terminal state and frees the admission slot in one step,
// so a caller that sees the job terminal can submit the next one.
func (m *Manager) finish(ctx context.Context, e *entry, title, result string, err error) {
	finished := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.active == e.job.ID {
		m.active = ""
	}
	e.job.Title = title
	e.job.FinishedAt = &finished
	if err == nil {
		e.job.State = StateCompleted
		e.job.ResultPath = result
		e.reporter.Finish()
		log.Info().Str("op", "jobs/run").Msgf("job %s completed: %s", e.job.ID, result)
		return
	}
	kind := utils.KindOf(err)
	if errors.Is(ctx.Err(), context.Canceled) {
		kind = utils.KindCancelled
	}
	if kind == "" {
		kind = utils.KindExtractionFailed
	}
	e.job.State = StateFailed
	e.job.Kind = kind
	e.job.Error = kind.Label()
	e.job.Detail = utils.DetailOf(err)
	e.reporter.Close()
	log.Error().Str("op", "jobs/run").Str("kind", string(kind)).Msgf("job %s failed: %s", e.job.ID, e.job.Detail)
}

func (m *Manager) fetch(ctx context.Context, e *entry, workDir, selector string) (extractor.FetchedFile, error) {
	files, err := m.extractor.Fetch(ctx, extractor.FetchRequest{
		URL:            e.job.URL,
		Selector:       selector,
		OutputTemplate: filepath.Join(workDir, outputTemplate),
		AuthArgs:       m.authArgs(),
	}, func(line string) {
		if !e.reporter.Feed(line) {
			log.Debug().Str("op", "jobs/fetch").Msg(line)
		}
	})
	if err != nil {
		if utils.KindOf(err) == "" {
			err = utils.WrapError(utils.KindExtractionFailed, err, "")
		}
		return extractor.FetchedFile{}, err
	}
	if len(files) == 0 {
		return extractor.FetchedFile{}, utils.NewError(utils.KindExtractionFailed, "extractor produced no file")
	}
	return files[len(files)-1], nil
}

// pipeline fetches the requested streams into workDir, merges them when needed,
// and renames the result into the destination. It returns the title and final path.
func (m *Manager) pipeline(ctx context.Context, e *entry, workDir string) (string, string, error) {
	videoSel, audioSel := splitSelector(e.job.FormatID)

	e.reporter.Begin(progress.PhaseFetch, 0, 85)
	primary, err := m.fetch(ctx, e, workDir, videoSel)
	if err != nil {
		return "", "", err
	}
	title := primary.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(primary.Path), filepath.Ext(primary.Path))
	}
	e.mu.Lock()
	e.job.Title = title
	e.mu.Unlock()

	needsAudio := audioSel != "" || (primary.HasVideo() && !primary.HasAudio())
	if !needsAudio {
		final, err := m.place(e, primary.Path, title, primary.Ext)
		return title, final, err
	}
	if audioSel == "" {
		audioSel = formats.AudioSelector(e.job.LanguageCode)
	}

	e.reporter.Begin(progress.PhaseAudio, 85, 95)
	audio, err := m.fetch(ctx, e, workDir, audioSel)
	if err != nil {
		return title, "", err
	}

	e.reporter.Begin(progress.PhaseMerge, 95, 99)
	ext := formats.MergeContainer(primary.Ext, audio.Ext)
	merged := filepath.Join(workDir, "merged."+ext)
	err = m.merger.Combine(ctx, extractor.MergeRequest{
		VideoPath:  primary.Path,
		AudioPath:  audio.Path,
		OutputPath: merged,
	})
	if err != nil {
		if utils.KindOf(err) != utils.KindCancelled {
			err = utils.WrapError(utils.KindMergeFailed, err, utils.DetailOf(err))
		}
		return title, "", err
	}
	final, err := m.place(e, merged, title, ext)
	return title, final, err
}

// place moves a finished file from the working directory to its final name.
// The working directory lives under the destination, so this is a same-volume rename.
func (m *Manager) place(e *entry, src, title, ext string) (string, error) {
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(src), ".")
	}
	final := filepath.Join(e.job.DestinationDir, utils.SanitizeFilename(title)+"."+ext)
	if abs, err := filepath.Abs(final); err == nil {
		final = abs
	}
	if err := os.Rename(src, final); err != nil {
		return "", utils.WrapError(utils.KindExtractionFailed, err, fmt.Sprintf("could not move result into place: %v", err))
	}
	return final, nil
}
