package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/formats"
	"github.com/tanq16/vidgrab/internal/jobs"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/progress"
	"github.com/tanq16/vidgrab/internal/utils"
)

// Item is one download requested from the command line or a batch file.
type Item struct {
	URL       string `yaml:"link"`
	OutputDir string `yaml:"op,omitempty"`
	Quality   string `yaml:"quality,omitempty"`
	Language  string `yaml:"language,omitempty"`
}

// Result is the outcome of one item. Err is nil on success.
type Result struct {
	Item Item
	Job  jobs.Job
	Err  error
}

// Submitter is the part of the job manager the scheduler drives.
type Submitter interface {
	Submit(req jobs.Request) (string, error)
	Subscribe(id string) (<-chan progress.Tick, func(), error)
	Wait(ctx context.Context, id string) (jobs.Job, error)
}

func (it Item) request(defaultDir string) jobs.Request {
	dir := utils.ExpandHome(strings.TrimSpace(it.OutputDir))
	if dir == "" {
		dir = defaultDir
	}
	quality := strings.TrimSpace(it.Quality)
	if quality == "" {
		quality = formats.FallbackSelector
	}
	language := strings.TrimSpace(it.Language)
	if language == "" {
		language = formats.Untagged
	}
	return jobs.Request{URL: strings.TrimSpace(it.URL), LanguageCode: language, FormatID: quality, DestinationDir: dir}
}

// Run downloads items one after another, since the manager admits a single job
// at a time, and draws their progress on the terminal. It stops early when ctx ends.
func Run(ctx context.Context, manager Submitter, items []Item, defaultDir string) []Result {
	outputMgr := output.NewManager()
	outputMgr.StartDisplay()

	results := make([]Result, 0, len(items))
	for _, item := range items {
		funcID := outputMgr.Register(item.URL)
		if ctx.Err() != nil {
			err := utils.WrapError(utils.KindCancelled, ctx.Err(), "interrupted before start")
			outputMgr.ReportError(funcID, err)
			results = append(results, Result{Item: item, Err: err})
			continue
		}
		job, err := runOne(ctx, manager, outputMgr, funcID, item.request(defaultDir))
		if err != nil {
			outputMgr.ReportError(funcID, fmt.Errorf("%s: %s", utils.KindOf(err).Label(), utils.DetailOf(err)))
		} else {
			outputMgr.Complete(funcID, fmt.Sprintf("Saved %s", job.ResultPath))
		}
		results = append(results, Result{Item: item, Job: job, Err: err})
	}

	outputMgr.StopDisplay()
	outputMgr.ShowSummary()
	return results
}

func runOne(ctx context.Context, manager Submitter, outputMgr *output.Manager, funcID int, req jobs.Request) (jobs.Job, error) {
	id, err := manager.Submit(req)
	if err != nil {
		return jobs.Job{}, err
	}
	outputMgr.SetMessage(funcID, "Downloading "+req.URL)
	log.Debug().Str("op", "scheduler/run").Msgf("job %s submitted for %s", id, req.URL)

	drawn := make(chan struct{})
	if ticks, unsubscribe, err := manager.Subscribe(id); err == nil {
		go func() {
			defer close(drawn)
			defer unsubscribe()
			for tick := range ticks {
				outputMgr.SetProgress(funcID, tick.Percent, tick.Speed, tick.ETA)
				if tick.Phase == progress.PhaseMerge {
					outputMgr.SetMessage(funcID, "Merging streams")
				}
			}
		}()
	} else {
		close(drawn)
	}

	job, err := manager.Wait(ctx, id)
	if err != nil {
		return job, utils.WrapError(utils.KindCancelled, err, "interrupted")
	}
	<-drawn
	if failure := job.Failure(); failure != nil {
		return job, failure
	}
	return job, nil
}
