package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/progress"
	"github.com/tanq16/vidgrab/internal/utils"
)

// CredentialContext supplies the extractor arguments of the current authorized session.
type CredentialContext interface {
	AuthArgs() []string
}

type Options struct {
	// Retention is how long a finished job stays queryable when nobody waits for it.
	Retention time.Duration
}

type entry struct {
	mu       sync.Mutex
	job      Job
	cancel   context.CancelFunc
	reporter *progress.Reporter
	done     chan struct{}
}

func (e *entry) snapshot() Job {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	tick := e.reporter.Snapshot()
	job.Percent, job.Speed, job.ETA, job.Phase = tick.Percent, tick.Speed, tick.ETA, tick.Phase
	return job
}

// Manager runs at most one download at a time; a second submit while one is
// active is rejected with Busy.
type Manager struct {
	extractor extractor.Extractor
	merger    extractor.Merger
	creds     CredentialContext
	options   Options
	now       func() time.Time

	mu     sync.RWMutex
	jobs   map[string]*entry
	active string

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewManager(ext extractor.Extractor, merger extractor.Merger, creds CredentialContext, options Options) *Manager {
	if options.Retention <= 0 {
		options.Retention = 10 * time.Minute
	}
	return &Manager{
		extractor: ext,
		merger:    merger,
		creds:     creds,
		options:   options,
		now:       time.Now,
		jobs:      make(map[string]*entry),
		stopCh:    make(chan struct{}),
	}
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.URL) == "":
		return utils.NewError(utils.KindInvalidRequest, "url is required")
	case !utils.IsHTTPURL(req.URL):
		return utils.NewError(utils.KindInvalidRequest, "url must be an absolute http or https address")
	case strings.TrimSpace(req.LanguageCode) == "":
		return utils.NewError(utils.KindInvalidRequest, "language is required")
	case strings.TrimSpace(req.FormatID) == "":
		return utils.NewError(utils.KindInvalidRequest, "format is required")
	case strings.TrimSpace(req.DestinationDir) == "":
		return utils.NewError(utils.KindInvalidRequest, "destination directory is required")
	}
	if err := utils.CheckWritableDir(req.DestinationDir); err != nil {
		return utils.WrapError(utils.KindInvalidRequest, err, "")
	}
	return nil
}

// Submit validates the request and starts the job. It returns the job id.
func (m *Manager) Submit(req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	m.mu.Lock()
	if m.active != "" {
		active := m.active
		m.mu.Unlock()
		return "", utils.NewError(utils.KindBusy, "another download is in progress: "+active)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		job: Job{
			ID:             uuid.NewString(),
			URL:            strings.TrimSpace(req.URL),
			LanguageCode:   strings.TrimSpace(req.LanguageCode),
			FormatID:       strings.TrimSpace(req.FormatID),
			DestinationDir: req.DestinationDir,
			State:          StatePending,
			Phase:          progress.PhasePending,
			CreatedAt:      m.now(),
		},
		cancel:   cancel,
		reporter: progress.NewReporter(),
		done:     make(chan struct{}),
	}
	e.job.State = StateRunning
	m.jobs[e.job.ID] = e
	m.active = e.job.ID
	m.wg.Add(1)
	m.mu.Unlock()

	log.Info().Str("op", "jobs/submit").Msgf("job %s started for %s", e.job.ID, e.job.URL)
	go m.run(ctx, e)
	return e.job.ID, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return nil, utils.NewError(utils.KindNotFound, "unknown job "+id)
	}
	return e, nil
}

func (m *Manager) Status(id string) (Job, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return e.snapshot(), nil
}

func (m *Manager) List() []Job {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.jobs))
	for _, e := range m.jobs {
		entries = append(entries, e)
	}
	m.mu.RUnlock()
	list := make([]Job, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.snapshot())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// Wait blocks until the job is terminal, then returns it and forgets it.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return e.snapshot(), ctx.Err()
	}
	job := e.snapshot()
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
	return job, nil
}

// Cancel stops a running job. The job ends Failed with kind Cancelled.
// Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.cancel()
	return nil
}

// Subscribe streams progress ticks of a job until it finishes.
func (m *Manager) Subscribe(id string) (<-chan progress.Tick, func(), error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := e.reporter.Subscribe()
	return ch, unsubscribe, nil
}

// Sweep drops finished jobs older than the retention period and returns how many were dropped.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.options.Retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.jobs {
		e.mu.Lock()
		expired := e.job.FinishedAt != nil && e.job.FinishedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) StartJanitor(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					log.Debug().Str("op", "jobs/janitor").Msgf("evicted %d finished job(s)", n)
				}
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Close cancels any running job and waits for background work to stop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.mu.RLock()
		for _, e := range m.jobs {
			e.cancel()
		}
		m.mu.RUnlock()
		m.wg.Wait()
	})
}

func (m *Manager) authArgs() []string {
	if m.creds == nil {
		return nil
	}
	return m.creds.AuthArgs()
}
