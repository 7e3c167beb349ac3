package progress

import (
	"math"
	"sync"
)

type Phase string

const (
	PhasePending Phase = "pending"
	PhaseFetch   Phase = "fetch"
	PhaseAudio   Phase = "audio"
	PhaseMerge   Phase = "merge"
	PhaseDone    Phase = "done"
)

const ceiling = 99

// Tick is the externally visible progress state of one job.
type Tick struct {
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed"`
	ETA     string  `json:"eta"`
	Phase   Phase   `json:"phase"`
}

// Reporter folds extractor progress from several phases into one monotonic percentage.
// Percent stays at or below 99 until Finish.
type Reporter struct {
	mu       sync.Mutex
	tick     Tick
	lo, hi   float64
	finished bool
	closed   bool
	subs     map[int]chan Tick
	nextSub  int
}

func NewReporter() *Reporter {
	return &Reporter{
		tick: Tick{Phase: PhasePending},
		hi:   100,
		subs: make(map[int]chan Tick),
	}
}

// Begin starts a phase that maps raw 0-100 progress into [lo, hi] of the overall percentage.
func (r *Reporter) Begin(phase Phase, lo, hi float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.closed {
		return
	}
	r.lo, r.hi = lo, hi
	r.tick.Phase = phase
	r.tick.Speed = ""
	r.tick.ETA = ""
	r.raise(lo)
	r.broadcast()
}

// Feed parses one line of extractor output and reports whether it carried progress.
func (r *Reporter) Feed(line string) bool {
	s, ok := ParseLine(line)
	if !ok {
		return false
	}
	r.Observe(s)
	return true
}

func (r *Reporter) Observe(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.closed {
		return
	}
	if s.Percent >= 0 {
		raw := max(0, min(s.Percent, 100))
		r.raise(r.lo + raw/100*(r.hi-r.lo))
	}
	if s.Speed != "" {
		r.tick.Speed = s.Speed
	}
	if s.HasETA {
		r.tick.ETA = FormatETA(s.ETA)
	}
	r.broadcast()
}

func (r *Reporter) raise(overall float64) {
	overall = math.Round(min(overall, ceiling)*10) / 10
	if overall > r.tick.Percent {
		r.tick.Percent = overall
	}
}

// Finish marks success: percent becomes exactly 100 and subscribers are released.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.closed {
		return
	}
	r.finished = true
	r.tick = Tick{Percent: 100, Phase: PhaseDone}
	r.broadcast()
	r.closeSubs()
}

// Close ends reporting without completing, keeping the last percentage.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.closed {
		return
	}
	r.closed = true
	r.tick.Speed = ""
	r.tick.ETA = ""
	r.broadcast()
	r.closeSubs()
}

func (r *Reporter) Snapshot() Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tick
}

// Subscribe returns a channel carrying the latest tick. Slow readers only miss
// intermediate ticks. The channel is closed when reporting ends.
func (r *Reporter) Subscribe() (<-chan Tick, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Tick, 1)
	ch <- r.tick
	if r.finished || r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func (r *Reporter) broadcast() {
	for _, ch := range r.subs {
		select {
		case ch <- r.tick:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- r.tick:
			default:
			}
		}
	}
}

func (r *Reporter) closeSubs() {
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}
