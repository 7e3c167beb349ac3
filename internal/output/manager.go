package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type Entry struct {
	ID          int
	Label       string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager redraws a block of per-entry status lines on the terminal until stopped.
type Manager struct {
	entries     map[int]*Entry
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	count       int
	displayWg   sync.WaitGroup
	interactive bool
}

func NewManager() *Manager {
	return &Manager{
		entries:     make(map[int]*Entry),
		doneCh:      make(chan struct{}),
		displayTick: 250 * time.Millisecond,
		interactive: IsTerminal(),
	}
}

func (m *Manager) Register(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	m.entries[m.count] = &Entry{
		ID:          m.count,
		Label:       label,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.count
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Message = message
		e.Status = "running"
		e.LastUpdated = time.Now()
	}
}

// SetProgress replaces the entry's stream with a single progress bar line.
func (m *Manager) SetProgress(id int, percent float64, speed, eta string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		line := ProgressBar(percent, 30)
		if speed != "" {
			line += " " + StyleSymbols["bullet"] + " " + speed
		}
		if eta != "" {
			line += " " + StyleSymbols["bullet"] + " ETA " + eta
		}
		e.StreamLines = []string{line}
		e.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		e.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", e.Label)
		}
		e.Message = message
		e.Complete = true
		e.Status = "success"
		e.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Complete = true
		e.Status = "error"
		e.Error = err
		e.StreamLines = nil
		e.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Label: e.Label, Error: err, Time: time.Now()})
	}
}

func (m *Manager) Errors() []ErrorReport {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]ErrorReport(nil), m.errors...)
}

func (m *Manager) indicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["arrow"])
	}
}

func (m *Manager) ordered() []*Entry {
	all := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (m *Manager) render() []string {
	var lines []string
	for _, e := range m.ordered() {
		elapsed := time.Since(e.StartTime).Round(time.Second)
		if e.Complete {
			elapsed = e.LastUpdated.Sub(e.StartTime).Round(time.Second)
		}
		var message string
		switch e.Status {
		case "success":
			message = successStyle.Render(e.Message)
		case "error":
			message = errorStyle.Render(fmt.Sprintf("%s: %v", e.Label, e.Error))
		case "pending":
			message = pendingStyle.Render("Waiting... " + e.Label)
		default:
			message = pendingStyle.Render(e.Message)
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", m.indicator(e.Status), debugStyle.Render(elapsed.String()), message))
		for _, s := range e.StreamLines {
			lines = append(lines, "      "+streamStyle.Render(s))
		}
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	lines := m.render()
	if limit := terminalHeight() - 3; len(lines) > limit && limit > 0 {
		lines = lines[len(lines)-limit:]
	}
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}
	fmt.Print(strings.Join(lines, "\n"))
	if len(lines) > 0 {
		fmt.Println()
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	if !m.interactive {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	if !m.interactive {
		m.mutex.RLock()
		fmt.Println(strings.Join(m.render(), "\n"))
		m.mutex.RUnlock()
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var ok, failed int
	for _, e := range m.entries {
		switch e.Status {
		case "success":
			ok++
		case "error":
			failed++
		}
	}
	fmt.Println()
	if failed == 0 {
		PrintSuccess(fmt.Sprintf("%s %d completed", StyleSymbols["pass"], ok))
		return
	}
	PrintWarning(fmt.Sprintf("%s %d completed, %d failed", StyleSymbols["warning"], ok, failed))
	for _, report := range m.errors {
		PrintError(fmt.Sprintf("  %s %s", StyleSymbols["fail"], report.Label))
		for _, line := range WrapText(report.Error.Error(), 4) {
			PrintDetail("    " + line)
		}
	}
}
