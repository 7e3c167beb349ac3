package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const staleAfterDays = 30

type ToolStatus struct {
	Version string `json:"version"`
	AgeDays *int   `json:"age_days"`
	Warning string `json:"warning,omitempty"`
}

type ComponentStatus struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	ExtractorTool ToolStatus      `json:"extractor_tool"`
	Extractor     ComponentStatus `json:"extractor"`
	Merger        ComponentStatus `json:"merger"`
}

// releaseAge reads a date-stamped version such as 2024.08.06 and returns its age in days.
func releaseAge(version string, now time.Time) (int, bool) {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return 0, false
	}
	var nums [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return 0, false
	}
	built := time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(built).Hours() / 24), true
}

func Diagnose(ctx context.Context, ext Extractor, merger Merger, now time.Time) Report {
	report := Report{
		ExtractorTool: ToolStatus{Version: "unknown"},
		Extractor:     ComponentStatus{Name: "yt-dlp"},
		Merger:        ComponentStatus{Name: "ffmpeg"},
	}
	if ext != nil {
		if version, err := ext.Version(ctx); err != nil {
			report.Extractor.Error = err.Error()
		} else {
			report.Extractor.OK = true
			report.Extractor.Version = version
			report.ExtractorTool.Version = version
			if age, ok := releaseAge(version, now); ok {
				report.ExtractorTool.AgeDays = &age
				if age >= staleAfterDays {
					report.ExtractorTool.Warning = fmt.Sprintf("yt-dlp is %d days old. If metadata broke recently, update yt-dlp and restart the server.", age)
				}
			}
		}
	} else {
		report.Extractor.Error = "extractor not configured"
	}
	if merger != nil {
		if version, err := merger.Version(ctx); err != nil {
			report.Merger.Error = err.Error()
		} else {
			report.Merger.OK = true
			report.Merger.Version = version
		}
	} else {
		report.Merger.Error = "merger not configured"
	}
	return report
}

// Diagnostics reports on a fixed pair of tools, bounding each report by a timeout.
type Diagnostics struct {
	ext     Extractor
	merger  Merger
	timeout time.Duration
}

func NewDiagnostics(ext Extractor, merger Merger) *Diagnostics {
	return &Diagnostics{ext: ext, merger: merger, timeout: 15 * time.Second}
}

func (d *Diagnostics) Report(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return Diagnose(ctx, d.ext, d.merger, time.Now())
}
