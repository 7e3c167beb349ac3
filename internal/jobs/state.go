package jobs

import (
	"time"

	"github.com/tanq16/vidgrab/internal/progress"
	"github.com/tanq16/vidgrab/internal/utils"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func (s State) IsActive() bool {
	return s == StatePending || s == StateRunning
}

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Request struct {
	URL            string `json:"url"`
	LanguageCode   string `json:"language"`
	FormatID       string `json:"format"`
	DestinationDir string `json:"path"`
}

// Job is a point-in-time copy of a download job.
type Job struct {
	ID             string          `json:"id"`
	URL            string          `json:"url"`
	LanguageCode   string          `json:"language"`
	FormatID       string          `json:"format"`
	DestinationDir string          `json:"path"`
	State          State           `json:"state"`
	Percent        float64         `json:"percent"`
	Speed          string          `json:"speed,omitempty"`
	ETA            string          `json:"eta,omitempty"`
	Phase          progress.Phase  `json:"phase"`
	Title          string          `json:"title,omitempty"`
	ResultPath     string          `json:"filepath,omitempty"`
	Kind           utils.ErrorKind `json:"kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	Detail         string          `json:"detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// Failure rebuilds the structured error of a failed job, or nil.
func (j Job) Failure() error {
	if j.State != StateFailed {
		return nil
	}
	return utils.NewError(j.Kind, j.Detail)
}
