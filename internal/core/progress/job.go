package progress

import (
	"errors"
	"fmt"
	"time"

	"smartcheck/internal/core/domain/models"
)

var (
	// ErrTerminal is returned when a finished job receives another report.
	ErrTerminal = errors.New("job already finished")
	// ErrProgressRegression marks a report lower than the last confirmed progress.
	ErrProgressRegression = errors.New("reported progress went backwards")
)

// Report is one observation of a job from the API.
type Report struct {
	Progress int
	Status   models.BatchStatus
}

// Placeholder is the optimistic local estimate shown before the first server
// report. It grows linearly to Ceiling over Duration and never completes a job.
type Placeholder struct {
	Duration time.Duration
	Ceiling  int
}

// DefaultPlaceholder reaches 90% after one minute.
func DefaultPlaceholder() Placeholder {
	return Placeholder{Duration: time.Minute, Ceiling: 90}
}

func (p Placeholder) At(elapsed time.Duration) int {
	if p.Duration <= 0 || elapsed <= 0 {
		return 0
	}
	ceiling := p.Ceiling
	if ceiling > 99 {
		ceiling = 99
	}
	if elapsed >= p.Duration {
		return ceiling
	}
	return int(int64(ceiling) * int64(elapsed) / int64(p.Duration))
}

// Job is the client-side state machine of one batch:
// processing(p) -> processing(p' >= p) | processed | error.
type Job struct {
	ID        int64              `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	StartedAt time.Time          `json:"started_at" yaml:"started_at"`
	Progress  int                `json:"progress" yaml:"progress"`
	Status    models.BatchStatus `json:"status" yaml:"status"`
	Reason    string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	// Confirmed is set once the server has reported on the job. Until then
	// Progress is a placeholder value.
	Confirmed bool `json:"confirmed" yaml:"confirmed"`
}

func NewJob(id int64, name string, startedAt time.Time) *Job {
	return &Job{
		ID:        id,
		Name:      name,
		StartedAt: startedAt,
		Status:    models.BatchProcessing,
	}
}

// Terminal reports whether the job accepts no further transitions.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// Observe applies a server report.
func (j *Job) Observe(r Report) error {
	if j.Terminal() {
		return ErrTerminal
	}

	p := r.Progress
	if p < 0 {
		p = 0
	}

	switch {
	case r.Status == models.BatchError:
		j.fail("reported failure by server")
	case r.Status == models.BatchProcessed || p >= 100:
		j.Progress = 100
		j.Status = models.BatchProcessed
	case j.Confirmed && p < j.Progress:
		err := fmt.Errorf("%w: %d after %d", ErrProgressRegression, p, j.Progress)
		j.fail(err.Error())
		j.Confirmed = true
		return err
	default:
		j.Progress = p
	}
	j.Confirmed = true
	return nil
}

// Simulate advances the placeholder of an unconfirmed job. Confirmed and
// finished jobs are not touched.
func (j *Job) Simulate(now time.Time, p Placeholder) {
	if j.Confirmed || j.Terminal() {
		return
	}
	if v := p.At(now.Sub(j.StartedAt)); v > j.Progress {
		j.Progress = v
	}
}

func (j *Job) fail(reason string) {
	j.Status = models.BatchError
	j.Reason = reason
}
