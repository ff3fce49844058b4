package progress

import (
	"time"

	"smartcheck/internal/core/domain/models"
)

// Board is the visible list of ingestion jobs. Each applied snapshot replaces
// the whole list; jobs are matched by id so their state machine carries over.
// A Board is owned by a single goroutine.
type Board struct {
	stages      Stages
	placeholder Placeholder
	jobs        map[int64]*Job
	order       []int64
	lastSeq     uint64
	anomalies   []error
}

func NewBoard(stages Stages, placeholder Placeholder) *Board {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Board{
		stages:      stages,
		placeholder: placeholder,
		jobs:        make(map[int64]*Job),
	}
}

func (b *Board) Stages() Stages {
	return b.stages
}

// Track adds a freshly uploaded batch as an unconfirmed job.
func (b *Board) Track(batch models.DocumentBatch, now time.Time) {
	if _, ok := b.jobs[batch.ID]; ok {
		return
	}
	started := batch.UploadTime.Time
	if started.IsZero() {
		started = now
	}
	job := NewJob(batch.ID, batch.Name, started)
	if batch.Status.Terminal() {
		_ = job.Observe(Report{Progress: batch.ProcessProgress, Status: batch.Status})
	}
	b.jobs[batch.ID] = job
	b.order = append(b.order, batch.ID)
}

// Apply replaces the job list with a poll result. seq is the sequence number
// of the poll that produced it; results older than the newest applied one are
// dropped and Apply returns false.
func (b *Board) Apply(seq uint64, snapshot []models.DocumentBatch) bool {
	if seq < b.lastSeq {
		return false
	}
	b.lastSeq = seq

	jobs := make(map[int64]*Job, len(snapshot))
	order := make([]int64, 0, len(snapshot))
	var anomalies []error
	for _, batch := range snapshot {
		if _, dup := jobs[batch.ID]; dup {
			continue
		}
		job, ok := b.jobs[batch.ID]
		if !ok {
			started := batch.UploadTime.Time
			if started.IsZero() {
				started = batch.CreatedAt.Time
			}
			job = NewJob(batch.ID, batch.Name, started)
		}
		job.Name = batch.Name
		if !job.Terminal() {
			if err := job.Observe(Report{Progress: batch.ProcessProgress, Status: batch.Status}); err != nil {
				anomalies = append(anomalies, err)
			}
		}
		jobs[batch.ID] = job
		order = append(order, batch.ID)
	}

	b.jobs = jobs
	b.order = order
	b.anomalies = anomalies
	return true
}

// Anomalies returns the regressions detected by the last applied snapshot.
func (b *Board) Anomalies() []error {
	return b.anomalies
}

// Tick advances the placeholders of jobs the server has not reported on yet.
func (b *Board) Tick(now time.Time) {
	for _, id := range b.order {
		b.jobs[id].Simulate(now, b.placeholder)
	}
}

// Processing reports whether any job is still running.
func (b *Board) Processing() bool {
	for _, job := range b.jobs {
		if job.Status == models.BatchProcessing {
			return true
		}
	}
	return false
}

// Jobs returns copies of the jobs in snapshot order.
func (b *Board) Jobs() []Job {
	out := make([]Job, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.jobs[id])
	}
	return out
}

// Job returns a copy of one job.
func (b *Board) Job(id int64) (Job, bool) {
	job, ok := b.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
