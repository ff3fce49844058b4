package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/progress"
)

// Guard wraps a call with failure protection such as a circuit breaker.
type Guard interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

type passthrough struct{}

func (passthrough) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithGuard runs every poll through g.
func WithGuard(g Guard) MonitorOption {
	return func(m *Monitor) { m.guard = g }
}

// OnUpdate is called after every applied snapshot and placeholder tick, from
// the goroutine running Run.
func OnUpdate(fn func(jobs []progress.Job)) MonitorOption {
	return func(m *Monitor) { m.onUpdate = fn }
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// WithPageLimit bounds how many batches a poll requests.
func WithPageLimit(n int) MonitorOption {
	return func(m *Monitor) { m.limit = n }
}

// Monitor polls the batch list while any tracked job is still processing.
type Monitor struct {
	api      ports.BatchAPI
	board    *progress.Board
	interval time.Duration
	guard    Guard
	onUpdate func([]progress.Job)
	now      func() time.Time
	limit    int
	logger   *zap.Logger
}

func NewMonitor(api ports.BatchAPI, board *progress.Board, interval time.Duration, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		api:      api,
		board:    board,
		interval: interval,
		guard:    passthrough{},
		now:      time.Now,
		limit:    100,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Board returns the board the monitor updates. It must not be touched while
// Run is active.
func (m *Monitor) Board() *progress.Board {
	return m.board
}

type pollResult struct {
	seq     uint64
	batches []models.DocumentBatch
	err     error
}

// Run polls immediately and then once per interval until no job is
// processing, the session expires or ctx is done. Polls may overlap; a
// response older than one already applied is dropped. Run never leaves
// goroutines behind.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	results := make(chan pollResult)
	var seq uint64
	poll := func() {
		seq++
		n := seq
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches, err := m.fetch(ctx)
			select {
			case results <- pollResult{seq: n, batches: batches, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			m.board.Tick(m.now())
			m.notify()
			poll()

		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, ports.ErrAuthExpired) {
					return r.err
				}
				if ctx.Err() == nil {
					m.logger.Warn("poll failed", zap.Uint64("seq", r.seq), zap.Error(r.err))
				}
				continue
			}
			if !m.board.Apply(r.seq, r.batches) {
				m.logger.Debug("discarding stale poll", zap.Uint64("seq", r.seq))
				continue
			}
			for _, a := range m.board.Anomalies() {
				m.logger.Warn("progress anomaly", zap.Error(a))
			}
			m.notify()
			if !m.board.Processing() {
				m.logger.Info("all batches finished")
				return nil
			}
		}
	}
}

func (m *Monitor) fetch(ctx context.Context) ([]models.DocumentBatch, error) {
	var batches []models.DocumentBatch
	err := m.guard.Execute(ctx, func(ctx context.Context) error {
		var err error
		batches, err = m.api.ListBatches(ctx, models.Page{Limit: m.limit})
		return err
	})
	return batches, err
}

func (m *Monitor) notify() {
	if m.onUpdate != nil {
		m.onUpdate(m.board.Jobs())
	}
}
