package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/progress"
	"smartcheck/internal/core/service"
	"smartcheck/internal/testutil/fakeapi"
)

// scriptedBatches implements ports.BatchAPI; list answers the n-th poll.
type scriptedBatches struct {
	calls atomic.Int32
	list  func(ctx context.Context, n int) ([]models.DocumentBatch, error)
}

func (s *scriptedBatches) ListBatches(ctx context.Context, _ models.Page) ([]models.DocumentBatch, error) {
	return s.list(ctx, int(s.calls.Add(1)))
}

func (s *scriptedBatches) UploadBatch(context.Context, string, string, io.Reader) (models.DocumentBatch, error) {
	return models.DocumentBatch{}, errors.New("not implemented")
}

func (s *scriptedBatches) GetBatch(context.Context, int64) (models.DocumentBatch, error) {
	return models.DocumentBatch{}, errors.New("not implemented")
}

func (s *scriptedBatches) UpdateBatch(context.Context, int64, models.DocumentBatchUpdate) (models.DocumentBatch, error) {
	return models.DocumentBatch{}, errors.New("not implemented")
}

func batchAt(p int, status models.BatchStatus) []models.DocumentBatch {
	return []models.DocumentBatch{{ID: 1, Name: "scan.pdf", Status: status, ProcessProgress: p}}
}

func newBoard() *progress.Board {
	return progress.NewBoard(progress.DefaultStages(), progress.DefaultPlaceholder())
}

func TestMonitor_RunsUntilNothingProcesses(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := &scriptedBatches{list: func(_ context.Context, n int) ([]models.DocumentBatch, error) {
		switch n {
		case 1:
			return batchAt(20, models.BatchProcessing), nil
		case 2:
			return batchAt(60, models.BatchProcessing), nil
		default:
			return batchAt(100, models.BatchProcessed), nil
		}
	}}

	var updates [][]progress.Job
	m := service.NewMonitor(api, newBoard(), 5*time.Millisecond, zap.NewNop(),
		service.OnUpdate(func(jobs []progress.Job) { updates = append(updates, jobs) }))

	require.NoError(t, m.Run(context.Background()))

	job, ok := m.Board().Job(1)
	require.True(t, ok)
	assert.Equal(t, models.BatchProcessed, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.False(t, m.Board().Processing())
	assert.NotEmpty(t, updates)
}

func TestMonitor_FirstPollIsImmediate(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := &scriptedBatches{list: func(context.Context, int) ([]models.DocumentBatch, error) {
		return batchAt(100, models.BatchProcessed), nil
	}}
	m := service.NewMonitor(api, newBoard(), time.Hour, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor waited for the interval before polling")
	}
	assert.EqualValues(t, 1, api.calls.Load())
}

func TestMonitor_DiscardsStaleResponses(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var once sync.Once
	api := &scriptedBatches{list: func(ctx context.Context, n int) ([]models.DocumentBatch, error) {
		switch n {
		case 1:
			// The first response arrives after the second one.
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return batchAt(30, models.BatchProcessing), nil
		case 2:
			return batchAt(60, models.BatchProcessing), nil
		case 3, 4:
			return batchAt(70, models.BatchProcessing), nil
		default:
			return batchAt(100, models.BatchProcessed), nil
		}
	}}

	var seen []int
	board := newBoard()
	m := service.NewMonitor(api, board, 5*time.Millisecond, zap.NewNop(),
		service.OnUpdate(func(jobs []progress.Job) {
			for _, j := range jobs {
				seen = append(seen, j.Progress)
				if j.Progress == 60 {
					once.Do(func() { close(release) })
				}
			}
		}))

	require.NoError(t, m.Run(context.Background()))

	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress went backwards: %v", seen)
	}
	assert.NotContains(t, seen, 30)
	job, _ := board.Job(1)
	assert.Equal(t, models.BatchProcessed, job.Status)
}

func TestMonitor_StopsOnExpiredSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := &scriptedBatches{list: func(_ context.Context, n int) ([]models.DocumentBatch, error) {
		if n == 1 {
			return batchAt(10, models.BatchProcessing), nil
		}
		return nil, ports.ErrAuthExpired
	}}
	m := service.NewMonitor(api, newBoard(), 5*time.Millisecond, zap.NewNop())

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, ports.ErrAuthExpired)
}

// failingGuard rejects every call, like an open circuit breaker.
type failingGuard struct{ rejected atomic.Int32 }

func (g *failingGuard) Execute(context.Context, func(context.Context) error) error {
	g.rejected.Add(1)
	return errors.New("circuit breaker is open")
}

func TestMonitor_KeepsPollingThroughGuardFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := &scriptedBatches{list: func(context.Context, int) ([]models.DocumentBatch, error) {
		return batchAt(100, models.BatchProcessed), nil
	}}
	guard := &failingGuard{}
	m := service.NewMonitor(api, newBoard(), 5*time.Millisecond, zap.NewNop(), service.WithGuard(guard))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := m.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, guard.rejected.Load(), int32(1))
	assert.Zero(t, api.calls.Load())
}

func TestMonitor_PlaceholderTicksBeforeFirstReport(t *testing.T) {
	defer goleak.VerifyNone(t)

	start := time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(start.UnixNano())
	now := func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	// No poll answers until a placeholder value has been seen.
	release := make(chan struct{})
	api := &scriptedBatches{list: func(ctx context.Context, _ int) ([]models.DocumentBatch, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return batchAt(100, models.BatchProcessed), nil
	}}

	board := newBoard()
	board.Track(models.DocumentBatch{ID: 1, Name: "scan.pdf", Status: models.BatchProcessing, UploadTime: models.Timestamp{Time: start}}, start)

	var once sync.Once
	var placeholder int
	m := service.NewMonitor(api, board, 5*time.Millisecond, zap.NewNop(),
		service.WithMonitorClock(now),
		service.OnUpdate(func(jobs []progress.Job) {
			clock.Add(int64(30 * time.Second))
			if !jobs[0].Confirmed && jobs[0].Progress > 0 {
				once.Do(func() {
					placeholder = jobs[0].Progress
					close(release)
				})
			}
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Run(ctx))
	assert.Greater(t, api.calls.Load(), int32(1))
	assert.Greater(t, placeholder, 0)
	assert.LessOrEqual(t, placeholder, 90)

	job, _ := board.Job(1)
	assert.Equal(t, 100, job.Progress)
	assert.True(t, job.Confirmed)
}

func TestMonitor_WithFakeAPI(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)

	b := srv.AddBatch(models.DocumentBatch{Name: "18.10.2025 HATTT1_0001.pdf"})
	p, done := 45, 100
	processing, processed := models.BatchProcessing, models.BatchProcessed
	srv.Script(b.ID,
		models.DocumentBatchUpdate{ProcessProgress: &p, Status: &processing},
		models.DocumentBatchUpdate{ProcessProgress: &done, Status: &processed},
	)

	board := newBoard()
	board.Track(b, time.Now())
	m := service.NewMonitor(client, board, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	job, ok := board.Job(b.ID)
	require.True(t, ok)
	assert.Equal(t, models.BatchProcessed, job.Status)
	assert.Equal(t, "matching", board.Stages().Name(job.Progress))
}
