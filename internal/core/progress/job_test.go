package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck/internal/core/domain/models"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func processing(p int) Report {
	return Report{Progress: p, Status: models.BatchProcessing}
}

func TestJob_MonotonicProgress(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	assert.Equal(t, 0, j.Progress)
	assert.Equal(t, models.BatchProcessing, j.Status)

	last := 0
	for _, p := range []int{5, 5, 12, 40, 40, 77, 99} {
		require.NoError(t, j.Observe(processing(p)))
		assert.GreaterOrEqual(t, j.Progress, last)
		assert.Equal(t, models.BatchProcessing, j.Status)
		last = j.Progress
	}
}

func TestJob_RegressionIsError(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	require.NoError(t, j.Observe(processing(40)))

	err := j.Observe(processing(20))
	assert.ErrorIs(t, err, ErrProgressRegression)
	assert.Equal(t, models.BatchError, j.Status)
	assert.NotEmpty(t, j.Reason)
	assert.True(t, j.Terminal())
}

func TestJob_ReachingHundredCompletes(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	require.NoError(t, j.Observe(processing(100)))
	assert.Equal(t, models.BatchProcessed, j.Status)
	assert.Equal(t, 100, j.Progress)
}

func TestJob_ReportedSuccess(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	require.NoError(t, j.Observe(processing(60)))
	require.NoError(t, j.Observe(Report{Progress: 60, Status: models.BatchProcessed}))
	assert.Equal(t, models.BatchProcessed, j.Status)
	assert.Equal(t, 100, j.Progress)
}

func TestJob_ReportedFailureKeepsProgress(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	require.NoError(t, j.Observe(processing(60)))
	require.NoError(t, j.Observe(Report{Progress: 0, Status: models.BatchError}))
	assert.Equal(t, models.BatchError, j.Status)
	assert.Equal(t, 60, j.Progress)
}

func TestJob_TerminalRejectsReports(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	require.NoError(t, j.Observe(Report{Status: models.BatchProcessed}))

	err := j.Observe(processing(10))
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, models.BatchProcessed, j.Status)
	assert.Equal(t, 100, j.Progress)
}

func TestJob_FirstReportOverwritesPlaceholder(t *testing.T) {
	j := NewJob(1, "scan.pdf", t0)
	j.Simulate(t0.Add(30*time.Second), DefaultPlaceholder())
	require.Equal(t, 45, j.Progress)

	// lower than the placeholder but the first real value: accepted
	require.NoError(t, j.Observe(processing(12)))
	assert.Equal(t, 12, j.Progress)
	assert.True(t, j.Confirmed)

	// placeholders no longer apply once the server has spoken
	j.Simulate(t0.Add(time.Hour), DefaultPlaceholder())
	assert.Equal(t, 12, j.Progress)
}

func TestPlaceholder_At(t *testing.T) {
	p := Placeholder{Duration: 10 * time.Second, Ceiling: 90}
	assert.Equal(t, 0, p.At(0))
	assert.Equal(t, 0, p.At(-time.Second))
	assert.Equal(t, 45, p.At(5*time.Second))
	assert.Equal(t, 90, p.At(10*time.Second))
	assert.Equal(t, 90, p.At(time.Minute))

	never := Placeholder{Duration: time.Second, Ceiling: 150}
	assert.Equal(t, 99, never.At(time.Hour))

	assert.Equal(t, 0, Placeholder{}.At(time.Hour))
}
