package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartcheck/internal/adapters/api"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/service"
	"smartcheck/internal/testutil/fakeapi"
)

// mockScanSource implements ports.ScanSource
type mockScanSource struct {
	files    []models.ScanFile
	content  map[string]string
	errFetch error
}

func (m *mockScanSource) FetchNew(ctx context.Context, since time.Time) ([]models.ScanFile, error) {
	if m.errFetch != nil {
		return nil, m.errFetch
	}
	var out []models.ScanFile
	for _, f := range m.files {
		if f.ScannedAt.After(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockScanSource) Open(ctx context.Context, f models.ScanFile) (io.ReadCloser, error) {
	body, ok := m.content[f.ID]
	if !ok {
		return nil, errors.New("gone")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// memMarks implements ports.WatermarkStore
type memMarks struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func (m *memMarks) Watermark(ctx context.Context, source string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[source], nil
}

func (m *memMarks) Advance(ctx context.Context, source string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks == nil {
		m.marks = make(map[string]time.Time)
	}
	if t.After(m.marks[source]) {
		m.marks[source] = t
	}
	return nil
}

func writeFiles(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestUploadService_UploadPaths(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	store := memStore(t)
	svc := service.NewUploadService(client, store, store, 1<<20, zap.NewNop())

	paths := writeFiles(t, map[string]string{"a.pdf": samplePDF})
	paths = append(paths, writeFiles(t, map[string]string{"b.pdf": samplePDF + "% second\n"})...)

	var seen []string
	results, err := svc.UploadPaths(context.Background(), paths, service.UploadOptions{
		Name:     "Morning",
		OnResult: func(r service.UploadResult) { seen = append(seen, r.File.Name) },
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, seen)

	for i, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Batch)
		assert.False(t, r.Skipped)
		assert.Equal(t, 2, r.Batch.TotalPages)
		assert.Equal(t, models.BatchProcessing, r.Batch.Status)
		assert.Equal(t, []string{"Morning (1/2)", "Morning (2/2)"}[i], r.Batch.Name)
	}

	records, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUploadService_SkipsKnownContentUnlessForced(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	store := memStore(t)
	svc := service.NewUploadService(client, store, store, 1<<20, zap.NewNop())
	paths := writeFiles(t, map[string]string{"scan.pdf": samplePDF})
	ctx := context.Background()

	first, err := svc.UploadPaths(ctx, paths, service.UploadOptions{})
	require.NoError(t, err)
	require.NotNil(t, first[0].Batch)

	again, err := svc.UploadPaths(ctx, paths, service.UploadOptions{})
	require.NoError(t, err)
	require.True(t, again[0].Skipped)
	assert.Equal(t, first[0].Batch.ID, again[0].Previous.BatchID)
	assert.Equal(t, 1, srv.Count("POST", "/api/document-batches/upload"))

	forced, err := svc.UploadPaths(ctx, paths, service.UploadOptions{Force: true})
	require.NoError(t, err)
	require.NotNil(t, forced[0].Batch)
	assert.NotEqual(t, first[0].Batch.ID, forced[0].Batch.ID)
	assert.Equal(t, 2, srv.Count("POST", "/api/document-batches/upload"))
}

func TestUploadService_FailedFileDoesNotStopRun(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	svc := service.NewUploadService(client, nil, nil, 64, zap.NewNop())

	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.pdf")
	big := filepath.Join(dir, "big.pdf")
	good := filepath.Join(dir, "good.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(big, []byte("%PDF-"+strings.Repeat("x", 100)), 0o644))
	require.NoError(t, os.WriteFile(good, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	results, err := svc.UploadPaths(context.Background(), []string{notPDF, big, good}, service.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, service.ErrNotPDF)
	assert.ErrorIs(t, results[1].Err, service.ErrTooLarge)
	require.NoError(t, results[2].Err)
	assert.NotNil(t, results[2].Batch)
}

func TestUploadService_StopsOnExpiredSession(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	svc := service.NewUploadService(client, nil, nil, 1<<20, zap.NewNop())
	paths := writeFiles(t, map[string]string{"one.pdf": samplePDF})
	paths = append(paths, writeFiles(t, map[string]string{"two.pdf": samplePDF})...)

	srv.RevokeTokens()
	results, err := svc.UploadPaths(context.Background(), paths, service.UploadOptions{})
	require.ErrorIs(t, err, ports.ErrAuthExpired)
	assert.ErrorIs(t, err, api.ErrAuthExpired)
	require.Len(t, results, 1)
	assert.Empty(t, client.Session().Token)
}

func TestUploadService_SyncAdvancesWatermarkPastContiguousSuccesses(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	marks := &memMarks{}

	base := time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC)
	src := &mockScanSource{
		files: []models.ScanFile{
			{ID: "3", Name: "c.pdf", ScannedAt: base.Add(3 * time.Minute)},
			{ID: "1", Name: "a.pdf", ScannedAt: base.Add(1 * time.Minute)},
			{ID: "2", Name: "b.pdf", ScannedAt: base.Add(2 * time.Minute)},
		},
		content: map[string]string{"1": samplePDF, "2": "garbage", "3": samplePDF},
	}
	svc := service.NewUploadService(client, nil, marks, 1<<20, zap.NewNop())

	results, err := svc.Sync(context.Background(), src, "dir:/scans", service.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a.pdf", results[0].File.Name)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	wm, _ := marks.Watermark(context.Background(), "dir:/scans")
	assert.Equal(t, base.Add(time.Minute), wm)

	// The failed file and everything after it come back on the next run.
	src.content["2"] = samplePDF
	results, err = svc.Sync(context.Background(), src, "dir:/scans", service.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	wm, _ = marks.Watermark(context.Background(), "dir:/scans")
	assert.Equal(t, base.Add(3*time.Minute), wm)
}

func TestUploadService_SyncFetchError(t *testing.T) {
	svc := service.NewUploadService(nil, nil, &memMarks{}, 1<<20, zap.NewNop())
	_, err := svc.Sync(context.Background(), &mockScanSource{errFetch: errors.New("feed down")}, "feed:x", service.UploadOptions{})
	assert.ErrorContains(t, err, "feed down")
}
