package bunstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/splitting"
)

func newStore(t *testing.T) *BunStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLedger(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Lookup(ctx, "abc")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, models.UploadRecord{SHA256: "abc", FileName: "a.pdf", Size: 10, BatchID: 1, UploadedAt: at}))
	require.NoError(t, s.Record(ctx, models.UploadRecord{SHA256: "def", FileName: "b.pdf", Size: 20, BatchID: 2, UploadedAt: at.Add(time.Hour)}))

	rec, err := s.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.BatchID)
	assert.True(t, at.Equal(rec.UploadedAt))

	// re-uploading the same content with --force replaces the entry
	require.NoError(t, s.Record(ctx, models.UploadRecord{SHA256: "abc", FileName: "a.pdf", Size: 10, BatchID: 3, UploadedAt: at.Add(2 * time.Hour)}))
	rec, err = s.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.BatchID)

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "abc", list[0].SHA256)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWatermarkOnlyMovesForward(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	wm, err := s.Watermark(ctx, "dir:/scans")
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	t1 := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Advance(ctx, "dir:/scans", t1))
	require.NoError(t, s.Advance(ctx, "dir:/scans", t1.Add(-time.Hour)))

	wm, err = s.Watermark(ctx, "dir:/scans")
	require.NoError(t, err)
	assert.True(t, t1.Equal(wm), "got %s", wm)

	require.NoError(t, s.Advance(ctx, "dir:/scans", t1.Add(time.Minute)))
	wm, err = s.Watermark(ctx, "dir:/scans")
	require.NoError(t, err)
	assert.True(t, t1.Add(time.Minute).Equal(wm))

	other, err := s.Watermark(ctx, "feed:http://scanner")
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestDrafts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.LoadDraft(ctx, 5)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	d := splitting.Draft{
		Units: []models.Unit{
			{Index: 1, GroupID: "D1", Category: models.CategoryDeal, Validity: models.ValidityValid},
			{Index: 2, GroupID: "D1", Category: models.CategoryDeal, Validity: models.ValidityValid},
		},
		Selection: []int{2},
		Filter:    "D1",
	}
	require.NoError(t, s.SaveDraft(ctx, 5, d))
	require.NoError(t, s.SaveDraft(ctx, 7, splitting.Draft{}))

	got, err := s.LoadDraft(ctx, 5)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}

	d.Selection = nil
	require.NoError(t, s.SaveDraft(ctx, 5, d))
	got, err = s.LoadDraft(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, got.Selection)

	ids, err := s.DraftBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, ids)

	require.NoError(t, s.DeleteDraft(ctx, 5))
	_, err = s.LoadDraft(ctx, 5)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "smartcheck.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, models.UploadRecord{SHA256: "x", FileName: "x.pdf", UploadedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Lookup(ctx, "x")
	assert.NoError(t, err)
}
