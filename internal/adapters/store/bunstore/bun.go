// Package bunstore keeps local client state in SQLite through bun.
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/splitting"
)

var (
	_ ports.UploadLedger   = (*BunStore)(nil)
	_ ports.WatermarkStore = (*BunStore)(nil)
	_ ports.DraftStore     = (*BunStore)(nil)
)

type BunStore struct {
	db *bun.DB
}

// Open opens (creating if needed) the SQLite database at path. ":memory:"
// gives a private in-memory database.
func Open(ctx context.Context, path string) (*BunStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	sqldb.SetMaxOpenConns(1)

	store, err := NewBunStore(ctx, sqldb)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	return store, nil
}

// NewBunStore wraps an open database and creates missing tables.
func NewBunStore(ctx context.Context, sqldb *sql.DB) (*BunStore, error) {
	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []any{(*uploadRow)(nil), (*watermarkRow)(nil), (*splitDraftRow)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	return &BunStore{db: db}, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

// UploadLedger implementation

func (s *BunStore) Lookup(ctx context.Context, sha256 string) (models.UploadRecord, error) {
	row := new(uploadRow)
	if err := s.db.NewSelect().Model(row).Where("sha256 = ?", sha256).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UploadRecord{}, ports.ErrNotFound
		}
		return models.UploadRecord{}, err
	}
	return row.record(), nil
}

// Record stores rec, replacing an earlier upload of the same content.
func (s *BunStore) Record(ctx context.Context, rec models.UploadRecord) error {
	row := &uploadRow{
		SHA256:     rec.SHA256,
		FileName:   rec.FileName,
		Size:       rec.Size,
		BatchID:    rec.BatchID,
		UploadedAt: rec.UploadedAt.UTC(),
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (sha256) DO UPDATE").
		Set("file_name = EXCLUDED.file_name").
		Set("size = EXCLUDED.size").
		Set("batch_id = EXCLUDED.batch_id").
		Set("uploaded_at = EXCLUDED.uploaded_at").
		Exec(ctx)
	return err
}

// List returns the most recent uploads first.
func (s *BunStore) List(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	var rows []uploadRow
	q := s.db.NewSelect().Model(&rows).Order("uploaded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]models.UploadRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

func (r uploadRow) record() models.UploadRecord {
	return models.UploadRecord{
		SHA256:     r.SHA256,
		FileName:   r.FileName,
		Size:       r.Size,
		BatchID:    r.BatchID,
		UploadedAt: r.UploadedAt,
	}
}

// WatermarkStore implementation

// Watermark returns the zero time for a source never seen before.
func (s *BunStore) Watermark(ctx context.Context, source string) (time.Time, error) {
	row := new(watermarkRow)
	if err := s.db.NewSelect().Model(row).Where("source = ?", source).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return row.ScannedAt, nil
}

// Advance moves the watermark of source forward to t. Older values are ignored.
func (s *BunStore) Advance(ctx context.Context, source string, t time.Time) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(watermarkRow)
		err := tx.NewSelect().Model(row).Where("source = ?", source).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.NewInsert().Model(&watermarkRow{Source: source, ScannedAt: t.UTC()}).Exec(ctx)
			return err
		case err != nil:
			return err
		case !t.After(row.ScannedAt):
			return nil
		}
		_, err = tx.NewUpdate().Model((*watermarkRow)(nil)).
			Set("scanned_at = ?", t.UTC()).
			Where("source = ?", source).
			Exec(ctx)
		return err
	})
}

// DraftStore implementation

func (s *BunStore) LoadDraft(ctx context.Context, batchID int64) (splitting.Draft, error) {
	row := new(splitDraftRow)
	if err := s.db.NewSelect().Model(row).Where("batch_id = ?", batchID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return splitting.Draft{}, ports.ErrNotFound
		}
		return splitting.Draft{}, err
	}
	var d splitting.Draft
	if err := json.Unmarshal([]byte(row.Payload), &d); err != nil {
		return splitting.Draft{}, fmt.Errorf("failed to decode draft for batch %d: %w", batchID, err)
	}
	return d, nil
}

func (s *BunStore) SaveDraft(ctx context.Context, batchID int64, d splitting.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	row := &splitDraftRow{BatchID: batchID, Payload: string(payload), UpdatedAt: time.Now().UTC()}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (batch_id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteDraft(ctx context.Context, batchID int64) error {
	_, err := s.db.NewDelete().Model((*splitDraftRow)(nil)).Where("batch_id = ?", batchID).Exec(ctx)
	return err
}

// DraftBatches lists batches with unsaved edits.
func (s *BunStore) DraftBatches(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.NewSelect().Model((*splitDraftRow)(nil)).Column("batch_id").Order("batch_id ASC").Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
