package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/splitting"
)

var (
	// ErrNotFound is returned by local stores when a key has no entry.
	ErrNotFound = errors.New("not found")
	// ErrAuthExpired is returned when the API rejected the session token. The
	// local session has been cleared by the time a caller sees it.
	ErrAuthExpired = errors.New("session expired, log in again")
)

// BatchAPI is the part of the back-office API that handles uploaded batches.
type BatchAPI interface {
	UploadBatch(ctx context.Context, filename, name string, content io.Reader) (models.DocumentBatch, error)
	ListBatches(ctx context.Context, page models.Page) ([]models.DocumentBatch, error)
	GetBatch(ctx context.Context, id int64) (models.DocumentBatch, error)
	UpdateBatch(ctx context.Context, id int64, update models.DocumentBatchUpdate) (models.DocumentBatch, error)
}

// DealAPI reads the deals extracted from a batch.
type DealAPI interface {
	ListDeals(ctx context.Context, batchID int64) ([]models.Deal, error)
	DownloadDeal(ctx context.Context, id int64, part models.DealPart) (io.ReadCloser, error)
}

// ScanSource lists scanned PDFs waiting to be uploaded.
type ScanSource interface {
	FetchNew(ctx context.Context, since time.Time) ([]models.ScanFile, error)
	Open(ctx context.Context, f models.ScanFile) (io.ReadCloser, error)
}

// UploadLedger remembers which file contents were already uploaded.
type UploadLedger interface {
	Lookup(ctx context.Context, sha256 string) (models.UploadRecord, error)
	Record(ctx context.Context, rec models.UploadRecord) error
	List(ctx context.Context, limit int) ([]models.UploadRecord, error)
}

// WatermarkStore keeps the newest scan time seen per source. Watermarks only
// move forward.
type WatermarkStore interface {
	Watermark(ctx context.Context, source string) (time.Time, error)
	Advance(ctx context.Context, source string, t time.Time) error
}

// DraftStore persists unsaved splitting edits between CLI invocations.
type DraftStore interface {
	LoadDraft(ctx context.Context, batchID int64) (splitting.Draft, error)
	SaveDraft(ctx context.Context, batchID int64, d splitting.Draft) error
	DeleteDraft(ctx context.Context, batchID int64) error
}

// SessionStore persists the operator session.
type SessionStore interface {
	Load() (models.Session, error)
	Save(s models.Session) error
	Clear() error
}
