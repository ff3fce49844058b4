package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

var (
	// ErrNotPDF rejects files that do not start with the PDF header.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrTooLarge rejects files above the configured upload limit.
	ErrTooLarge = errors.New("file exceeds upload limit")
)

var pdfMagic = []byte("%PDF-")

// UploadOptions tune a single upload run.
type UploadOptions struct {
	// Name overrides the batch name. With several files each batch gets a
	// "(i/n)" suffix.
	Name string
	// Force uploads files the ledger has already seen.
	Force bool
	// OnResult is called after each file, in submission order.
	OnResult func(UploadResult)
}

// UploadResult is the outcome of one file.
type UploadResult struct {
	File    models.ScanFile
	Batch   *models.DocumentBatch
	Skipped bool
	// Previous is the ledger entry that caused a skip.
	Previous *models.UploadRecord
	Err      error
}

// UploadService sends scanned PDFs to the API one at a time.
type UploadService struct {
	api     ports.BatchAPI
	ledger  ports.UploadLedger
	marks   ports.WatermarkStore
	maxSize int64
	logger  *zap.Logger
	now     func() time.Time
}

func NewUploadService(api ports.BatchAPI, ledger ports.UploadLedger, marks ports.WatermarkStore, maxSize int64, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		api:     api,
		ledger:  ledger,
		marks:   marks,
		maxSize: maxSize,
		logger:  logger,
		now:     time.Now,
	}
}

// UploadPaths uploads local files in the given order.
func (s *UploadService) UploadPaths(ctx context.Context, paths []string, opts UploadOptions) ([]UploadResult, error) {
	files := make([]models.ScanFile, 0, len(paths))
	for _, p := range paths {
		f := models.ScanFile{ID: p, Name: filepath.Base(p), Location: p}
		if info, err := os.Stat(p); err == nil {
			f.Size = info.Size()
			f.ScannedAt = info.ModTime()
		}
		files = append(files, f)
	}
	return s.Upload(ctx, localFiles{}, files, opts)
}

// Upload sends files sequentially. A failed file is reported in its result and
// the next file proceeds; an expired session stops the run because every
// further request would be rejected too.
func (s *UploadService) Upload(ctx context.Context, src ports.ScanSource, files []models.ScanFile, opts UploadOptions) ([]UploadResult, error) {
	results := make([]UploadResult, 0, len(files))
	var (
		successCount int
		skipCount    int
		failCount    int
	)

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := opts.Name
		if name != "" && len(files) > 1 {
			name = fmt.Sprintf("%s (%d/%d)", opts.Name, i+1, len(files))
		}

		res := s.uploadOne(ctx, src, f, name, opts.Force)
		results = append(results, res)
		if opts.OnResult != nil {
			opts.OnResult(res)
		}

		switch {
		case res.Err != nil:
			failCount++
			s.logger.Error("upload failed", zap.String("file", f.Name), zap.Error(res.Err))
			if errors.Is(res.Err, ports.ErrAuthExpired) {
				return results, res.Err
			}
		case res.Skipped:
			skipCount++
			s.logger.Info("skipping already uploaded file", zap.String("file", f.Name), zap.Int64("batch_id", res.Previous.BatchID))
		default:
			successCount++
			s.logger.Info("uploaded", zap.String("file", f.Name), zap.Int64("batch_id", res.Batch.ID))
		}
	}

	s.logger.Info("upload complete", zap.Int("success", successCount), zap.Int("skipped", skipCount), zap.Int("failed", failCount))
	return results, nil
}

func (s *UploadService) uploadOne(ctx context.Context, src ports.ScanSource, f models.ScanFile, name string, force bool) UploadResult {
	res := UploadResult{File: f}

	content, err := s.read(ctx, src, f)
	if err != nil {
		res.Err = err
		return res
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if s.ledger != nil && !force {
		prev, err := s.ledger.Lookup(ctx, hash)
		switch {
		case err == nil:
			res.Skipped = true
			res.Previous = &prev
			return res
		case !errors.Is(err, ports.ErrNotFound):
			s.logger.Warn("upload ledger lookup failed", zap.String("file", f.Name), zap.Error(err))
		}
	}

	batch, err := s.api.UploadBatch(ctx, f.Name, name, bytes.NewReader(content))
	if err != nil {
		res.Err = fmt.Errorf("upload %s: %w", f.Name, err)
		return res
	}
	res.Batch = &batch

	if s.ledger != nil {
		rec := models.UploadRecord{
			SHA256:     hash,
			FileName:   f.Name,
			Size:       int64(len(content)),
			BatchID:    batch.ID,
			UploadedAt: s.now(),
		}
		if err := s.ledger.Record(ctx, rec); err != nil {
			s.logger.Warn("failed to record upload", zap.String("file", f.Name), zap.Error(err))
		}
	}
	return res
}

// read loads the whole file so it can be checked and hashed before sending.
func (s *UploadService) read(ctx context.Context, src ports.ScanSource, f models.ScanFile) ([]byte, error) {
	if s.maxSize > 0 && f.Size > s.maxSize {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
	}

	rc, err := src.Open(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	r := io.Reader(rc)
	if s.maxSize > 0 {
		r = io.LimitReader(rc, s.maxSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if s.maxSize > 0 && int64(len(content)) > s.maxSize {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrNotPDF)
	}
	return content, nil
}

// Sync uploads what src produced since the stored watermark of sourceKey, then
// advances the watermark past every file that was uploaded or skipped. A failed
// file holds the watermark back so it is retried on the next run.
func (s *UploadService) Sync(ctx context.Context, src ports.ScanSource, sourceKey string, opts UploadOptions) ([]UploadResult, error) {
	var since time.Time
	if s.marks != nil {
		wm, err := s.marks.Watermark(ctx, sourceKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read watermark: %w", err)
		}
		since = wm
	}
	s.logger.Info("starting scan sync", zap.String("source", sourceKey), zap.Time("since", since))

	files, err := src.FetchNew(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scans: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("no new scans found")
		return nil, nil
	}
	sortByScanTime(files)

	results, runErr := s.Upload(ctx, src, files, opts)

	mark := since
	for _, r := range results {
		if r.Err != nil {
			break
		}
		if r.File.ScannedAt.After(mark) {
			mark = r.File.ScannedAt
		}
	}
	if s.marks != nil && mark.After(since) {
		if err := s.marks.Advance(ctx, sourceKey, mark); err != nil {
			s.logger.Warn("failed to update watermark", zap.Error(err))
		} else {
			s.logger.Info("watermark updated", zap.String("source", sourceKey), zap.Time("watermark", mark))
		}
	}
	return results, runErr
}

// localFiles opens paths given on the command line.
type localFiles struct{}

func (localFiles) FetchNew(context.Context, time.Time) ([]models.ScanFile, error) {
	return nil, nil
}

func (localFiles) Open(_ context.Context, f models.ScanFile) (io.ReadCloser, error) {
	return os.Open(f.Location)
}
